package storai

import (
	"regexp"
	"strings"
)

// Markers the prompt template asks the model to wrap its answer in.
const (
	storyMarker   = "---STORY_START---"
	choicesMarker = "---CHOICES_START---"
	endMarker     = "---END---"
)

// ParseFailureStory is substituted for the prose when the model response
// is missing the expected markers. Parse failures are never fatal.
const ParseFailureStory = "The storyteller lost the thread... please try again."

var choiceLinePattern = regexp.MustCompile(`^(\d+)\.\s*(.+)$`)

// ParsedResponse is the result of splitting a raw model response into its
// story and choices sections.
type ParsedResponse struct {
	Story   string
	Choices []string
}

// ParseStoryResponse extracts the story segment and the numbered choices
// from a raw delimited model response. It tolerates partial or malformed
// output: a missing story section degrades to ParseFailureStory and a
// missing choices section to no choices. It never panics.
func ParseStoryResponse(raw string) ParsedResponse {
	parsed := ParsedResponse{
		Story:   ParseFailureStory,
		Choices: []string{},
	}

	start := strings.Index(raw, storyMarker)
	if start < 0 {
		return parsed
	}
	rest := raw[start+len(storyMarker):]

	mid := strings.Index(rest, choicesMarker)
	if mid < 0 {
		return parsed
	}
	parsed.Story = strings.TrimSpace(rest[:mid])

	choiceSpan := rest[mid+len(choicesMarker):]
	if end := strings.Index(choiceSpan, endMarker); end >= 0 {
		choiceSpan = choiceSpan[:end]
	}

	for _, line := range strings.Split(choiceSpan, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := choiceLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		parsed.Choices = append(parsed.Choices, m[2])
	}
	return parsed
}
