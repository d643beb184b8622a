package storai

import "fmt"

// Prompt templates for the two text-generation modes. The continuation
// template instructs the model to emit the delimited format that
// ParseStoryResponse understands.

func continuationPrompt(storyContext, userChoice string) string {
	choiceNote := "This is the very beginning of the story."
	if userChoice != "" {
		choiceNote = fmt.Sprintf("The reader chose: %q. Continue from that choice.", userChoice)
	}

	return fmt.Sprintf(`You are a master storyteller writing an interactive choose-your-own-adventure story.

Story so far:
%s

%s

Write the next part of the story (about 200-250 words). Make it creative,
vivid, and compelling, with strong imagery and emotion. Then offer the
reader 2 to 3 short choices for what happens next.

Respond in EXACTLY this format, with no other text:
---STORY_START---
<the next part of the story>
---CHOICES_START---
1. <first choice>
2. <second choice>
3. <third choice>
---END---`, storyContext, choiceNote)
}

func distillPrompt(segment string) string {
	return fmt.Sprintf(`Distill the following story passage into a short prompt for an image
generation model. Describe one vivid scene in under 25 words. Return only
the prompt text, nothing else.

Passage:
%s`, segment)
}

func initialImagePrompt(prompt string) string {
	return fmt.Sprintf("Beautiful illustration for: %s", prompt)
}

func fallbackStory(prompt string) string {
	return fmt.Sprintf("Once upon a time, inspired by %q, an incredible adventure began. "+
		"The story unfolded with mystery, wonder, and unexpected discoveries that would change everything...", prompt)
}
