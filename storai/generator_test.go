package storai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTextGen struct {
	continueRaw string
	continueErr error
	distilled   string
	distillErr  error

	gotContext string
	gotChoice  string
	gotSegment string
}

func (s *stubTextGen) Continue(ctx context.Context, storyContext, userChoice string) (string, error) {
	s.gotContext = storyContext
	s.gotChoice = userChoice
	return s.continueRaw, s.continueErr
}

func (s *stubTextGen) DistillImagePrompt(ctx context.Context, segment string) (string, error) {
	s.gotSegment = segment
	return s.distilled, s.distillErr
}

type stubImageGen struct {
	url       string
	gotPrompt string
}

func (s *stubImageGen) GenerateImageWithFallback(ctx context.Context, prompt string, opts *ImageOptions) string {
	s.gotPrompt = prompt
	return s.url
}

const rawChapter = `---STORY_START---
The door creaks open onto a starlit library.
---CHOICES_START---
1. Read the glowing book.
2. Call out into the dark.
---END---`

func TestGeneratorNextChapter(t *testing.T) {
	text := &stubTextGen{continueRaw: rawChapter, distilled: "a starlit library"}
	image := &stubImageGen{url: "https://img.example/1.png"}
	g := NewGenerator(text, image)

	result, err := g.NextChapter(context.Background(), "prior context", "open the door")
	require.NoError(t, err)

	assert.Equal(t, "The door creaks open onto a starlit library.", result.Storyline)
	assert.Equal(t, []string{"Read the glowing book.", "Call out into the dark."}, result.Choices)
	assert.Equal(t, "https://img.example/1.png", result.ImageURL)

	// Each step feeds the next.
	assert.Equal(t, "prior context", text.gotContext)
	assert.Equal(t, "open the door", text.gotChoice)
	assert.Equal(t, "The door creaks open onto a starlit library.", text.gotSegment)
	assert.Equal(t, "a starlit library", image.gotPrompt)
}

func TestGeneratorNextChapterExhausted(t *testing.T) {
	text := &stubTextGen{continueErr: ErrExhausted}
	g := NewGenerator(text, &stubImageGen{})

	_, err := g.NextChapter(context.Background(), "ctx", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestGeneratorNextChapterDistillFailureDegrades(t *testing.T) {
	text := &stubTextGen{continueRaw: rawChapter, distillErr: errors.New("boom")}
	image := &stubImageGen{url: "https://img.example/2.png"}
	g := NewGenerator(text, image)

	result, err := g.NextChapter(context.Background(), "ctx", "")
	require.NoError(t, err)
	// The story segment itself becomes the image prompt.
	assert.Equal(t, "The door creaks open onto a starlit library.", image.gotPrompt)
	assert.Equal(t, "https://img.example/2.png", result.ImageURL)
}

func TestGeneratorNextChapterCapsChoices(t *testing.T) {
	text := &stubTextGen{continueRaw: `---STORY_START---
x
---CHOICES_START---
1. a
2. b
3. c
4. d
---END---`, distilled: "p"}
	g := NewGenerator(text, &stubImageGen{})

	result, err := g.NextChapter(context.Background(), "ctx", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, result.Choices)
}

func TestGeneratorNewStory(t *testing.T) {
	text := &stubTextGen{continueRaw: rawChapter}
	image := &stubImageGen{url: "https://img.example/cover.png"}
	g := NewGenerator(text, image)

	result, err := g.NewStory(context.Background(), "a starlit library")
	require.NoError(t, err)

	assert.Equal(t, "The door creaks open onto a starlit library.", result.Storyline)
	assert.Equal(t, "https://img.example/cover.png", result.ImageURL)
	// The opening image prompt comes from the user prompt, not the prose.
	assert.Equal(t, "Beautiful illustration for: a starlit library", image.gotPrompt)
	// Empty choice marks the story's beginning.
	assert.Equal(t, "", text.gotChoice)
}

func TestGeneratorNewStoryTextFailureUsesFallbackProse(t *testing.T) {
	text := &stubTextGen{continueErr: ErrExhausted}
	image := &stubImageGen{url: "https://img.example/cover.png"}
	g := NewGenerator(text, image)

	result, err := g.NewStory(context.Background(), "a lost compass")
	require.NoError(t, err)
	assert.Contains(t, result.Storyline, `"a lost compass"`)
	assert.Empty(t, result.Choices)
	assert.Equal(t, "https://img.example/cover.png", result.ImageURL)
}
