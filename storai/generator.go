package storai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// TextGenerator produces story prose and image prompts.
type TextGenerator interface {
	Continue(ctx context.Context, storyContext, userChoice string) (string, error)
	DistillImagePrompt(ctx context.Context, segment string) (string, error)
}

// ImageGenerator turns a prompt into an image URL, degrading to a stock
// URL rather than failing.
type ImageGenerator interface {
	GenerateImageWithFallback(ctx context.Context, prompt string, opts *ImageOptions) string
}

// Generator composes the text and image clients into chapter generation.
type Generator struct {
	text  TextGenerator
	image ImageGenerator
}

func NewGenerator(text TextGenerator, image ImageGenerator) *Generator {
	return &Generator{text: text, image: image}
}

// Chapter choices are capped by the prompt contract.
const maxChoices = 3

// NextChapter produces one new chapter: continuation text, parsed into
// prose and choices, an image prompt distilled from the new prose, and an
// illustration. Steps run sequentially, each depending on the previous
// result. Only exhausted text generation is fatal; everything downstream
// degrades instead of failing.
func (g *Generator) NextChapter(ctx context.Context, storyContext, userChoice string) (*ChapterResult, error) {
	raw, err := g.text.Continue(ctx, storyContext, userChoice)
	if err != nil {
		return nil, fmt.Errorf("generating continuation: %w", err)
	}

	parsed := ParseStoryResponse(raw)

	imagePrompt, err := g.text.DistillImagePrompt(ctx, parsed.Story)
	if err != nil || imagePrompt == "" {
		// The chapter is already written at this point; illustrate from
		// the prose itself rather than failing the whole request.
		log.Warn().Err(err).Msg("image prompt distillation failed, using story segment")
		imagePrompt = parsed.Story
	}

	imageURL := g.image.GenerateImageWithFallback(ctx, imagePrompt, &ImageOptions{
		StylePrompt: "digital art, illustration, fantasy art",
	})

	choices := parsed.Choices
	if len(choices) > maxChoices {
		choices = choices[:maxChoices]
	}

	return &ChapterResult{
		Storyline: parsed.Story,
		ImageURL:  imageURL,
		Choices:   choices,
	}, nil
}

// NewStory generates a story's opening chapter. Unlike NextChapter it
// runs prose and image generation concurrently, with the image prompt
// built from the user's prompt rather than derived from the prose, and it
// substitutes canned prose when text generation is exhausted.
func (g *Generator) NewStory(ctx context.Context, prompt string) (*ChapterResult, error) {
	result := &ChapterResult{}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		raw, err := g.text.Continue(ctx, prompt, "")
		if err != nil {
			log.Warn().Err(err).Msg("opening chapter generation failed, using fallback prose")
			result.Storyline = fallbackStory(prompt)
			result.Choices = []string{}
			return nil
		}
		parsed := ParseStoryResponse(raw)
		result.Storyline = parsed.Story
		result.Choices = parsed.Choices
		if len(result.Choices) > maxChoices {
			result.Choices = result.Choices[:maxChoices]
		}
		return nil
	})
	eg.Go(func() error {
		result.ImageURL = g.image.GenerateImageWithFallback(ctx, initialImagePrompt(prompt), &ImageOptions{
			StylePrompt: "digital art, illustration, fantasy art",
		})
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
