package storai

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// Stock Unsplash photo served when image generation fails. The keywords
// query only steers the crop; the URL is always valid.
const fallbackBaseURL = "https://images.unsplash.com/photo-1446776877081-d282a0f896e2"

var nonWordPattern = regexp.MustCompile(`[^\w\s]`)

// FallbackImageURL deterministically derives a stock-image URL from the
// prompt's keywords: lowercase, punctuation stripped, short words
// dropped, first three remaining words used.
func FallbackImageURL(prompt string) string {
	cleaned := nonWordPattern.ReplaceAllString(strings.ToLower(prompt), "")

	var keywords []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) > 2 {
			keywords = append(keywords, word)
		}
		if len(keywords) == 3 {
			break
		}
	}
	query := strings.Join(keywords, " ")
	if query == "" {
		query = "story illustration"
	}

	return fallbackBaseURL + "?w=800&h=600&fit=crop&auto=format&q=80&keywords=" + url.QueryEscape(query)
}

// GenerateImageWithFallback never fails for foreseeable provider errors:
// any generation failure degrades to a deterministic stock-image URL
// derived from the prompt.
func (c *SogniClient) GenerateImageWithFallback(ctx context.Context, prompt string, opts *ImageOptions) string {
	imageURL, err := c.GenerateImage(ctx, prompt, opts)
	if err != nil {
		log.Info().Str("prompt", truncate(prompt, 30)).Msg("falling back to stock image")
		return FallbackImageURL(prompt)
	}
	return imageURL
}
