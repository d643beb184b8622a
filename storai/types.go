package storai

import "time"

// Chapter is one generated increment of a story: its prose, the choices
// offered to the reader (at most three) and an illustration URL, which may
// be a stock fallback when the image provider is unavailable.
type Chapter struct {
	Index    int      `json:"chapter"`
	Text     string   `json:"content"`
	Choices  []string `json:"choices"`
	ImageURL string   `json:"image_url"`
}

// Story accumulates chapters for one reader session. Chapters are
// append-only; insertion order is reading order.
type Story struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	OriginalPrompt string    `json:"prompt"`
	Chapters       []Chapter `json:"chapters"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChapterResult is the combined payload produced by one generation call.
type ChapterResult struct {
	Storyline string   `json:"storyline"`
	ImageURL  string   `json:"imageURL"`
	Choices   []string `json:"choices"`
}
