package srv

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/KennethTeo2002/ntu-x-base-hackathon-2025/storai"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"message": "Stor.ai server is running!",
		"services": map[string]string{
			"gemini": "ready",
			"sogni":  "lazy-loaded",
		},
	})
}

func (s *Server) handleGenerateStory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		writeError(w, http.StatusBadRequest, "Story prompt is required and cannot be empty")
		return
	}

	log.Info().Str("prompt", prompt).Msg("generating story")
	start := time.Now()

	result, err := s.gen.NewStory(r.Context(), prompt)
	if err != nil {
		generationRequestsTotal.WithLabelValues("story", "error").Inc()
		log.Error().Err(err).Msg("story generation failed")
		writeError(w, http.StatusInternalServerError, "Failed to generate story. Please try again.")
		return
	}
	generationRequestsTotal.WithLabelValues("story", "success").Inc()
	generationDuration.WithLabelValues("story").Observe(time.Since(start).Seconds())

	story := &storai.Story{
		ID:             uuid.New().String(),
		Title:          "Generated Story",
		OriginalPrompt: prompt,
		CreatedAt:      time.Now().UTC(),
		Chapters: []storai.Chapter{{
			Index:    0,
			Text:     result.Storyline,
			Choices:  result.Choices,
			ImageURL: result.ImageURL,
		}},
	}
	s.stories.Put(story)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"story":   story,
	})
}

func (s *Server) handleNextChapter(w http.ResponseWriter, r *http.Request) {
	storyID := chi.URLParam(r, "storyID")

	var req struct {
		Choice string `json:"choice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	story, ok := s.stories.Get(storyID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Story '%s' not found", storyID))
		return
	}

	log.Info().Str("story_id", storyID).Str("choice", req.Choice).Msg("generating next chapter")
	start := time.Now()

	result, err := s.gen.NextChapter(r.Context(), storyContext(story), req.Choice)
	if err != nil {
		generationRequestsTotal.WithLabelValues("chapter", "error").Inc()
		if errors.Is(err, storai.ErrExhausted) {
			log.Error().Err(err).Str("story_id", storyID).Msg("text provider exhausted")
		} else {
			log.Error().Err(err).Str("story_id", storyID).Msg("next chapter generation failed")
		}
		writeError(w, http.StatusInternalServerError, "Failed to generate next chapter. Please try again.")
		return
	}
	generationRequestsTotal.WithLabelValues("chapter", "success").Inc()
	generationDuration.WithLabelValues("chapter").Observe(time.Since(start).Seconds())

	chapter, err := s.stories.AppendChapter(storyID, storai.Chapter{
		Text:     result.Storyline,
		Choices:  result.Choices,
		ImageURL: result.ImageURL,
	})
	if err != nil {
		// The story got swept between Get and Append.
		writeError(w, http.StatusNotFound, fmt.Sprintf("Story '%s' not found", storyID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"chapter": chapter,
	})
}

// storyContext flattens a story's accumulated prose into the context text
// handed to the text provider.
func storyContext(story *storai.Story) string {
	parts := make([]string, 0, len(story.Chapters)+1)
	parts = append(parts, "Original prompt: "+story.OriginalPrompt)
	for _, ch := range story.Chapters {
		parts = append(parts, ch.Text)
	}
	return strings.Join(parts, "\n\n")
}

func (s *Server) handleSaveStory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Story *storai.Story `json:"story"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Story == nil {
		writeError(w, http.StatusBadRequest, "Story data is required")
		return
	}

	story := req.Story
	if story.ID == "" {
		story.ID = uuid.New().String()
	}
	if story.CreatedAt.IsZero() {
		story.CreatedAt = time.Now().UTC()
	}
	s.stories.Put(story)

	log.Info().Str("story_id", story.ID).Str("title", story.Title).Msg("story saved")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Story saved to your library!",
		"savedStory": story,
	})
}

// Demo stories shown alongside saved ones in the library view.
var demoStories = []map[string]string{
	{
		"id":          "demo1",
		"title":       "The Enchanted Forest",
		"description": "A magical journey through mystical woods",
		"image":       "https://images.unsplash.com/photo-1441974231531-c6227db76b6e?w=400&h=300&fit=crop&auto=format",
		"type":        "demo",
	},
	{
		"id":          "demo2",
		"title":       "Cosmic Adventure",
		"description": "An epic space exploration saga",
		"image":       "https://images.unsplash.com/photo-1446776877081-d282a0f896e2?w=400&h=300&fit=crop&auto=format",
		"type":        "demo",
	},
	{
		"id":          "demo3",
		"title":       "Ocean Mysteries",
		"description": "Deep sea discoveries and ancient secrets",
		"image":       "https://images.unsplash.com/photo-1518837695005-2083093ee35b?w=400&h=300&fit=crop&auto=format",
		"type":        "demo",
	},
}

func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	stories := s.stories.Stories()

	saved := make([]map[string]interface{}, 0, len(stories))
	for _, story := range stories {
		entry := map[string]interface{}{
			"id":       story.ID,
			"title":    story.Title,
			"type":     "saved",
			"chapters": len(story.Chapters),
		}
		if len(story.Chapters) > 0 {
			first := story.Chapters[0]
			entry["description"] = summarize(first.Text)
			entry["image"] = first.ImageURL
		}
		saved = append(saved, entry)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stories": map[string]interface{}{
			"demo":  demoStories,
			"saved": saved,
			"total": len(demoStories) + len(saved),
		},
	})
}

// summarize cuts on a rune boundary so multi-byte prose never ends in a
// replacement character.
func summarize(text string) string {
	runes := []rune(text)
	if len(runes) <= 100 {
		return text
	}
	return string(runes[:100]) + "..."
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	var entry Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if roomID == "" || entry.URL == "" || entry.Text == "" {
		writeError(w, http.StatusBadRequest, "Both roomId (in URL) and url (in body) are required.")
		return
	}

	s.rooms.Append(roomID, entry)
	log.Info().Str("room_id", roomID).Str("url", entry.URL).Msg("entry uploaded")

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": fmt.Sprintf("URL '%s' submitted successfully to room '%s'.", entry.URL, roomID),
	})
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	entries, ok := s.rooms.Entries(roomID)
	if !ok {
		writeError(w, http.StatusNotFound,
			fmt.Sprintf("No URLs and accompanying text found for room '%s'.", roomID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roomId":  roomID,
		"entries": entries,
	})
}
