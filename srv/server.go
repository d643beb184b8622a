// Package srv provides the Stor.ai HTTP surface over the in-memory
// story/room stores and the generation pipeline.
package srv

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/KennethTeo2002/ntu-x-base-hackathon-2025/storai"
)

// StoryGenerator is the orchestrator surface the handlers need.
type StoryGenerator interface {
	NewStory(ctx context.Context, prompt string) (*storai.ChapterResult, error)
	NextChapter(ctx context.Context, storyContext, userChoice string) (*storai.ChapterResult, error)
}

type Server struct {
	router  chi.Router
	gen     StoryGenerator
	stories *StoryStore
	rooms   *RoomStore
}

func NewServer(gen StoryGenerator, stories *StoryStore, rooms *RoomStore) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		gen:     gen,
		stories: stories,
		rooms:   rooms,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(corsMiddleware)

	s.router.Get("/api/health", s.handleHealth)

	// Generation hits the paid providers, so it gets a per-IP budget.
	s.router.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(10, 1*time.Minute))
		r.Post("/api/stories/generate", s.handleGenerateStory)
		r.Post("/api/stories/{storyID}/next-chapter", s.handleNextChapter)
	})

	s.router.Post("/api/stories/save", s.handleSaveStory)
	s.router.Get("/api/stories/library", s.handleLibrary)

	s.router.Post("/upload/{roomID}", s.handleUpload)
	s.router.Get("/room/{roomID}", s.handleRoom)

	s.router.Handle("/metrics", promhttp.Handler())
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
