package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/KennethTeo2002/ntu-x-base-hackathon-2025/srv"
	"github.com/KennethTeo2002/ntu-x-base-hackathon-2025/storai"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	cfg, err := storai.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Info().
		Bool("gemini_apikey", cfg.GeminiAPIKey != "").
		Bool("sogni_username", cfg.SogniUsername != "").
		Bool("sogni_password", cfg.SogniPassword != "").
		Msg("environment check")
	if cfg.GeminiAPIKey == "" {
		log.Fatal().Msg("please set GEMINI_APIKEY environment variable")
	}

	gemini := storai.NewGeminiClient(cfg)
	sogni := storai.NewSogniClient(cfg)
	generator := storai.NewGenerator(gemini, sogni)

	stories := srv.NewStoryStore(cfg.StoryClearInterval)
	defer stories.Close()
	rooms := srv.NewRoomStore(cfg.StoryClearInterval)
	defer rooms.Close()

	server := srv.NewServer(generator, stories, rooms)

	log.Info().Str("port", cfg.Port).Msg("Stor.ai server starting")
	if err := http.ListenAndServe(":"+cfg.Port, server); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
