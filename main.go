package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rps-arena/api"
	"rps-arena/config"
	"rps-arena/game"
	"rps-arena/identity"
	"rps-arena/room"
	"rps-arena/websocket"
)

func main() {
	cfg := config.Load()
	InitializeLogger(cfg)

	users := identity.NewStore()
	binder := websocket.NewBinder()
	engine := game.NewEngine(binder)

	var verifier identity.Verifier = users
	if cfg.UserServiceURL != "" {
		verifier = identity.NewHTTPVerifier(cfg.UserServiceURL)
		log.Info().Str("url", cfg.UserServiceURL).Msg("Verifying users against external service")
	}

	starter := room.StarterFunc(func(roomID string, players []string) error {
		_, err := engine.StartMatch(roomID, players)
		return err
	})
	rooms := room.NewRegistry(verifier, starter, binder)

	server := api.NewServer(rooms, engine, users, binder)

	log.Info().Msg("Starting App")
	if err := server.Start(":"+cfg.Port, cfg.AllowedOrigins); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func InitializeLogger(cfg config.Config) {
	if !cfg.LoggingToFile {
		log.Logger = log.Output(os.Stdout)
	} else {
		runLogFile, err := os.OpenFile(
			cfg.LogFile,
			os.O_APPEND|os.O_CREATE|os.O_WRONLY,
			0664,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open log file")
		}
		multi := zerolog.MultiLevelWriter(runLogFile, os.Stdout)
		log.Logger = zerolog.New(multi).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
