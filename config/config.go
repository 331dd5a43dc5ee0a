package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds everything read from the environment at startup. A .env
// file in the working directory is honored but optional.
type Config struct {
	Port           string
	UserServiceURL string // empty means verify against the built-in user store
	AllowedOrigins []string
	LoggingToFile  bool
	LogFile        string
}

func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded configuration from .env")
	}

	cfg := Config{
		Port:           getenv("PORT", "8080"),
		UserServiceURL: os.Getenv("USER_SERVICE_URL"),
		AllowedOrigins: splitOrigins(getenv("ALLOWED_ORIGINS", "*")),
		LoggingToFile:  os.Getenv("LOGGING") == "true",
		LogFile:        getenv("LOG_FILE", "rps-arena.log"),
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
