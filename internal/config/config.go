package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	FFmpegPath   string
	OutputDir    string
	LogLevel     slog.Level
	LogFormat    string // "text" or "json"
	ImageQuality float64
	Strict       bool
}

// Load reads configuration from FILECONV_* environment variables.
func Load() *Config {
	return &Config{
		FFmpegPath:   getEnv("FILECONV_FFMPEG_PATH", ""),
		OutputDir:    getEnv("FILECONV_OUTPUT_DIR", "."),
		LogLevel:     parseLevel(getEnv("FILECONV_LOG_LEVEL", "info")),
		LogFormat:    strings.ToLower(getEnv("FILECONV_LOG_FORMAT", "text")),
		ImageQuality: parseQuality(getEnv("FILECONV_IMAGE_QUALITY", "0.95")),
		Strict:       getEnv("FILECONV_STRICT", "false") == "true",
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseQuality(s string) float64 {
	q, err := strconv.ParseFloat(s, 64)
	if err != nil || q <= 0 || q > 1 {
		return 0.95
	}
	return q
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
