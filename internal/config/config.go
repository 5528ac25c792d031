package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration. Values come from the
// environment (a .env file is honored) and may be overridden by
// command-line flags.
type Config struct {
	Port string

	// Artifact paths
	IndexPath    string
	MetadataPath string

	// Encoder model files
	ModelPath      string
	TokenizerPath  string
	EncoderTimeout time.Duration
	EncoderThreads int

	CORSOrigins []string
	Debug       bool
}

// Load reads configuration from the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		IndexPath:      getEnv("INDEX_PATH", "bible_verses.index"),
		MetadataPath:   getEnv("METADATA_PATH", "bible_verse_metadata.json"),
		ModelPath:      getEnv("MODEL_PATH", "theological_bert/model.onnx"),
		TokenizerPath:  getEnv("TOKENIZER_PATH", "theological_bert/tokenizer.model"),
		EncoderTimeout: getEnvDuration("ENCODER_TIMEOUT", 2*time.Minute),
		EncoderThreads: getEnvInt("ENCODER_THREADS", 4),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),
		Debug:          getEnv("DEBUG", "") != "",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
