package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all environment-driven settings for the service.
type Config struct {
	Host            string
	Port            string
	ModelPath       string
	ModelURL        string
	DatabaseDSN     string
	RedisAddr       string
	AllowedOrigin   string
	MaxPayloadBytes int64
}

// Load reads configuration from a .env file (when present) and the process
// environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading, continuing with environment variables")
	}

	maxPayloadStr := getEnv("MAX_PAYLOAD_BYTES", "1000000")
	maxPayload, err := strconv.ParseInt(maxPayloadStr, 10, 64)
	if err != nil || maxPayload <= 0 {
		log.Printf("Invalid MAX_PAYLOAD_BYTES value '%s', using default 1000000", maxPayloadStr)
		maxPayload = 1000000
	}

	cfg := &Config{
		Host:            getEnv("HOST", "0.0.0.0"),
		Port:            getEnv("PORT", "8080"),
		ModelPath:       getEnv("MODEL_PATH", "models/model.onnx"),
		ModelURL:        getEnv("MODEL_URL", ""),
		DatabaseDSN:     getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=asclepius port=5432 sslmode=disable"),
		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		AllowedOrigin:   getEnv("ALLOWED_ORIGIN", "https://angular-stacker-446203-s0.et.r.appspot.com"),
		MaxPayloadBytes: maxPayload,
	}

	return cfg, nil
}

// Addr returns the host:port pair the HTTP server listens on.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
