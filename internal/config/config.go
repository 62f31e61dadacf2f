package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis (empty keeps tables in memory)
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Game Settings
	TurnWindowSeconds int
	TableTTLSeconds   int
	ExpiryPollSeconds int

	// SMS (DMark); empty disables maximum-break texts
	SMSBaseURL              string
	SMSUsername             string
	SMSPassword             string
	SMSRateLimitSeconds     int
	SMSTokenFallbackSeconds int

	// Security
	JWTSecret       string
	TokenTTLMinutes int
	BootstrapKey    string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/snooker?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", ""),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Game Settings
		TurnWindowSeconds: getEnvInt("TURN_WINDOW_SECONDS", 180),
		TableTTLSeconds:   getEnvInt("TABLE_TTL_SECONDS", 600),
		ExpiryPollSeconds: getEnvInt("EXPIRY_POLL_SECONDS", 30),

		// SMS
		SMSBaseURL:              getEnv("SMS_SERVICE_BASE_URL", ""),
		SMSUsername:             getEnv("SMS_SERVICE_USERNAME", ""),
		SMSPassword:             getEnv("SMS_SERVICE_PASSWORD", ""),
		SMSRateLimitSeconds:     getEnvInt("SMS_RATE_LIMIT_SECONDS", 60),
		SMSTokenFallbackSeconds: getEnvInt("SMS_TOKEN_FALLBACK_SECONDS", 3000),

		// Security
		JWTSecret:       getEnv("JWT_SECRET", "change-me-in-production"),
		TokenTTLMinutes: getEnvInt("TOKEN_TTL_MINUTES", 24*60),
		BootstrapKey:    getEnv("BOOTSTRAP_KEY", ""),
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
