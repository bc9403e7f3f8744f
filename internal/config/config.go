// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string

	// Authentication
	JWTSecret string
	JWTExpiry time.Duration

	// Workflow backend fallback, used when no backend config row is active
	ComfyUIAPIURL  string
	ComfyUIAPIKey  string
	ComfyUITimeout time.Duration

	// Payment gateway
	ZPayMerchantID string
	ZPaySecretKey  string
	ZPayAPIURL     string
	ZPayTimeout    time.Duration

	// CORS
	CORSOrigins []string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:pixforge.db?_journal=WAL&_timeout=5000"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTExpiry: getEnvDuration("JWT_EXPIRY", 168*time.Hour),

		ComfyUIAPIURL:  getEnv("COMFYUI_API_URL", ""),
		ComfyUIAPIKey:  getEnv("COMFYUI_API_KEY", ""),
		ComfyUITimeout: getEnvDuration("COMFYUI_TIMEOUT", 30*time.Second),

		ZPayMerchantID: getEnv("ZPAY_MERCHANT_ID", ""),
		ZPaySecretKey:  getEnv("ZPAY_SECRET_KEY", ""),
		ZPayAPIURL:     getEnv("ZPAY_API_URL", "https://api.z-pay.cn"),
		ZPayTimeout:    getEnvDuration("ZPAY_TIMEOUT", 10*time.Second),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
