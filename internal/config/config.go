package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr          string
	LogLevel          string
	APIPrefix         string
	RequestTimeout    time.Duration
	SessionTimeout    time.Duration
	DefaultMaxHistory int
	Groq              GroqConfig
	Storage           StorageConfig
}

type GroqConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	MaxAttempts int
}

type StorageConfig struct {
	Type string
	Path string
}

// Load читает конфигурацию из окружения. Файл .env, если он есть, подгружается заранее
// и не перетирает уже выставленные переменные.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config

	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":7860")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.APIPrefix = getEnv("API_PREFIX", "")

	reqTimeout, err := parseDuration(getEnv("HTTP_CLIENT_TIMEOUT", "60s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HTTP_CLIENT_TIMEOUT: %w", err)
	}
	cfg.RequestTimeout = reqTimeout

	sessionTimeout, err := parseDuration(getEnv("SESSION_TIMEOUT", "1h"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SESSION_TIMEOUT: %w", err)
	}
	cfg.SessionTimeout = sessionTimeout

	maxHistory, err := parseIntDefault(os.Getenv("DEFAULT_MAX_HISTORY"), 10)
	if err != nil {
		return Config{}, fmt.Errorf("parse DEFAULT_MAX_HISTORY: %w", err)
	}
	if maxHistory < 0 {
		return Config{}, fmt.Errorf("DEFAULT_MAX_HISTORY must not be negative, got %d", maxHistory)
	}
	cfg.DefaultMaxHistory = maxHistory

	maxTokens, err := parseIntDefault(os.Getenv("MAX_LENGTH"), 1024)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_LENGTH: %w", err)
	}
	temperature, err := parseFloatDefault(os.Getenv("TEMPERATURE"), 0.2)
	if err != nil {
		return Config{}, fmt.Errorf("parse TEMPERATURE: %w", err)
	}
	maxAttempts, err := parseIntDefault(os.Getenv("LLM_MAX_ATTEMPTS"), 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse LLM_MAX_ATTEMPTS: %w", err)
	}

	cfg.Groq = GroqConfig{
		APIKey:      getEnv("GROQ_API_KEY", ""),
		BaseURL:     getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		Model:       getEnv("GROQ_MODEL", "llama-3.1-8b-instant"),
		MaxTokens:   maxTokens,
		Temperature: temperature,
		MaxAttempts: maxAttempts,
	}

	cfg.Storage = StorageConfig{
		Type: getEnv("STORE_TYPE", "sqlite"),
		Path: getEnv("DATABASE_PATH", "./chatbot.db"),
	}

	return cfg, nil
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("duration is empty")
	}
	return time.ParseDuration(value)
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

// parseIntDefault парсит необязательное целое со значением по умолчанию.
func parseIntDefault(value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	return strconv.Atoi(value)
}

func parseFloatDefault(value string, def float64) (float64, error) {
	if value == "" {
		return def, nil
	}
	return strconv.ParseFloat(value, 64)
}
