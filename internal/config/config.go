package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings for the maildeck engine.
type Config struct {
	Environment      string
	APIBaseURL       string
	APIToken         string
	AccountID        string
	WebSocketURL     string
	AutosaveInterval time.Duration
	PageLimit        int
}

// NewConfig loads configuration from the environment. In development a
// .env file is loaded first when present.
func NewConfig() (*Config, error) {
	env := os.Getenv("MAILDECK_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{
		Environment:      env,
		APIBaseURL:       os.Getenv("MAILDECK_API_BASE_URL"),
		APIToken:         os.Getenv("MAILDECK_API_TOKEN"),
		AccountID:        os.Getenv("MAILDECK_ACCOUNT_ID"),
		WebSocketURL:     os.Getenv("MAILDECK_WS_URL"),
		AutosaveInterval: time.Duration(getEnvIntOrDefault("MAILDECK_AUTOSAVE_SECONDS", 30)) * time.Second,
		PageLimit:        getEnvIntOrDefault("MAILDECK_PAGE_LIMIT", 50),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("MAILDECK_API_BASE_URL is required")
	}

	if c.APIToken == "" {
		return fmt.Errorf("MAILDECK_API_TOKEN is required")
	}

	if c.AutosaveInterval <= 0 {
		return fmt.Errorf("MAILDECK_AUTOSAVE_SECONDS must be positive")
	}

	return nil
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
