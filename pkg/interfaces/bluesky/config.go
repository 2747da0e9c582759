package bluesky

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// MaxURIsPerRequest is the API's hard cap on post-lookup batch size.
const MaxURIsPerRequest = 25

// Config holds connection and rate-limit settings for the Bluesky
// AppView API.
type Config struct {
	// API Endpoints
	BaseURL            string
	GetPostsEndpoint   string
	AuthorFeedEndpoint string

	// Rate Limiting
	RequestsPerWindow int
	RateWindow        time.Duration

	// Per-call timeout; short so a hung call cannot stall a batch.
	RequestTimeout time.Duration

	// General Config
	Logger *logrus.Logger
}

// NewConfig builds a Config from the environment, loading .env when
// present.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	requestsPerWindow, _ := strconv.Atoi(getEnvOrDefault("BSKY_RATE_LIMIT", "3000"))
	rateWindowMinutes, _ := strconv.Atoi(getEnvOrDefault("BSKY_RATE_WINDOW_MINUTES", "5"))
	timeoutSeconds, _ := strconv.Atoi(getEnvOrDefault("BSKY_REQUEST_TIMEOUT_SECONDS", "15"))

	config := &Config{
		BaseURL:            getEnvOrDefault("BSKY_API_BASE_URL", "https://public.api.bsky.app/xrpc"),
		GetPostsEndpoint:   "/app.bsky.feed.getPosts",
		AuthorFeedEndpoint: "/app.bsky.feed.getAuthorFeed",

		RequestsPerWindow: requestsPerWindow,
		RateWindow:        time.Duration(rateWindowMinutes) * time.Minute,
		RequestTimeout:    time.Duration(timeoutSeconds) * time.Second,

		Logger: func() *logrus.Logger {
			log := logrus.New()
			if level := os.Getenv("LOG_LEVEL"); level != "" {
				if parsedLevel, err := logrus.ParseLevel(level); err == nil {
					log.SetLevel(parsedLevel)
				}
			}
			return log
		}(),
	}

	config.Logger.WithFields(logrus.Fields{
		"base_url":        config.BaseURL,
		"rate_limit":      config.RequestsPerWindow,
		"rate_window":     config.RateWindow.String(),
		"request_timeout": config.RequestTimeout.String(),
	}).Debug("Bluesky config initialized")

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the config for usable values.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", c.RequestsPerWindow)
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("rate window must be positive, got %s", c.RateWindow)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
