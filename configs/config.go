package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Config struct {
	TwitterAPIKey        string
	TwitterAPISecret     string
	LinkedinClientID     string
	LinkedinClientSecret string
	LinkedinRedirectURI  string
	BufferClientID       string
	BufferClientSecret   string
	BufferAccessToken    string
	BufferRedirectURI    string
	PostgresURI          string
	RedisURI             string
	FrontendURL          string
	WebhookURL           string
	R2                   R2
	SecretKey            string
	CookieName           string
	PollInterval         time.Duration
	ShutdownTimeout      time.Duration
	MaxConcurrentPublish int
	HourlyPostLimit      int
}

func LoadConfig() *Config {
	return &Config{
		TwitterAPIKey:        getEnv("TWITTER_API_KEY", ""),
		TwitterAPISecret:     getEnv("TWITTER_API_SECRET", ""),
		LinkedinClientID:     getEnv("LINKEDIN_CLIENT_ID", ""),
		LinkedinClientSecret: getEnv("LINKEDIN_CLIENT_SECRET", ""),
		LinkedinRedirectURI:  getEnv("LINKEDIN_REDIRECT_URI", ""),
		BufferClientID:       getEnv("BUFFER_CLIENT_ID", ""),
		BufferClientSecret:   getEnv("BUFFER_CLIENT_SECRET", ""),
		BufferAccessToken:    getEnv("BUFFER_ACCESS_TOKEN", ""),
		BufferRedirectURI:    getEnv("BUFFER_REDIRECT_URI", ""),
		PostgresURI:          getEnv("POSTGRES_URI", ""),
		RedisURI:             getEnv("REDIS_URI", ""),
		FrontendURL:          getEnv("FRONTEND_URL", "http://localhost:5173"),
		WebhookURL:           getEnv("WEBHOOK_URL", ""),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		SecretKey:            getEnv("SECRET_KEY", ""),
		CookieName:           getEnv("COOKIE_NAME", "postpilot_session"),
		PollInterval:         getEnvDuration("WORKER_POLL_INTERVAL", 30*time.Second),
		ShutdownTimeout:      getEnvDuration("WORKER_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxConcurrentPublish: getEnvInt("MAX_CONCURRENT_PUBLISH", 5),
		HourlyPostLimit:      getEnvInt("HOURLY_POST_LIMIT", 10),
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
