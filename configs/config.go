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

type Dispatch struct {
	PublishTimeout  time.Duration
	GenerateTimeout time.Duration
	MaxConcurrent   int
}

type Sweep struct {
	Interval    time.Duration
	GraceWindow time.Duration
	DrainWait   time.Duration
}

type Config struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	PostgresURI        string
	RedisURI           string
	FrontendURL        string
	GeminiRunnerURL    string
	UploadDir          string
	R2                 R2
	Dispatch           Dispatch
	Sweep              Sweep
	SecretKey          string
	CookieName         string
}

func LoadConfig() *Config {
	return &Config{
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", ""),
		PostgresURI:        getEnv("POSTGRES_URI", ""),
		RedisURI:           getEnv("REDIS_URI", ""),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:5173"),
		GeminiRunnerURL:    getEnv("GEMINI_RUNNER_URL", "http://localhost:8600"),
		UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		Dispatch: Dispatch{
			PublishTimeout:  getDuration("PUBLISH_TIMEOUT", 60*time.Second),
			GenerateTimeout: getDuration("GENERATE_TIMEOUT", 10*time.Minute),
			MaxConcurrent:   getInt("DISPATCH_MAX_CONCURRENT", 4),
		},
		Sweep: Sweep{
			Interval:    getDuration("SWEEP_INTERVAL", time.Minute),
			GraceWindow: getDuration("SWEEP_GRACE_WINDOW", 5*time.Minute),
			DrainWait:   getDuration("SWEEP_DRAIN_WAIT", 30*time.Second),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
