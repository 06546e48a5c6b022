package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full application configuration, assembled once in main and
// passed down explicitly. No package reads the environment on its own.
type Config struct {
	Server     Server
	Provider   Provider
	Enrollment Enrollment
	Redis      Redis
	Database   Database
	Blob       Blob
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
	// TokenSigningKey signs enrollment session tokens (HS256).
	TokenSigningKey string
}

// Provider configures the external voice verification provider. The bridge
// takes this struct at construction; there is no ambient global state.
type Provider struct {
	ServiceURL string
	APIKey     string
	Timeout    time.Duration
	// AllowFallback controls whether provider failures fall through to the
	// local heuristic. When false, provider errors surface to the caller.
	AllowFallback bool
}

// Configured reports whether an external provider endpoint and credential
// are both present.
func (p Provider) Configured() bool {
	return p.ServiceURL != "" && p.APIKey != ""
}

// Enrollment captures the enrollment session policy.
type Enrollment struct {
	SamplesRequired int
	SessionTTL      time.Duration
}

// Redis configures the session store connection.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Database configures the Postgres connection for profiles and samples.
type Database struct {
	URL string
}

// Blob configures the S3-compatible object store for raw audio. Endpoint is
// optional; set it for MinIO or another non-AWS backend.
type Blob struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            envOr("VOICEGATE_ADDR", ":8080"),
			TokenSigningKey: envOr("VOICEGATE_TOKEN_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Provider: Provider{
			ServiceURL:    os.Getenv("VOICE_PROVIDER_URL"),
			APIKey:        os.Getenv("VOICE_PROVIDER_API_KEY"),
			Timeout:       envDuration("VOICE_PROVIDER_TIMEOUT", 15*time.Second),
			AllowFallback: os.Getenv("VOICE_PROVIDER_ALLOW_FALLBACK") != "false",
		},
		Enrollment: Enrollment{
			SamplesRequired: envInt("VOICEGATE_SAMPLES_REQUIRED", 3),
			SessionTTL:      envDuration("VOICEGATE_SESSION_TTL", 30*time.Minute),
		},
		Redis: Redis{
			URL:          os.Getenv("VOICEGATE_REDIS_URL"),
			PoolSize:     envInt("VOICEGATE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("VOICEGATE_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("VOICEGATE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("VOICEGATE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("VOICEGATE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Database: Database{
			URL: os.Getenv("VOICEGATE_DATABASE_URL"),
		},
		Blob: Blob{
			Bucket:          os.Getenv("VOICEGATE_BLOB_BUCKET"),
			Prefix:          envOr("VOICEGATE_BLOB_PREFIX", "voice-samples"),
			Region:          envOr("VOICEGATE_BLOB_REGION", "us-east-1"),
			Endpoint:        os.Getenv("VOICEGATE_BLOB_ENDPOINT"),
			AccessKeyID:     os.Getenv("VOICEGATE_BLOB_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("VOICEGATE_BLOB_SECRET_ACCESS_KEY"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
