package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type SessionStoreKind string

const (
	SessionStoreMemory SessionStoreKind = "memory"
	SessionStoreRedis  SessionStoreKind = "redis"
)

type Config struct {
	Mode     Mode
	Debug    bool
	HTTPAddr string

	DBDriver string // sqlite|postgres
	DBDSN    string

	CORSOrigins    []string
	RequestTimeout time.Duration

	SessionStore  SessionStoreKind
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration
	LeaseTTL      time.Duration
	LeaseSecret   string

	DefaultExamSize int
	ReadRetries     int
}

// LoadDotEnv loads a .env file when one is present. Values already set in the
// process environment win.
func LoadDotEnv(paths ...string) bool {
	return godotenv.Load(paths...) == nil
}

func FromEnv() Config {
	mode := Mode(strings.ToLower(os.Getenv("MODE")))
	if mode != ModeProd {
		mode = ModeDev
	}
	return Config{
		Mode:            mode,
		Debug:           envBool("DEBUG", mode == ModeDev),
		HTTPAddr:        envOr("HTTP_ADDR", ":5001"),
		DBDriver:        envOr("DB_DRIVER", "sqlite"),
		DBDSN:           envOr("DB_DSN", ""),
		CORSOrigins:     csvOr("CORS_ORIGINS", "http://localhost:3000"),
		RequestTimeout:  envDuration("REQUEST_TIMEOUT", 30*time.Second),
		SessionStore:    SessionStoreKind(envOr("SESSION_STORE", string(SessionStoreMemory))),
		RedisAddr:       envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         envInt("REDIS_DB", 0),
		SessionTTL:      envDuration("SESSION_TTL", 2*time.Hour),
		LeaseTTL:        envDuration("LEASE_TTL", 30*time.Second),
		LeaseSecret:     envOr("LEASE_SECRET", "qbank-dev-lease-secret"),
		DefaultExamSize: envInt("DEFAULT_EXAM_SIZE", 10),
		ReadRetries:     envInt("READ_RETRIES", 2),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	return v
}

func envDuration(k string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(k)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
