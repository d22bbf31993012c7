package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	AssetDriver   string // fs
	AssetBasePath string

	JWTSecret string

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOrigins []string

	// How often clients are expected to heartbeat. Timeout enforcement is
	// lazy, so this also bounds how stale a persisted elapsed snapshot gets.
	HeartbeatInterval time.Duration

	// Practice mode: delay before the current index auto-advances after a
	// feedback response.
	PracticeAdvanceDelay time.Duration

	SessionListLimit int
}

// FromEnv builds the runtime config. A .env file in the working directory is
// loaded first when present; real environment variables win.
func FromEnv() Config {
	_ = godotenv.Load()

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:  addr,
		PublicURL: os.Getenv("PUBLIC_URL"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		AssetDriver:   envOr("ASSET_DRIVER", "fs"),
		AssetBasePath: envOr("ASSET_BASE_PATH", "./data"),

		JWTSecret: envOr("JWT_SECRET", "dev-insecure-secret"),

		AdminUser:     envOr("ADMIN_USER", "admin"),
		AdminPassHash: envOr("ADMIN_PASS_HASH", ""),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),

		HeartbeatInterval:    envDuration("HEARTBEAT_INTERVAL", 15*time.Second),
		PracticeAdvanceDelay: envDuration("PRACTICE_ADVANCE_DELAY", 2*time.Second),

		SessionListLimit: envInt("SESSION_LIST_LIMIT", 50),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
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
