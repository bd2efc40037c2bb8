package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      int
	DBPath    string
	LogLevel  string
	LogFormat string

	// API is the attendance backend.
	APIURL   string
	APIToken string

	// PublicURL is where push services reach this agent. Push is disabled
	// without it.
	PublicURL string
	// NotificationPermission answers permission requests: granted, denied
	// or default.
	NotificationPermission string
	CacheTTL               time.Duration

	// VAPID keys enable the loopback test sender.
	VAPIDPublicKey  string
	VAPIDPrivateKey string
}

// Load reads files (".env" when none given) into the environment, without
// overriding variables already set, then builds the Config. Missing files
// are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	port, err := strconv.Atoi(getEnv("PRESENZE_PORT", "8080"))
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid PRESENZE_PORT %q", os.Getenv("PRESENZE_PORT"))
	}

	ttl, err := time.ParseDuration(getEnv("PRESENZE_CACHE_TTL", "30s"))
	if err != nil || ttl < 0 {
		return nil, fmt.Errorf("invalid PRESENZE_CACHE_TTL %q", os.Getenv("PRESENZE_CACHE_TTL"))
	}

	cfg := &Config{
		Port:                   port,
		DBPath:                 getEnv("PRESENZE_DB_PATH", "presenze.db"),
		LogLevel:               getEnv("PRESENZE_LOG_LEVEL", "info"),
		LogFormat:              getEnv("PRESENZE_LOG_FORMAT", "text"),
		APIURL:                 strings.TrimRight(getEnv("PRESENZE_API_URL", "http://localhost:3000"), "/"),
		APIToken:               os.Getenv("PRESENZE_API_TOKEN"),
		PublicURL:              strings.TrimRight(os.Getenv("PRESENZE_PUBLIC_URL"), "/"),
		NotificationPermission: strings.ToLower(getEnv("PRESENZE_NOTIFICATION_PERMISSION", "granted")),
		CacheTTL:               ttl,
		VAPIDPublicKey:         os.Getenv("PRESENZE_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey:        os.Getenv("PRESENZE_VAPID_PRIVATE_KEY"),
	}

	switch cfg.NotificationPermission {
	case "granted", "denied", "default":
	default:
		return nil, fmt.Errorf("invalid PRESENZE_NOTIFICATION_PERMISSION %q", cfg.NotificationPermission)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid PRESENZE_LOG_FORMAT %q", cfg.LogFormat)
	}
	if (cfg.VAPIDPublicKey == "") != (cfg.VAPIDPrivateKey == "") {
		return nil, errors.New("PRESENZE_VAPID_PUBLIC_KEY and PRESENZE_VAPID_PRIVATE_KEY must be set together")
	}

	return cfg, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// LoopbackEnabled reports whether /api/push/test can send.
func (c *Config) LoopbackEnabled() bool {
	return c.VAPIDPrivateKey != ""
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
