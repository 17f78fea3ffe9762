// Package config loads server configuration from the environment. All
// settings come from PROXMOX_* variables, optionally seeded from a .env
// file. The resulting Config is read-only for the life of the process.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds everything the server needs: the Proxmox API endpoint and
// token credentials, TLS posture, and the listen addresses.
type Config struct {
	// Proxmox API endpoint and credentials.
	Host       string // host[:port] or full https:// URL
	User       string // e.g. "root@pam"
	TokenName  string // API token id, e.g. "mcp"
	TokenValue string // API token secret

	// TLS posture for the upstream connection.
	VerifySSL   bool
	Fingerprint string // pinned certificate SHA256 fingerprint

	// Upstream request timeout.
	Timeout time.Duration

	// Listen addresses.
	ListenAddr  string // MCP JSON-RPC endpoint
	MetricsAddr string // Prometheus endpoint; empty disables it

	// Logging.
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment, seeding it from .env in
// the working directory when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded configuration from .env")
	}

	cfg := &Config{
		Host:        os.Getenv("PROXMOX_HOST"),
		User:        envOr("PROXMOX_USER", "root@pam"),
		TokenName:   os.Getenv("PROXMOX_TOKEN_NAME"),
		TokenValue:  os.Getenv("PROXMOX_TOKEN_VALUE"),
		VerifySSL:   envBool("PROXMOX_VERIFY_SSL", true),
		Fingerprint: os.Getenv("PROXMOX_FINGERPRINT"),
		Timeout:     envDuration("PROXMOX_TIMEOUT", 30*time.Second),
		ListenAddr:  envOr("PROXMOX_MCP_LISTEN", "127.0.0.1:8812"),
		MetricsAddr: os.Getenv("PROXMOX_MCP_METRICS_LISTEN"),
		LogLevel:    envOr("PROXMOX_MCP_LOG_LEVEL", "info"),
		LogFormat:   envOr("PROXMOX_MCP_LOG_FORMAT", "auto"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "PROXMOX_HOST")
	}
	if c.TokenName == "" {
		missing = append(missing, "PROXMOX_TOKEN_NAME")
	}
	if c.TokenValue == "" {
		missing = append(missing, "PROXMOX_TOKEN_VALUE")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if !strings.Contains(c.User, "@") {
		return fmt.Errorf("PROXMOX_USER must include a realm (e.g. root@pam), got %q", c.User)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("var", key).Str("value", v).Msg("Invalid boolean, using default")
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("var", key).Str("value", v).Msg("Invalid duration, using default")
		return fallback
	}
	return d
}
