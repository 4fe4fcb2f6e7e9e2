// Package config collects the environment-provided runtime configuration.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultDataDir    = "kompoti_data"
	DefaultListenAddr = "127.0.0.1:7113"
	DefaultTicketName = "kompoti-catalog"
	DefaultYTSURL     = "https://yts.lt"
)

// Config is read once at startup. Presence of registry credentials enables
// ticket publication to the discovery registry; absence merely disables it.
type Config struct {
	DataDir       string
	ListenAddr    string
	AnnounceAddrs []string

	RegistryURL   string
	RegistryToken string
	TicketName    string

	// SecretHex optionally seeds the identity file from the environment,
	// for deployments that distribute the publisher secret out-of-band.
	SecretHex string

	// YTSURL is the default catalog-wide setting re-asserted at startup.
	YTSURL string
}

// Load reads configuration from the environment, after a best-effort .env
// load. A missing .env file is not an error.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:       envOr("KOMPOTI_DATA_DIR", DefaultDataDir),
		ListenAddr:    envOr("KOMPOTI_LISTEN", DefaultListenAddr),
		RegistryURL:   os.Getenv("KOMPOTI_REGISTRY_URL"),
		RegistryToken: os.Getenv("KOMPOTI_REGISTRY_TOKEN"),
		TicketName:    envOr("KOMPOTI_TICKET_NAME", DefaultTicketName),
		SecretHex:     os.Getenv("KOMPOTI_SECRET"),
		YTSURL:        envOr("KOMPOTI_YTS_URL", DefaultYTSURL),
	}

	if announce := os.Getenv("KOMPOTI_ANNOUNCE"); announce != "" {
		for _, addr := range strings.Split(announce, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				cfg.AnnounceAddrs = append(cfg.AnnounceAddrs, addr)
			}
		}
	}
	if len(cfg.AnnounceAddrs) == 0 {
		cfg.AnnounceAddrs = []string{cfg.ListenAddr}
	}
	return cfg
}

// RegistryEnabled reports whether the discovery registry should be used.
func (c *Config) RegistryEnabled() bool {
	return c.RegistryURL != "" && c.RegistryToken != ""
}

func (c *Config) SecretKeyPath() string { return filepath.Join(c.DataDir, "secret_key") }
func (c *Config) AuthorKeyPath() string { return filepath.Join(c.DataDir, "author_key") }
func (c *Config) StorePath() string     { return filepath.Join(c.DataDir, "docs.db") }
func (c *Config) BlobDir() string       { return filepath.Join(c.DataDir, "blobs") }
func (c *Config) TicketPath() string    { return filepath.Join(c.DataDir, "ticket.txt") }

// EnsureDataDir creates the data directory if needed.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
