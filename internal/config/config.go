package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fossas/broker/internal/brokererr"
	"go.yaml.in/yaml/v3"
)

const (
	// DefaultConcurrency is the global scan pool size when unset.
	DefaultConcurrency = 10
	// DefaultRetentionDays is how long debug bundles are kept when unset.
	DefaultRetentionDays = 7
	// MinPollInterval is the shortest interval a Poller may be configured with.
	MinPollInterval = time.Hour
)

// DefaultDataRoot returns the platform default data root:
// $HOME/.config/fossa/broker on Unix, %USERPROFILE%\.config\fossa\broker on Windows.
func DefaultDataRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(home, ".config", "fossa", "broker"), nil
	}
	return filepath.Join(home, ".config", "fossa", "broker"), nil
}

// ConfigFileName is the name of the config file inside the data root.
const ConfigFileName = "config.yml"

// Load reads and validates the config file at path (or
// "<dataRoot>/config.yml" if path is empty), rejecting unknown keys at
// any level.
func Load(path, dataRoot string) (*Config, error) {
	if path == "" {
		path = filepath.Join(dataRoot, ConfigFileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, brokererr.New(brokererr.KindConfig, "config.read", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, brokererr.New(brokererr.KindConfig, "config.parse", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, brokererr.New(brokererr.KindConfig, "config.validate", err)
	}
	applyDefaults(&cfg)
	assignIntegrationIDs(&cfg)

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("version: only 1 is accepted (got %d)", cfg.Version)
	}
	if cfg.FossaEndpoint == "" {
		return fmt.Errorf("fossa_endpoint is required")
	}
	if cfg.FossaIntegrationKey.Empty() {
		return fmt.Errorf("fossa_integration_key is required")
	}
	if cfg.Debugging.Location == "" {
		return fmt.Errorf("debugging.location is required")
	}
	if cfg.Debugging.Retention.Days < 0 {
		return fmt.Errorf("debugging.retention.days must be >= 1")
	}

	seen := map[string]bool{}
	for idx := range cfg.Integrations {
		in := &cfg.Integrations[idx]
		if err := validateIntegration(in); err != nil {
			return fmt.Errorf("integrations[%d]: %w", idx, err)
		}
		key := normalizeRemote(in.Remote)
		if seen[key] {
			return fmt.Errorf("integrations[%d]: duplicate remote %q", idx, in.Remote)
		}
		seen[key] = true
	}
	return nil
}

func validateIntegration(in *Integration) error {
	if in.Type != "" && in.Type != "git" {
		return fmt.Errorf("type: only \"git\" is supported (got %q)", in.Type)
	}
	if in.Remote == "" {
		return fmt.Errorf("remote is required")
	}
	if in.PollInterval.Duration() < MinPollInterval {
		return fmt.Errorf("poll_interval must be >= 1h (got %s)", in.PollInterval)
	}
	if in.Auth.Kind == "" {
		return fmt.Errorf("auth is required")
	}

	// An scp-style remote (user@host:path) fails url.Parse because of the
	// colon before the first slash; it has no scheme and is an ssh remote.
	var scheme string
	if u, err := url.Parse(in.Remote); err == nil {
		scheme = strings.ToLower(u.Scheme)
	} else if i := strings.Index(in.Remote, ":"); i < 0 || strings.Contains(in.Remote[:i], "/") || strings.Contains(in.Remote, "://") {
		return fmt.Errorf("remote: %w", err)
	}
	switch scheme {
	case "http", "https":
		if !in.Auth.httpVariant() {
			return fmt.Errorf("remote scheme %q does not permit auth type %q", scheme, in.Auth.Kind)
		}
	case "ssh", "git+ssh", "":
		if !in.Auth.sshVariant() {
			return fmt.Errorf("remote scheme %q does not permit auth type %q", scheme, in.Auth.Kind)
		}
	default:
		return fmt.Errorf("remote: unsupported scheme %q", scheme)
	}

	if len(in.WatchedBranches) > 0 && !in.ImportBranchesOrDefault() {
		return fmt.Errorf("watched_branches is non-empty while import_branches=false")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Debugging.Retention.Days == 0 {
		cfg.Debugging.Retention.Days = DefaultRetentionDays
	}
}

func assignIntegrationIDs(cfg *Config) {
	for idx := range cfg.Integrations {
		cfg.Integrations[idx].ID = IntegrationID(cfg.Integrations[idx].Remote)
	}
}

// IntegrationID derives a stable identifier for a remote URL: the
// first 16 hex characters of sha256(normalized remote URL), so the
// same remote maps to the same ID across restarts even if the
// operator edits incidental formatting (trailing slash, .git suffix,
// scheme case).
func IntegrationID(remote string) string {
	sum := sha256.Sum256([]byte(normalizeRemote(remote)))
	return hex.EncodeToString(sum[:])[:16]
}

func normalizeRemote(remote string) string {
	s := strings.TrimSpace(remote)
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")
	if u, err := url.Parse(s); err == nil && u.Scheme != "" {
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		return u.String()
	}
	return strings.ToLower(s)
}
