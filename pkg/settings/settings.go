// Package settings loads the user-level tool configuration from
// ~/.config/roundup/config.toml. Unlike the per-project .roundup.json, these
// are machine-local preferences: credentials and cache tuning.
package settings

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/pasturelabs/roundup/pkg/errors"
)

// Settings is the user configuration file content.
type Settings struct {
	// GithubToken authenticates GitHub API calls. The GITHUB_TOKEN
	// environment variable overrides it.
	GithubToken string `toml:"github-token"`

	// CacheTTLHours is how long HTTP responses stay fresh. Zero keeps the
	// default of 24 hours.
	CacheTTLHours int `toml:"cache-ttl-hours"`

	// Registry tunes the publish-time availability polling.
	Registry RegistrySettings `toml:"registry"`
}

// RegistrySettings bounds the wait for the package registry to index a
// pushed tag.
type RegistrySettings struct {
	WaitIntervalSeconds int `toml:"wait-interval-seconds"`
	WaitTimeoutMinutes  int `toml:"wait-timeout-minutes"`
}

// Path returns the settings file location.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "roundup", "config.toml"), nil
}

// Load reads the settings file. A missing file yields defaults.
func Load() (*Settings, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads settings from an explicit path.
func LoadFrom(path string) (*Settings, error) {
	var s Settings
	if _, err := toml.DecodeFile(path, &s); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse settings %s", path)
	}
	if env := os.Getenv("GITHUB_TOKEN"); env != "" {
		s.GithubToken = env
	}
	return &s, nil
}

// CacheTTL returns the HTTP cache lifetime.
func (s *Settings) CacheTTL() time.Duration {
	if s.CacheTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.CacheTTLHours) * time.Hour
}

// WaitInterval returns the registry polling interval.
func (s *Settings) WaitInterval() time.Duration {
	if s.Registry.WaitIntervalSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(s.Registry.WaitIntervalSeconds) * time.Second
}

// WaitTimeout returns the overall registry polling budget.
func (s *Settings) WaitTimeout() time.Duration {
	if s.Registry.WaitTimeoutMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(s.Registry.WaitTimeoutMinutes) * time.Minute
}
