package project

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pasturelabs/roundup/pkg/errors"
	"github.com/pasturelabs/roundup/pkg/semver"
)

// ConfigFilename is the per-library tool configuration file.
const ConfigFilename = ".roundup.json"

// Config is the per-library release configuration. All fields are optional;
// a library without a config file behaves as a plain leaf.
type Config struct {
	// GithubSlug is the owner/repo pair used for GitHub release publishing.
	GithubSlug string `json:"github-slug,omitempty"`

	// Vendors is the allowlist of vendor prefixes whose require entries are
	// treated as releasable child libraries.
	Vendors []string `json:"vendors,omitempty"`

	// Exclude removes specific packages from child discovery even when their
	// vendor is allowed.
	Exclude []string `json:"exclude,omitempty"`

	// UpgradeOnly lists children that are only ever bumped to an existing
	// tag during a release, never newly tagged.
	UpgradeOnly []string `json:"upgrade-only,omitempty"`

	// StabilityInherit selects children that inherit the parent's stability
	// track instead of defaulting to stable. Accepts true (all children) or
	// a list of package names.
	StabilityInherit StabilityInherit `json:"stability-inherit,omitempty"`

	// DependencyConstraint selects how child constraints are rewritten when
	// a release is published: "exact" (default), "tilde", or "caret".
	DependencyConstraint string `json:"dependency-constraint,omitempty"`
}

// StabilityInherit models a JSON field that is either a boolean or a list of
// package names.
type StabilityInherit struct {
	All      bool
	Packages []string
}

// UnmarshalJSON accepts `true`, `false`, or `["vendor/name", ...]`.
func (s *StabilityInherit) UnmarshalJSON(data []byte) error {
	var all bool
	if err := json.Unmarshal(data, &all); err == nil {
		*s = StabilityInherit{All: all}
		return nil
	}
	var packages []string
	if err := json.Unmarshal(data, &packages); err == nil {
		*s = StabilityInherit{Packages: packages}
		return nil
	}
	return errors.New(errors.ErrCodeInvalidConfig, "stability-inherit must be a boolean or a list of package names")
}

// MarshalJSON renders the boolean form when no explicit list is set.
func (s StabilityInherit) MarshalJSON() ([]byte, error) {
	if s.Packages != nil {
		return json.Marshal(s.Packages)
	}
	return json.Marshal(s.All)
}

// Inherits reports whether the named child inherits the parent's stability.
func (s StabilityInherit) Inherits(name string) bool {
	if s.All {
		return true
	}
	for _, p := range s.Packages {
		if p == name {
			return true
		}
	}
	return false
}

// LoadConfig reads the tool config at path. A missing file yields an empty,
// valid config. The config is validated once here; callers can rely on it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}

	var cfg Config
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field values that cannot be expressed in the schema shape.
func (c *Config) Validate() error {
	switch c.DependencyConstraint {
	case "", "exact", "tilde", "caret":
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"dependency-constraint must be exact, tilde, or caret, got %q", c.DependencyConstraint)
	}
	for _, v := range c.Vendors {
		if strings.Contains(v, "/") {
			return errors.New(errors.ErrCodeInvalidConfig,
				"vendors entries are bare vendor prefixes, got %q", v)
		}
	}
	return nil
}

// ConstraintType maps the configured rewrite style to a semver constraint
// type, defaulting to exact pinning.
func (c *Config) ConstraintType() semver.ConstraintType {
	switch c.DependencyConstraint {
	case "tilde":
		return semver.ConstraintTilde
	case "caret":
		return semver.ConstraintCaret
	default:
		return semver.ConstraintExact
	}
}

// IsUpgradeOnly reports whether name is in the upgrade-only set.
func (c *Config) IsUpgradeOnly(name string) bool {
	for _, n := range c.UpgradeOnly {
		if n == name {
			return true
		}
	}
	return false
}

// IsExcluded reports whether name is explicitly excluded from discovery.
func (c *Config) IsExcluded(name string) bool {
	for _, n := range c.Exclude {
		if n == name {
			return true
		}
	}
	return false
}

// AllowsVendor reports whether the vendor prefix is in the allowlist.
func (c *Config) AllowsVendor(vendor string) bool {
	for _, v := range c.Vendors {
		if v == vendor {
			return true
		}
	}
	return false
}
