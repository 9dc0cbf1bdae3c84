// Package project models the releasable dependency graph: a root recipe and
// the child libraries discovered through composer require entries, filtered
// by the configured vendor allowlist.
//
// Expensive derived data (manifest, config, repository handle, tag list) is
// cached per library with explicit invalidation points; AddTag clears the
// tag cache.
package project

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pasturelabs/roundup/pkg/composer"
	"github.com/pasturelabs/roundup/pkg/errors"
	"github.com/pasturelabs/roundup/pkg/gitx"
	"github.com/pasturelabs/roundup/pkg/semver"
)

// Library is a releasable unit: a directory holding a composer manifest
// inside its own git repository.
type Library struct {
	dir     string
	project *Project

	manifest *composer.Schema
	config   *Config
	repo     *gitx.Repo
	tags     []semver.Version
	tagsSet  bool
}

// Dir returns the library's working directory.
func (l *Library) Dir() string { return l.dir }

// Name returns the composer package name.
func (l *Library) Name() (string, error) {
	m, err := l.Manifest()
	if err != nil {
		return "", err
	}
	return m.Name, nil
}

// Manifest returns the parsed composer.json, cached after the first read.
func (l *Library) Manifest() (*composer.Schema, error) {
	if l.manifest == nil {
		m, err := composer.Load(filepath.Join(l.dir, composer.Filename))
		if err != nil {
			return nil, err
		}
		l.manifest = m
	}
	return l.manifest, nil
}

// ReloadManifest drops the manifest cache, re-reading on next access.
// Call after rewriting constraints on disk.
func (l *Library) ReloadManifest() { l.manifest = nil }

// Config returns the library's tool config, cached. A missing config file
// yields an empty config.
func (l *Library) Config() (*Config, error) {
	if l.config == nil {
		cfg, err := LoadConfig(filepath.Join(l.dir, ConfigFilename))
		if err != nil {
			return nil, err
		}
		l.config = cfg
	}
	return l.config, nil
}

// Repo returns the git repository handle for this library, cached.
func (l *Library) Repo() (*gitx.Repo, error) {
	if l.repo == nil {
		repo, err := gitx.Open(l.dir)
		if err != nil {
			return nil, err
		}
		l.repo = repo
	}
	return l.repo, nil
}

// Tags returns the library's version tags, parsed and cached. Tag names
// outside the version grammar are skipped.
func (l *Library) Tags() ([]semver.Version, error) {
	if !l.tagsSet {
		repo, err := l.Repo()
		if err != nil {
			return nil, err
		}
		raw, err := repo.Tags()
		if err != nil {
			return nil, err
		}
		l.tags = semver.ParseMany(raw)
		l.tagsSet = true
	}
	return l.tags, nil
}

// AddTag creates an annotated tag for the version at the library's HEAD and
// invalidates the tag cache.
func (l *Library) AddTag(ctx context.Context, v semver.Version, message string) error {
	repo, err := l.Repo()
	if err != nil {
		return err
	}
	if err := repo.CreateTag(ctx, v.Tag(), message); err != nil {
		return err
	}
	l.tags = nil
	l.tagsSet = false
	return nil
}

// HasTag reports whether the exact version is already tagged.
func (l *Library) HasTag(v semver.Version) (bool, error) {
	tags, err := l.Tags()
	if err != nil {
		return false, err
	}
	for _, t := range tags {
		if t.Equals(v) {
			return true, nil
		}
	}
	return false, nil
}

// HasTagAtHead reports whether the exact version is tagged on the current
// HEAD commit, meaning a release of that version would add nothing.
func (l *Library) HasTagAtHead(v semver.Version) (bool, error) {
	repo, err := l.Repo()
	if err != nil {
		return false, err
	}
	names, err := repo.HeadTags()
	if err != nil {
		return false, err
	}
	for _, t := range semver.ParseMany(names) {
		if t.Equals(v) {
			return true, nil
		}
	}
	return false, nil
}

// ConstraintFor parses the constraint this library declares for a child.
// The parent version resolves self.version references.
func (l *Library) ConstraintFor(child string, parentVersion semver.Version) (*semver.Constraint, error) {
	m, err := l.Manifest()
	if err != nil {
		return nil, err
	}
	raw, ok := m.Require[child]
	if !ok {
		return nil, errors.New(errors.ErrCodeLogic, "%s does not require %s", l.dir, child)
	}
	return semver.ParseConstraint(raw, &parentVersion)
}

// childConfig is the config used for child discovery: the library's own when
// it declares a vendor allowlist, otherwise the project root's.
func (l *Library) childConfig() (*Config, error) {
	cfg, err := l.Config()
	if err != nil {
		return nil, err
	}
	if len(cfg.Vendors) > 0 || l.project == nil {
		return cfg, nil
	}
	return l.project.Config()
}

// Children resolves the direct child libraries: require entries whose vendor
// prefix is allowed and not excluded. A qualifying dependency without an
// installed path is a LOGIC_ERROR (inconsistent checkout).
func (l *Library) Children() ([]*Library, error) {
	m, err := l.Manifest()
	if err != nil {
		return nil, err
	}
	cfg, err := l.childConfig()
	if err != nil {
		return nil, err
	}

	var children []*Library
	for _, name := range sortedKeys(m.Require) {
		vendor, _, ok := strings.Cut(name, "/")
		if !ok || !cfg.AllowsVendor(vendor) || cfg.IsExcluded(name) {
			continue
		}
		dir, ok := l.project.ModulePath(name)
		if !ok {
			return nil, errors.New(errors.ErrCodeLogic,
				"dependency %s of %s is not installed in the project checkout", name, l.dir)
		}
		children = append(children, l.project.library(dir))
	}
	return children, nil
}

// AllChildren returns the transitive closure of Children, merging duplicate
// names with later discoveries winning. Each library directory is walked at
// most once, so mutually requiring libraries and shared diamond subtrees
// terminate.
func (l *Library) AllChildren() ([]*Library, error) {
	byName := map[string]*Library{}
	var order []string
	walked := map[string]bool{}

	var walk func(lib *Library) error
	walk = func(lib *Library) error {
		if walked[lib.dir] {
			return nil
		}
		walked[lib.dir] = true
		children, err := lib.Children()
		if err != nil {
			return err
		}
		for _, child := range children {
			name, err := child.Name()
			if err != nil {
				return err
			}
			if _, seen := byName[name]; !seen {
				order = append(order, name)
			}
			byName[name] = child
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(l); err != nil {
		return nil, err
	}

	out := make([]*Library, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out, nil
}

// IsChildUpgradeOnly reports whether the named child is policy-bound to
// existing tags only.
func (l *Library) IsChildUpgradeOnly(name string) (bool, error) {
	cfg, err := l.childConfig()
	if err != nil {
		return false, err
	}
	return cfg.IsUpgradeOnly(name), nil
}

// IsStabilityInherited reports whether the named child follows the parent's
// stability track.
func (l *Library) IsStabilityInherited(name string) (bool, error) {
	cfg, err := l.childConfig()
	if err != nil {
		return false, err
	}
	return cfg.StabilityInherit.Inherits(name), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Deterministic child order keeps plans and rendered output stable.
	sort.Strings(keys)
	return keys
}
