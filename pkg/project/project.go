package project

import (
	"os"
	"path/filepath"

	"github.com/pasturelabs/roundup/pkg/composer"
	"github.com/pasturelabs/roundup/pkg/errors"
)

// Project is the release root: the recipe checkout whose vendor directory
// holds the installed child libraries.
type Project struct {
	Library

	libraries map[string]*Library
}

// New opens the project at dir. The directory must contain a composer
// manifest to be a valid release root.
func New(dir string) (*Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLogic, err, "resolve project dir %s", dir)
	}
	if _, err := os.Stat(filepath.Join(abs, composer.Filename)); err != nil {
		return nil, errors.New(errors.ErrCodeInvalidManifest,
			"%s is not a composer project (missing %s)", abs, composer.Filename)
	}

	p := &Project{libraries: map[string]*Library{}}
	p.Library = Library{dir: abs, project: p}
	return p, nil
}

// Root returns the project's own library node.
func (p *Project) Root() *Library { return &p.Library }

// ModulePath resolves an installed package name to its directory: the
// project root for the recipe itself, otherwise vendor/<name>.
func (p *Project) ModulePath(name string) (string, bool) {
	if rootName, err := p.Name(); err == nil && rootName == name {
		return p.dir, true
	}
	dir := filepath.Join(p.dir, "vendor", filepath.FromSlash(name))
	if info, err := os.Stat(filepath.Join(dir, composer.Filename)); err == nil && !info.IsDir() {
		return dir, true
	}
	return "", false
}

// FindLibrary resolves a package name to its Library, or nil when the name
// is not installed in this checkout.
func (p *Project) FindLibrary(name string) *Library {
	dir, ok := p.ModulePath(name)
	if !ok {
		return nil
	}
	return p.library(dir)
}

// PlanDir returns the directory for project-local roundup state.
func (p *Project) PlanDir() string {
	return filepath.Join(p.dir, ".roundup")
}

// library returns the canonical Library for a directory, so caches are
// shared no matter which parent discovered it.
func (p *Project) library(dir string) *Library {
	if dir == p.dir {
		return &p.Library
	}
	if lib, ok := p.libraries[dir]; ok {
		return lib
	}
	lib := &Library{dir: dir, project: p}
	p.libraries[dir] = lib
	return lib
}
