package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/pasturelabs/roundup/pkg/errors"
	"github.com/pasturelabs/roundup/pkg/semver"
)

// fixture builds a project checkout on disk: a root manifest plus installed
// vendor libraries.
type fixture struct {
	t   *testing.T
	dir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, dir: t.TempDir()}
}

func (f *fixture) writeRoot(manifest, config string) {
	f.t.Helper()
	f.write(f.dir, manifest, config)
}

func (f *fixture) writeModule(name, manifest, config string) string {
	f.t.Helper()
	dir := filepath.Join(f.dir, "vendor", filepath.FromSlash(name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		f.t.Fatal(err)
	}
	f.write(dir, manifest, config)
	return dir
}

func (f *fixture) write(dir, manifest, config string) {
	f.t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "composer.json"), []byte(manifest), 0o644); err != nil {
		f.t.Fatal(err)
	}
	if config != "" {
		if err := os.WriteFile(filepath.Join(dir, ConfigFilename), []byte(config), 0o644); err != nil {
			f.t.Fatal(err)
		}
	}
}

// initGit turns dir into a git repository with one commit and the given tags.
func (f *fixture) initGit(dir string, tags ...string) {
	f.t.Helper()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		f.t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		f.t.Fatal(err)
	}
	if _, err := wt.Add("composer.json"); err != nil {
		f.t.Fatal(err)
	}
	hash, err := wt.Commit("Initial commit", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		f.t.Fatal(err)
	}
	for _, tag := range tags {
		if _, err := repo.CreateTag(tag, hash, nil); err != nil {
			f.t.Fatal(err)
		}
	}
}

const rootManifest = `{
    "name": "acme/recipe",
    "require": {
        "acme/framework": "^4.1",
        "acme/config": "self.version",
        "other/thing": "^2.0",
        "php": ">=8.1"
    }
}`

const rootConfig = `{
    "vendors": ["acme"],
    "exclude": ["acme/legacy"],
    "upgrade-only": ["acme/config"],
    "stability-inherit": ["acme/framework"]
}`

func TestChildren(t *testing.T) {
	f := newFixture(t)
	f.writeRoot(rootManifest, rootConfig)
	f.writeModule("acme/framework", `{"name": "acme/framework", "require": {}}`, "")
	f.writeModule("acme/config", `{"name": "acme/config", "require": {}}`, "")

	p, err := New(f.dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	children, err := p.Root().Children()
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	var names []string
	for _, c := range children {
		name, err := c.Name()
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, name)
	}
	// other/thing and php filtered out by vendor allowlist; sorted order.
	want := []string{"acme/config", "acme/framework"}
	if len(names) != len(want) {
		t.Fatalf("children = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("children[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestChildrenMissingInstall(t *testing.T) {
	f := newFixture(t)
	f.writeRoot(rootManifest, rootConfig)
	// acme/framework declared but not installed

	p, err := New(f.dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Root().Children(); !errors.Is(err, errors.ErrCodeLogic) {
		t.Errorf("Children err = %v, want LOGIC_ERROR", err)
	}
}

func TestAllChildrenLaterWins(t *testing.T) {
	f := newFixture(t)
	f.writeRoot(`{
        "name": "acme/recipe",
        "require": {"acme/a": "^1.0", "acme/b": "^1.0"}
    }`, `{"vendors": ["acme"]}`)
	f.writeModule("acme/a", `{"name": "acme/a", "require": {"acme/c": "^1.0"}}`, "")
	f.writeModule("acme/b", `{"name": "acme/b", "require": {"acme/c": "^1.0"}}`, "")
	f.writeModule("acme/c", `{"name": "acme/c", "require": {}}`, "")

	p, err := New(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	all, err := p.Root().AllChildren()
	if err != nil {
		t.Fatalf("AllChildren: %v", err)
	}
	if len(all) != 3 {
		var names []string
		for _, l := range all {
			n, _ := l.Name()
			names = append(names, n)
		}
		t.Fatalf("AllChildren = %v, want 3 unique libraries", names)
	}
}

func TestAllChildrenTerminatesOnCycle(t *testing.T) {
	f := newFixture(t)
	f.writeRoot(`{
        "name": "acme/recipe",
        "require": {"acme/a": "^1.0"}
    }`, `{"vendors": ["acme"]}`)
	// a and b require each other; the walk must not recurse forever.
	f.writeModule("acme/a", `{"name": "acme/a", "require": {"acme/b": "^1.0"}}`, "")
	f.writeModule("acme/b", `{"name": "acme/b", "require": {"acme/a": "^1.0"}}`, "")

	p, err := New(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	all, err := p.Root().AllChildren()
	if err != nil {
		t.Fatalf("AllChildren: %v", err)
	}
	if len(all) != 2 {
		var names []string
		for _, l := range all {
			n, _ := l.Name()
			names = append(names, n)
		}
		t.Fatalf("AllChildren = %v, want acme/a and acme/b once each", names)
	}
}

func TestPolicyLookups(t *testing.T) {
	f := newFixture(t)
	f.writeRoot(rootManifest, rootConfig)
	f.writeModule("acme/framework", `{"name": "acme/framework", "require": {}}`, "")
	f.writeModule("acme/config", `{"name": "acme/config", "require": {}}`, "")

	p, err := New(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	root := p.Root()

	if got, _ := root.IsChildUpgradeOnly("acme/config"); !got {
		t.Error("acme/config should be upgrade-only")
	}
	if got, _ := root.IsChildUpgradeOnly("acme/framework"); got {
		t.Error("acme/framework should not be upgrade-only")
	}
	if got, _ := root.IsStabilityInherited("acme/framework"); !got {
		t.Error("acme/framework should inherit stability")
	}
	if got, _ := root.IsStabilityInherited("acme/config"); got {
		t.Error("acme/config should not inherit stability")
	}
}

func TestConstraintFor(t *testing.T) {
	f := newFixture(t)
	f.writeRoot(rootManifest, rootConfig)

	p, err := New(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	parent := semver.MustParse("4.5.0")

	c, err := p.Root().ConstraintFor("acme/config", parent)
	if err != nil {
		t.Fatalf("ConstraintFor: %v", err)
	}
	if !c.IsSelfVersion() || !c.Min().Equals(parent) {
		t.Errorf("self.version constraint not resolved against parent: %v", c)
	}

	if _, err := p.Root().ConstraintFor("acme/unknown", parent); !errors.Is(err, errors.ErrCodeLogic) {
		t.Errorf("unknown child err = %v, want LOGIC_ERROR", err)
	}
}

func TestTagsCacheInvalidation(t *testing.T) {
	f := newFixture(t)
	f.writeRoot(`{"name": "acme/recipe", "require": {}}`, "")
	f.initGit(f.dir, "1.0.0", "1.1.0", "not-a-version")

	p, err := New(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	root := p.Root()

	tags, err := root.Tags()
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("Tags = %v, want 2 parseable versions", tags)
	}

	if err := root.AddTag(context.Background(), semver.MustParse("1.2.0"), "Release 1.2.0"); err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	tags, err = root.Tags()
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 3 {
		t.Errorf("tag cache not invalidated, Tags = %v", tags)
	}

	ok, err := root.HasTagAtHead(semver.MustParse("1.2.0"))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("HasTagAtHead(1.2.0) = false after tagging HEAD")
	}
	ok, err = root.HasTag(semver.MustParse("9.9.9"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("HasTag(9.9.9) = true")
	}
}

func TestModulePath(t *testing.T) {
	f := newFixture(t)
	f.writeRoot(`{"name": "acme/recipe", "require": {}}`, "")
	dir := f.writeModule("acme/framework", `{"name": "acme/framework", "require": {}}`, "")

	p, err := New(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := p.ModulePath("acme/recipe"); !ok || got != p.Root().Dir() {
		t.Errorf("ModulePath(root) = %q, %v", got, ok)
	}
	if got, ok := p.ModulePath("acme/framework"); !ok || got != dir {
		t.Errorf("ModulePath(framework) = %q, %v", got, ok)
	}
	if _, ok := p.ModulePath("acme/missing"); ok {
		t.Error("ModulePath(missing) = ok")
	}
}
