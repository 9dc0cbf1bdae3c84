package release

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pasturelabs/roundup/pkg/errors"
	"github.com/pasturelabs/roundup/pkg/semver"
)

func TestStoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.root(`{"name": "acme/recipe", "require": {"acme/a": "^1.0"}}`,
		`{"vendors": ["acme"]}`)
	f.module("acme/a", `{"name": "acme/a", "require": {}}`, "")

	p := f.project()
	plan, err := NewRelease(p.Root(), semver.MustParse("4.1.0-rc2"))
	if err != nil {
		t.Fatal(err)
	}
	prior := semver.MustParse("4.0.0")
	plan.PriorVersion = &prior
	plan.Branching = BranchingAuto

	child, err := NewRelease(p.FindLibrary("acme/a"), semver.MustParse("1.2.0"))
	if err != nil {
		t.Fatal(err)
	}
	child.Branching = BranchingMinor
	if err := plan.AddItem(child); err != nil {
		t.Fatal(err)
	}

	store := NewStore(p)
	if store.Exists() {
		t.Fatal("store should start empty")
	}
	if _, err := store.Load(p); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Fatalf("Load before Save err = %v, want NOT_FOUND", err)
	}
	if err := store.Save(plan); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !store.Exists() {
		t.Fatal("store should exist after Save")
	}

	loaded, err := store.Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Version.String() != "4.1.0-rc2" {
		t.Errorf("root version = %s", loaded.Version)
	}
	if loaded.PriorVersion == nil || loaded.PriorVersion.String() != "4.0.0" {
		t.Errorf("prior version = %v", loaded.PriorVersion)
	}
	if loaded.Branching != BranchingAuto {
		t.Errorf("branching = %s", loaded.Branching)
	}
	node := loaded.FindItem("acme/a")
	if node == nil {
		t.Fatal("child missing after round trip")
	}
	if node.Version.String() != "1.2.0" || node.PriorVersion != nil || node.Branching != BranchingMinor {
		t.Errorf("child restored wrong: %s %v %s", node.Version, node.PriorVersion, node.Branching)
	}

	if err := store.Clear(); err != nil {
		t.Fatal(err)
	}
	if store.Exists() {
		t.Error("store should be gone after Clear")
	}
	if err := store.Clear(); err != nil {
		t.Error("Clear should be idempotent")
	}
}

func TestLoadRejectsDuplicateLibrary(t *testing.T) {
	f := newFixture(t)
	f.root(`{"name": "acme/recipe", "require": {"acme/a": "^1.0", "acme/b": "^1.0"}}`,
		`{"vendors": ["acme"]}`)
	f.module("acme/a", `{"name": "acme/a", "require": {}}`, "")
	f.module("acme/b", `{"name": "acme/b", "require": {}}`, "")

	p := f.project()
	store := NewStore(p)

	// A hand-edited plan file carrying acme/a under two branches bypasses
	// the resolver's duplicate screening; Load must still reject it.
	data := `{
    "name": "acme/recipe",
    "version": "4.0.0",
    "items": [
        {"name": "acme/a", "version": "1.1.0"},
        {"name": "acme/b", "version": "2.1.0", "items": [
            {"name": "acme/a", "version": "1.2.0"}
        ]}
    ]
}`
	if err := os.MkdirAll(filepath.Dir(store.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.Path(), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := store.Load(p)
	if !errors.Is(err, errors.ErrCodeDuplicateRelease) {
		t.Fatalf("Load err = %v, want DUPLICATE_RELEASE", err)
	}
}
