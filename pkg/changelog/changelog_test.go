package changelog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/pasturelabs/roundup/pkg/project"
	"github.com/pasturelabs/roundup/pkg/release"
	"github.com/pasturelabs/roundup/pkg/semver"
)

type fixture struct {
	t     *testing.T
	dir   string
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, dir: t.TempDir(), clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fixture) library(rel, manifest, config string) string {
	f.t.Helper()
	dir := filepath.Join(f.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		f.t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "composer.json"), []byte(manifest), 0o644); err != nil {
		f.t.Fatal(err)
	}
	if config != "" {
		if err := os.WriteFile(filepath.Join(dir, project.ConfigFilename), []byte(config), 0o644); err != nil {
			f.t.Fatal(err)
		}
	}
	if _, err := git.PlainInit(dir, false); err != nil {
		f.t.Fatal(err)
	}
	f.commit(dir, "Initial commit", "Test")
	return dir
}

func (f *fixture) commit(dir, message, author string) {
	f.t.Helper()
	f.clock = f.clock.Add(time.Minute)
	f.commitAt(dir, message, author, f.clock)
}

// commitAt records a commit at an explicit author time, which lets tests
// fabricate cherry-pick twins sharing author, date, and message.
func (f *fixture) commitAt(dir, message, author string, when time.Time) {
	f.t.Helper()
	repo, err := git.PlainOpen(dir)
	if err != nil {
		f.t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		f.t.Fatal(err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		f.t.Fatal(err)
	}
	_, err = wt.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            &object.Signature{Name: author, Email: "test@example.com", When: when},
	})
	if err != nil {
		f.t.Fatal(err)
	}
}

func (f *fixture) tag(dir, name string) {
	f.t.Helper()
	repo, err := git.PlainOpen(dir)
	if err != nil {
		f.t.Fatal(err)
	}
	head, err := repo.Head()
	if err != nil {
		f.t.Fatal(err)
	}
	if _, err := repo.CreateTag(name, head.Hash(), nil); err != nil {
		f.t.Fatal(err)
	}
}

// buildScenario creates a recipe that released 1.0.0 requiring
// acme/module ^1.0, with unreleased work in both repositories since.
func buildScenario(t *testing.T) (*release.LibraryRelease, *fixture) {
	t.Helper()
	f := newFixture(t)
	rootDir := f.library(".",
		`{"name": "acme/recipe", "require": {"acme/module": "^1.0"}}`,
		`{"vendors": ["acme"]}`)
	moduleDir := f.library("vendor/acme/module",
		`{"name": "acme/module", "require": {}}`, "")

	f.tag(moduleDir, "1.0.0")
	f.tag(rootDir, "1.0.0")

	f.commit(rootDir, "NEW Add onboarding flow", "Alice")
	f.commit(rootDir, "Update translations", "Alice")
	f.commit(rootDir, "Random note", "Alice")

	f.commit(moduleDir, "FIX Broken pagination", "Bob")
	twinDate := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	f.commitAt(moduleDir, "FIX Cherry-picked twice", "Bob", twinDate)
	f.commitAt(moduleDir, "FIX Cherry-picked twice", "Bob", twinDate)
	f.tag(moduleDir, "1.1.0")
	f.commit(moduleDir, "[CVE-2024-1111] Escape output", "Carol")

	p, err := project.New(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	plan, err := release.NewRelease(p.Root(), semver.MustParse("1.1.0"))
	if err != nil {
		t.Fatal(err)
	}
	prior := semver.MustParse("1.0.0")
	plan.PriorVersion = &prior

	child, err := release.NewRelease(p.FindLibrary("acme/module"), semver.MustParse("1.2.0"))
	if err != nil {
		t.Fatal(err)
	}
	if err := plan.AddItem(child); err != nil {
		t.Fatal(err)
	}
	return plan, f
}

func TestBuildReconstructsHistoricalBaseline(t *testing.T) {
	plan, _ := buildScenario(t)

	tree, err := Build(plan, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tree.From() == nil || tree.From().String() != "1.0.0" {
		t.Errorf("root baseline = %v, want 1.0.0", tree.From())
	}
	children := tree.Children()
	if len(children) != 1 {
		t.Fatalf("children = %d, want 1", len(children))
	}
	// The manifest at 1.0.0 declared ^1.0, whose oldest satisfying tag is
	// the module's 1.0.0, even though 1.1.0 exists now.
	if children[0].From() == nil || children[0].From().String() != "1.0.0" {
		t.Errorf("module baseline = %v, want 1.0.0", children[0].From())
	}
}

func TestItemsDedupAndIgnore(t *testing.T) {
	plan, _ := buildScenario(t)
	tree, err := Build(plan, Options{})
	if err != nil {
		t.Fatal(err)
	}

	items, err := New(tree).Items()
	if err != nil {
		t.Fatalf("Items: %v", err)
	}

	var twins, translations int
	for _, item := range items {
		if item.RawMessage() == "FIX Cherry-picked twice" {
			twins++
		}
		if item.RawMessage() == "Update translations" {
			translations++
		}
	}
	if twins != 1 {
		t.Errorf("cherry-picked twins rendered %d times, want 1", twins)
	}
	if translations != 0 {
		t.Error("ignored subject slipped through")
	}
	for i := 1; i < len(items); i++ {
		if items[i-1].Date().Before(items[i].Date()) {
			t.Fatal("items not sorted newest first")
		}
	}
}

func TestMarkdownGrouped(t *testing.T) {
	plan, _ := buildScenario(t)
	tree, err := Build(plan, Options{})
	if err != nil {
		t.Fatal(err)
	}

	c := New(tree)
	got, err := c.Markdown(FormatGrouped)
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}

	if !strings.Contains(got, "## Security") || !strings.Contains(got, "CVE-2024-1111") {
		t.Errorf("security section missing:\n%s", got)
	}
	if !strings.Contains(got, "## Features and Enhancements") || !strings.Contains(got, "Add onboarding flow") {
		t.Errorf("features section missing:\n%s", got)
	}
	securityIdx := strings.Index(got, "## Security")
	featuresIdx := strings.Index(got, "## Features and Enhancements")
	if securityIdx > featuresIdx {
		t.Error("sections out of priority order")
	}
	if strings.Contains(got, "Random note") {
		t.Error("unclassified commit rendered without the flag")
	}

	c.IncludeOtherChanges = true
	got, err = c.Markdown(FormatGrouped)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "## Other changes") || !strings.Contains(got, "Random note") {
		t.Errorf("other changes missing with flag set:\n%s", got)
	}
}

func TestMarkdownFlatAndByLibrary(t *testing.T) {
	plan, _ := buildScenario(t)
	tree, err := Build(plan, Options{})
	if err != nil {
		t.Fatal(err)
	}

	flat, err := New(tree).Markdown(FormatFlat)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(flat, "##") {
		t.Error("flat output should not have sections")
	}

	byLib, err := New(tree).Markdown(FormatByLibrary)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(byLib, "## acme/recipe") || !strings.Contains(byLib, "## acme/module") {
		t.Errorf("per-library sections missing:\n%s", byLib)
	}
}
