package release

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pasturelabs/roundup/pkg/errors"
	"github.com/pasturelabs/roundup/pkg/project"
	"github.com/pasturelabs/roundup/pkg/semver"
)

// PlanFilename is the plan checkpoint file inside the project's plan
// directory.
const PlanFilename = "release-plan.json"

// Store persists a release plan to the project-local checkpoint file so the
// plan, branch, changelog, and publish commands operate on the same reviewed
// tree across invocations.
type Store struct {
	path string
}

// NewStore returns the store for the given project.
func NewStore(proj *project.Project) *Store {
	return &Store{path: filepath.Join(proj.PlanDir(), PlanFilename)}
}

// Path returns the checkpoint file location.
func (s *Store) Path() string { return s.path }

// Exists reports whether a persisted plan is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Clear removes the persisted plan, if any.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeLogic, err, "remove plan file %s", s.path)
	}
	return nil
}

type planNode struct {
	Name         string     `json:"name"`
	Version      string     `json:"version"`
	PriorVersion string     `json:"prior-version,omitempty"`
	Branching    string     `json:"branching,omitempty"`
	Items        []planNode `json:"items,omitempty"`
}

// Save writes the plan tree to the checkpoint file, creating the plan
// directory if needed.
func (s *Store) Save(plan *LibraryRelease) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeLogic, err, "create plan directory")
	}
	data, err := json.MarshalIndent(encodeNode(plan), "", "    ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeLogic, err, "encode release plan")
	}
	data = append(data, '\n')
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeLogic, err, "write plan file %s", s.path)
	}
	return nil
}

// Load reads the checkpoint file back into a plan tree, resolving each node's
// library from the project checkout. Fails with NOT_FOUND if no plan has been
// saved yet.
func (s *Store) Load(proj *project.Project) (*LibraryRelease, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeNotFound,
			"no release plan found at %s (run plan first)", s.path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLogic, err, "read plan file %s", s.path)
	}
	var root planNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "parse plan file %s", s.path)
	}
	plan, err := decodeNode(proj, root)
	if err != nil {
		return nil, err
	}
	// AddItem only screens the subtree being assembled, so a hand-edited
	// file can smuggle the same library under two branches. Names must be
	// unique across the whole tree.
	seen := map[string]bool{}
	err = plan.Walk(func(node *LibraryRelease) error {
		if seen[node.Name()] {
			return errors.New(errors.ErrCodeDuplicateRelease,
				"plan file %s lists %s more than once", s.path, node.Name())
		}
		seen[node.Name()] = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func encodeNode(r *LibraryRelease) planNode {
	node := planNode{
		Name:      r.Name(),
		Version:   r.Version.String(),
		Branching: string(r.Branching),
	}
	if r.PriorVersion != nil {
		node.PriorVersion = r.PriorVersion.String()
	}
	for _, child := range r.Items() {
		node.Items = append(node.Items, encodeNode(child))
	}
	return node
}

func decodeNode(proj *project.Project, node planNode) (*LibraryRelease, error) {
	lib := proj.FindLibrary(node.Name)
	if lib == nil {
		return nil, errors.New(errors.ErrCodeLogic,
			"plan references %s which is not installed in the project checkout", node.Name)
	}
	version, err := semver.Parse(node.Version)
	if err != nil {
		return nil, err
	}
	release, err := NewRelease(lib, version)
	if err != nil {
		return nil, err
	}
	if node.PriorVersion != "" {
		prior, err := semver.Parse(node.PriorVersion)
		if err != nil {
			return nil, err
		}
		release.PriorVersion = &prior
	}
	if node.Branching != "" {
		branching, err := ParseBranching(node.Branching)
		if err != nil {
			return nil, err
		}
		release.Branching = branching
	}
	for _, item := range node.Items {
		child, err := decodeNode(proj, item)
		if err != nil {
			return nil, err
		}
		if err := release.AddItem(child); err != nil {
			return nil, err
		}
	}
	return release, nil
}
