package release

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/pasturelabs/roundup/pkg/errors"
	"github.com/pasturelabs/roundup/pkg/project"
	"github.com/pasturelabs/roundup/pkg/semver"
)

// Resolver proposes target versions for every library reachable from a plan
// root, walking the dependency graph the manifests declare.
type Resolver struct {
	branching Branching
}

// NewResolver returns a resolver that assigns the given branching strategy to
// every node it creates.
func NewResolver(branching Branching) *Resolver {
	return &Resolver{branching: branching}
}

// BuildPlan creates the full release plan for the project at the given target
// version, recursively resolving child versions.
func (r *Resolver) BuildPlan(ctx context.Context, proj *project.Project, version semver.Version) (*LibraryRelease, error) {
	plan, err := NewRelease(proj.Root(), version)
	if err != nil {
		return nil, err
	}
	plan.Branching = r.branching
	if prior, ok := r.inferPrior(proj.Root(), version); ok {
		plan.PriorVersion = &prior
	}
	if err := r.GenerateChildReleases(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// GenerateChildReleases proposes a version for every direct dependency of the
// parent node and attaches the result as plan children. It recurses only into
// children receiving a new tag: libraries reused at an existing tag are
// leaves, their own dependency versions were frozen when that tag was cut.
func (r *Resolver) GenerateChildReleases(ctx context.Context, parent *LibraryRelease) error {
	logger := log.FromContext(ctx)
	children, err := parent.Library().Children()
	if err != nil {
		return err
	}
	for _, childLib := range children {
		name, err := childLib.Name()
		if err != nil {
			return err
		}
		// A library required along several paths is planned once, at its
		// first encounter.
		if parent.Root().FindItem(name) != nil {
			logger.Debug("already planned", "library", name)
			continue
		}
		version, err := r.ProposeVersion(parent, childLib)
		if err != nil {
			return err
		}
		node, err := NewRelease(childLib, version)
		if err != nil {
			return err
		}
		node.Branching = r.branching
		if prior, ok := r.inferPrior(childLib, version); ok {
			node.PriorVersion = &prior
		}
		if err := parent.AddItem(node); err != nil {
			return err
		}
		isNew, err := node.IsNewRelease()
		if err != nil {
			return err
		}
		logger.Info("planned", "library", name, "version", version, "new", isNew)
		if isNew {
			if err := r.GenerateChildReleases(ctx, node); err != nil {
				return err
			}
		}
	}
	return nil
}

// ProposeVersion computes the version the child library should receive under
// the constraint the parent declares for it.
func (r *Resolver) ProposeVersion(parent *LibraryRelease, childLib *project.Library) (semver.Version, error) {
	name, err := childLib.Name()
	if err != nil {
		return semver.Version{}, err
	}
	constraint, err := parent.Library().ConstraintFor(name, parent.Version)
	if err != nil {
		return semver.Version{}, err
	}
	upgradeOnly, err := parent.Library().IsChildUpgradeOnly(name)
	if err != nil {
		return semver.Version{}, err
	}

	// A self-versioned child always tracks the parent exactly.
	if constraint.IsSelfVersion() {
		candidate := parent.Version
		if upgradeOnly {
			exists, err := childLib.HasTag(candidate)
			if err != nil {
				return semver.Version{}, err
			}
			if !exists {
				return semver.Version{}, errors.New(errors.ErrCodeUnsatisfiableConstraint,
					"%s is upgrade-only but has no tag %s matching the parent version", name, candidate)
			}
		}
		return candidate, nil
	}

	tags, err := childLib.Tags()
	if err != nil {
		return semver.Version{}, err
	}
	candidates := tags
	if parent.Version.IsStable() {
		candidates = semver.FilterStable(candidates)
	}
	existing, hasExisting := semver.Max(constraint.FilterVersions(candidates))

	if upgradeOnly {
		if !hasExisting {
			return semver.Version{}, errors.New(errors.ErrCodeUnsatisfiableConstraint,
				"%s is upgrade-only but no existing tag satisfies %s", name, constraint)
		}
		return existing, nil
	}

	// Nothing changed since the last release: reuse the tag rather than
	// cutting a redundant one.
	if hasExisting {
		atHead, err := childLib.HasTagAtHead(existing)
		if err != nil {
			return semver.Version{}, err
		}
		if atHead {
			return existing, nil
		}
	}

	stability, stabilityVersion := semver.Stable, 0
	inherited, err := parent.Library().IsStabilityInherited(name)
	if err != nil {
		return semver.Version{}, err
	}
	if inherited {
		stability = parent.Version.Stability
		stabilityVersion = parent.Version.StabilityVersion
	}
	if hasExisting {
		return existing.NextVersion(stability, stabilityVersion), nil
	}
	// First release in this constraint range: seed from its floor.
	return constraint.Min().WithStability(stability, stabilityVersion), nil
}

// inferPrior derives the version a release follows from the tag history.
func (r *Resolver) inferPrior(lib *project.Library, version semver.Version) (semver.Version, bool) {
	tags, err := lib.Tags()
	if err != nil {
		return semver.Version{}, false
	}
	return version.PriorVersionFromTags(tags)
}
