package release

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/pasturelabs/roundup/pkg/errors"
	"github.com/pasturelabs/roundup/pkg/semver"
)

// Branching selects which release branch, if any, a plan node is cut on.
type Branching string

const (
	// BranchingNone releases from the current branch.
	BranchingNone Branching = "none"

	// BranchingMinor releases on an x.y branch.
	BranchingMinor Branching = "minor"

	// BranchingMajor releases on an x branch.
	BranchingMajor Branching = "major"

	// BranchingAuto picks minor for stable versions and major for
	// pre-releases, which keeps unstable work off the patch line.
	BranchingAuto Branching = "auto"
)

// ParseBranching validates a branching strategy name.
func ParseBranching(value string) (Branching, error) {
	switch Branching(value) {
	case BranchingNone, BranchingMinor, BranchingMajor, BranchingAuto:
		return Branching(value), nil
	case "":
		return BranchingNone, nil
	}
	return "", errors.New(errors.ErrCodeInvalidConfig,
		"unknown branching strategy %q (expected none, minor, major, or auto)", value)
}

// BranchName returns the branch the strategy targets for the given version,
// or "" when no branch is cut.
func (b Branching) BranchName(v semver.Version) string {
	switch b {
	case BranchingMinor:
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	case BranchingMajor:
		return fmt.Sprintf("%d", v.Major)
	case BranchingAuto:
		if v.IsStable() {
			return BranchingMinor.BranchName(v)
		}
		return BranchingMajor.BranchName(v)
	}
	return ""
}

// CreateBranches walks the plan children-first and checks out (creating if
// needed) the release branch each node's strategy selects. Nodes bound to
// existing tags are skipped: their history is frozen. With push enabled each
// created branch is pushed to origin.
func CreateBranches(ctx context.Context, plan *LibraryRelease, push bool) error {
	logger := log.FromContext(ctx)
	return plan.WalkUp(func(node *LibraryRelease) error {
		branch := node.Branching.BranchName(node.Version)
		if branch == "" {
			return nil
		}
		isNew, err := node.IsNewRelease()
		if err != nil {
			return err
		}
		if !isNew {
			logger.Debug("skipping branch for existing tag", "library", node.Name(), "version", node.Version)
			return nil
		}
		repo, err := node.Library().Repo()
		if err != nil {
			return err
		}
		current, err := repo.CurrentBranch()
		if err == nil && current == branch {
			logger.Debug("already on release branch", "library", node.Name(), "branch", branch)
		} else {
			logger.Info("checking out release branch", "library", node.Name(), "branch", branch)
			if err := repo.Checkout(branch, "origin", true); err != nil {
				return err
			}
		}
		if push {
			if err := repo.PushBranch(ctx, "origin", branch); err != nil {
				return err
			}
		}
		return nil
	})
}
