package cli

import (
	"context"
	"errors"

	rerrors "github.com/pasturelabs/roundup/pkg/errors"
	"github.com/pasturelabs/roundup/pkg/release"
	"github.com/pasturelabs/roundup/pkg/semver"
)

// ErrReviewCancelled aborts the plan command without treating the run as a
// failure worth a stack of error output.
var ErrReviewCancelled = errors.New("plan review cancelled")

const (
	actionAccept    = "accept the plan"
	actionEdit      = "edit a library version"
	actionBranching = "change branching strategy"
	actionCancel    = "cancel"
)

// reviewPlan drives the interactive plan review: show the flattened tree,
// take edits, persist after every change, until the user accepts. Each edit
// is saved immediately so a partially reviewed plan survives a crash.
func reviewPlan(ctx context.Context, plan *release.LibraryRelease, store *release.Store, resolver *release.Resolver, prompter Prompter) error {
	for {
		if err := printPlan(plan); err != nil {
			return err
		}
		action, err := prompter.Select("Release plan", []string{actionAccept, actionEdit, actionBranching, actionCancel})
		if err != nil {
			return err
		}
		switch action {
		case actionAccept:
			return store.Save(plan)
		case actionCancel:
			return ErrReviewCancelled
		case actionBranching:
			if err := editBranching(plan, prompter); err != nil {
				return err
			}
		case actionEdit:
			if err := editNode(ctx, plan, resolver, prompter); err != nil {
				return err
			}
		}
		if err := store.Save(plan); err != nil {
			return err
		}
	}
}

func editBranching(plan *release.LibraryRelease, prompter Prompter) error {
	choice, err := prompter.Select("Branching strategy", []string{
		string(release.BranchingNone),
		string(release.BranchingMinor),
		string(release.BranchingMajor),
		string(release.BranchingAuto),
	})
	if err != nil {
		return err
	}
	branching, err := release.ParseBranching(choice)
	if err != nil {
		return err
	}
	return plan.Walk(func(node *release.LibraryRelease) error {
		node.Branching = branching
		return nil
	})
}

func editNode(ctx context.Context, plan *release.LibraryRelease, resolver *release.Resolver, prompter Prompter) error {
	var names []string
	for _, node := range plan.AllItems() {
		names = append(names, node.Name())
	}
	name, err := prompter.Select("Library to edit", names)
	if err != nil {
		return err
	}
	node := plan.FindItem(name)
	if node == nil {
		return rerrors.New(rerrors.ErrCodeLogic, "plan lost node %s during review", name)
	}

	// Re-prompt until the edit validates; a typo should not end the review.
	for {
		raw, err := prompter.Input("Target version", node.Version.String())
		if err != nil {
			return err
		}
		version, ok := semver.TryParse(raw)
		if !ok {
			printError("%q is not a valid version", raw)
			continue
		}
		if err := applyVersionEdit(ctx, node, version, resolver); err != nil {
			printError("%s", rerrors.UserMessage(err))
			continue
		}
		break
	}

	return editPriorVersion(node, prompter)
}

// applyVersionEdit validates and applies a new target version. Upgrade-only
// libraries may only move to versions that already exist as tags. When the
// edit flips the node between new-release and existing-tag, the subtree is
// regenerated: child versions were derived from the old state.
func applyVersionEdit(ctx context.Context, node *release.LibraryRelease, version semver.Version, resolver *release.Resolver) error {
	if parent := node.Parent(); parent != nil {
		upgradeOnly, err := parent.Library().IsChildUpgradeOnly(node.Name())
		if err != nil {
			return err
		}
		if upgradeOnly {
			exists, err := node.Library().HasTag(version)
			if err != nil {
				return err
			}
			if !exists {
				return rerrors.New(rerrors.ErrCodeUnsatisfiableConstraint,
					"%s is upgrade-only: %s must already exist as a tag", node.Name(), version)
			}
		}
	}

	wasNew, err := node.IsNewRelease()
	if err != nil {
		return err
	}
	node.Version = version
	isNew, err := node.IsNewRelease()
	if err != nil {
		return err
	}
	if wasNew != isNew {
		node.ClearItems()
		if isNew {
			return resolver.GenerateChildReleases(ctx, node)
		}
	}
	return nil
}

func editPriorVersion(node *release.LibraryRelease, prompter Prompter) error {
	current := ""
	if node.PriorVersion != nil {
		current = node.PriorVersion.String()
	}
	for {
		raw, err := prompter.Input("Prior version (empty to keep)", current)
		if err != nil {
			return err
		}
		if raw == "" || raw == current {
			return nil
		}
		version, ok := semver.TryParse(raw)
		if !ok {
			printError("%q is not a valid version", raw)
			continue
		}
		// An explicit prior version must point at a real tag; the
		// changelog diffs against it.
		exists, err := node.Library().HasTag(version)
		if err != nil {
			return err
		}
		if !exists {
			printError("%s is not an existing tag of %s", version, node.Name())
			continue
		}
		node.PriorVersion = &version
		return nil
	}
}
