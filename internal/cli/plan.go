package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/pasturelabs/roundup/pkg/project"
	"github.com/pasturelabs/roundup/pkg/release"
	"github.com/pasturelabs/roundup/pkg/semver"
)

// newPlanCmd creates the plan command: propose a version for every library,
// review interactively, persist the accepted plan.
func newPlanCmd(projectDir *string) *cobra.Command {
	var (
		branching string
		yes       bool
		fresh     bool
	)

	cmd := &cobra.Command{
		Use:   "plan <version>",
		Short: "Propose and review a release plan for the given version",
		Long: `Plan resolves a target version for the project and every releasable child
library, honoring the constraints each manifest declares. The result is
reviewed interactively and persisted, so later commands (branch, changelog,
publish) operate on exactly the plan that was accepted. An existing
persisted plan is resumed unless --fresh is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			track := newProgress(logger)

			version, err := semver.Parse(args[0])
			if err != nil {
				return err
			}
			strategy, err := release.ParseBranching(branching)
			if err != nil {
				return err
			}

			proj, err := openProject(*projectDir)
			if err != nil {
				return err
			}
			store := release.NewStore(proj)
			resolver := release.NewResolver(strategy)

			plan, resumed, err := loadOrBuildPlan(ctx, proj, store, resolver, version, fresh)
			if err != nil {
				return err
			}
			if resumed {
				logger.Info("resuming persisted plan", "path", store.Path())
				if !plan.Version.Equals(version) {
					printWarning("Persisted plan targets %s, not the requested %s; rerun with --fresh to replan", plan.Version, version)
				}
			}
			if err := store.Save(plan); err != nil {
				return err
			}

			if yes {
				if err := printPlan(plan); err != nil {
					return err
				}
				track.done("Plan accepted")
				printFile(store.Path())
				return nil
			}

			err = reviewPlan(ctx, plan, store, resolver, huhPrompter{})
			if errors.Is(err, ErrReviewCancelled) {
				printWarning("Plan not accepted; the persisted plan keeps the last reviewed state")
				return nil
			}
			if err != nil {
				return err
			}
			track.done("Plan accepted")
			printFile(store.Path())
			return nil
		},
	}

	cmd.Flags().StringVarP(&branching, "branching", "b", "none", "branching strategy (none, minor, major, auto)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "accept the proposed plan without review")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "discard any persisted plan and start over")

	return cmd
}

// loadOrBuildPlan resumes the persisted plan unless fresh is set or none
// exists, otherwise resolves a new one for version. The second return is
// true when an existing plan was resumed; its root version may then differ
// from the requested one, which the caller should surface.
func loadOrBuildPlan(ctx context.Context, proj *project.Project, store *release.Store, resolver *release.Resolver, version semver.Version, fresh bool) (*release.LibraryRelease, bool, error) {
	if store.Exists() && !fresh {
		plan, err := store.Load(proj)
		return plan, true, err
	}
	plan, err := resolver.BuildPlan(ctx, proj, version)
	return plan, false, err
}
