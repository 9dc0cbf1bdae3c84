package cli

import (
	"github.com/spf13/cobra"

	"github.com/pasturelabs/roundup/pkg/release"
)

// newBranchCmd creates the branch command: cut release branches for every
// newly tagged library in the persisted plan.
func newBranchCmd(projectDir *string) *cobra.Command {
	var push bool

	cmd := &cobra.Command{
		Use:   "branch",
		Short: "Create release branches for the planned versions",
		Long: `Branch checks out a release branch in every library the persisted plan
tags anew, named after the planned version and the plan's branching
strategy. Libraries whose planned tag already exists are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			track := newProgress(loggerFromContext(ctx))

			proj, err := openProject(*projectDir)
			if err != nil {
				return err
			}
			plan, err := release.NewStore(proj).Load(proj)
			if err != nil {
				return err
			}
			if plan.Branching == release.BranchingNone {
				printWarning("Plan was made without a branching strategy; nothing to do")
				return nil
			}
			if err := release.CreateBranches(ctx, plan, push); err != nil {
				return err
			}
			track.done("Release branches created")
			return nil
		},
	}

	cmd.Flags().BoolVar(&push, "push", false, "push the created branches to origin")

	return cmd
}
