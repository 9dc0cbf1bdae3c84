package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pasturelabs/roundup/pkg/buildinfo"
	"github.com/pasturelabs/roundup/pkg/project"
)

// Execute runs the roundup CLI. The context carries signal cancellation from
// main; a logger is attached to it before any command runs.
func Execute(ctx context.Context) error {
	var (
		verbose    bool
		projectDir string
	)

	root := &cobra.Command{
		Use:          "roundup",
		Short:        "roundup releases a herd of composer libraries as one version bump",
		Long: `roundup coordinates releasing a composer project and its interdependent
child libraries: it plans which version each library should receive, cuts
release branches, generates changelogs from commit history, tags, and
publishes to GitHub and the package registry.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&projectDir, "dir", "d", ".", "project checkout directory")

	root.AddCommand(newPlanCmd(&projectDir))
	root.AddCommand(newBranchCmd(&projectDir))
	root.AddCommand(newChangelogCmd(&projectDir))
	root.AddCommand(newPublishCmd(&projectDir))
	root.AddCommand(newGraphCmd(&projectDir))
	root.AddCommand(newCacheCmd())

	return root.ExecuteContext(ctx)
}

// openProject loads the project checkout the command operates on.
func openProject(dir string) (*project.Project, error) {
	return project.New(dir)
}
