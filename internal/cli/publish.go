package cli

import (
	"github.com/spf13/cobra"

	"github.com/pasturelabs/roundup/pkg/githubapi"
	"github.com/pasturelabs/roundup/pkg/registry"
	"github.com/pasturelabs/roundup/pkg/release"
	"github.com/pasturelabs/roundup/pkg/settings"
)

// newPublishCmd creates the publish command: rewrite constraints, tag every
// planned library, and optionally push tags and publish GitHub releases.
func newPublishCmd(projectDir *string) *cobra.Command {
	var (
		push         bool
		skipGithub   bool
		skipRegistry bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Tag and publish the planned release",
		Long: `Publish walks the persisted plan bottom-up. For each library that needs a
new tag it pins the planned child versions in the manifest, commits, and
tags. With --push the tags reach origin, a GitHub release is created for
libraries that declare a github-slug, and the command waits for the
package registry to index each version before releasing its parent.
Libraries whose planned tag already exists are skipped, so an interrupted
publish can be rerun.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			track := newProgress(logger)

			proj, err := openProject(*projectDir)
			if err != nil {
				return err
			}
			plan, err := release.NewStore(proj).Load(proj)
			if err != nil {
				return err
			}
			cfg, err := settings.Load()
			if err != nil {
				return err
			}

			publisher := &release.Publisher{
				Push:         push,
				WaitInterval: cfg.WaitInterval(),
				WaitTimeout:  cfg.WaitTimeout(),
			}
			if push && !skipGithub {
				if cfg.GithubToken == "" {
					printWarning("No GitHub token configured; skipping GitHub releases")
				} else {
					publisher.GitHub, err = githubapi.NewClient(cfg.GithubToken, cfg.CacheTTL())
					if err != nil {
						return err
					}
				}
			}
			if push && !skipRegistry {
				publisher.Registry, err = registry.NewClient(cfg.CacheTTL())
				if err != nil {
					return err
				}
			}

			if err := publisher.Publish(ctx, plan); err != nil {
				return err
			}
			if push {
				track.done("Release published")
			} else {
				track.done("Release tagged locally")
				printInfo("Rerun with --push to publish the tags")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&push, "push", false, "push tags and publish GitHub releases")
	cmd.Flags().BoolVar(&skipGithub, "skip-github", false, "do not create GitHub releases")
	cmd.Flags().BoolVar(&skipRegistry, "skip-registry", false, "do not wait for the package registry")

	return cmd
}
