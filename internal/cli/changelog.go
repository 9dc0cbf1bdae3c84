package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pasturelabs/roundup/pkg/changelog"
	"github.com/pasturelabs/roundup/pkg/release"
)

// newChangelogCmd creates the changelog command: render the commit history
// covered by the persisted plan into CHANGELOG.md.
func newChangelogCmd(projectDir *string) *cobra.Command {
	var (
		format      string
		file        string
		depth       int
		other       bool
		upgradeOnly bool
		stdout      bool
	)

	cmd := &cobra.Command{
		Use:   "changelog",
		Short: "Generate the changelog for the planned release",
		Long: `Changelog collects every commit the planned release introduces across the
project and its child libraries, categorized by message convention, and
writes the result between delimiter markers in the changelog file. Content
outside the markers is preserved on regeneration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			track := newProgress(loggerFromContext(ctx))

			renderFormat, err := changelog.ParseFormat(format)
			if err != nil {
				return err
			}
			proj, err := openProject(*projectDir)
			if err != nil {
				return err
			}
			plan, err := release.NewStore(proj).Load(proj)
			if err != nil {
				return err
			}

			root, err := changelog.Build(plan, changelog.Options{
				Depth:              depth,
				IncludeUpgradeOnly: upgradeOnly,
			})
			if err != nil {
				return err
			}
			cl := changelog.New(root)
			cl.IncludeOtherChanges = other

			markdown, err := cl.Markdown(renderFormat)
			if err != nil {
				return err
			}

			if stdout {
				cmd.Println(markdown)
				return nil
			}

			path := file
			if !filepath.IsAbs(path) {
				path = filepath.Join(proj.Root().Dir(), path)
			}
			existing, err := os.ReadFile(path)
			if err != nil && !os.IsNotExist(err) {
				return err
			}
			updated, appended := changelog.UpdateContent(string(existing), markdown)
			if appended && len(existing) > 0 {
				printWarning("No changelog delimiters found in %s; appending a new block", path)
			}
			if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
				return err
			}
			track.done("Changelog written")
			printFile(path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "grouped", "output format (grouped, flat, library)")
	cmd.Flags().StringVar(&file, "file", "CHANGELOG.md", "changelog file, relative to the project root")
	cmd.Flags().IntVar(&depth, "depth", changelog.DefaultDepth, "how many dependency levels to include")
	cmd.Flags().BoolVar(&other, "other", false, "include uncategorized commits")
	cmd.Flags().BoolVar(&upgradeOnly, "upgrade-only", false, "include libraries marked upgrade-only")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the changelog instead of writing the file")

	return cmd
}
