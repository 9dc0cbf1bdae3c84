package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-graphviz"
	"github.com/spf13/cobra"

	"github.com/pasturelabs/roundup/pkg/errors"
	"github.com/pasturelabs/roundup/pkg/release"
)

// newGraphCmd creates the graph command: visualize the persisted plan as a
// dependency tree in DOT, SVG, or PNG form.
func newGraphCmd(projectDir *string) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the release plan as a dependency graph",
		Long: `Graph renders the persisted plan as a Graphviz digraph. New tags are drawn
filled, reused tags dashed. The dot format prints to stdout unless --output
is set; svg and png require --output.`,
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
			dot, err := release.DOT(plan)
			if err != nil {
				return err
			}

			var rendered []byte
			switch format {
			case "dot":
				rendered = []byte(dot)
			case "svg", "png":
				rendered, err = renderGraph(cmd, dot, format)
				if err != nil {
					return err
				}
				if output == "" {
					output = "release-plan." + format
				}
			default:
				return errors.New(errors.ErrCodeInvalidConfig, "unknown graph format %q (want dot, svg, or png)", format)
			}

			if output == "" {
				cmd.Print(dot)
				return nil
			}
			path := output
			if !filepath.IsAbs(path) {
				path = filepath.Join(proj.Root().Dir(), path)
			}
			if err := os.WriteFile(path, rendered, 0o644); err != nil {
				return err
			}
			track.done("Graph rendered")
			printFile(path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format (dot, svg, png)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the graph to this file")

	return cmd
}

func renderGraph(cmd *cobra.Command, dot, format string) ([]byte, error) {
	ctx := cmd.Context()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	target := graphviz.SVG
	if format == "png" {
		target = graphviz.PNG
	}
	var buf bytes.Buffer
	if err := gv.Render(ctx, g, target, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
