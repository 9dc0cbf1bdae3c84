package release

import (
	"fmt"
	"strings"
)

// DOT renders the plan tree as Graphviz DOT source. New tags are drawn
// filled; reused tags are dashed leaves.
func DOT(plan *LibraryRelease) (string, error) {
	var b strings.Builder
	b.WriteString("digraph releaseplan {\n")
	b.WriteString("    rankdir=LR;\n")
	b.WriteString("    node [shape=box, fontname=\"Helvetica\"];\n")

	err := plan.Walk(func(node *LibraryRelease) error {
		isNew, err := node.IsNewRelease()
		if err != nil {
			return err
		}
		style := "dashed"
		if isNew {
			style = "filled"
		}
		label := fmt.Sprintf("%s\\n%s", node.Name(), node.Version)
		if node.PriorVersion != nil {
			label += fmt.Sprintf("\\n(from %s)", node.PriorVersion)
		}
		// Labels hold \n escapes graphviz must see verbatim, so no %q.
		fmt.Fprintf(&b, "    \"%s\" [label=\"%s\", style=%s];\n", node.Name(), label, style)
		for _, child := range node.Items() {
			fmt.Fprintf(&b, "    \"%s\" -> \"%s\";\n", node.Name(), child.Name())
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	b.WriteString("}\n")
	return b.String(), nil
}
