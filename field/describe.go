package field

import (
	"annmerge/utils/debug"
)

// Describe returns human readable outline of the split, used in debug
// reports.
func (r Result) Describe() string {
	tw := debug.NewTreeWriter()
	tw.TextBlock(0, "Residual", r.Residual)
	if r.Opaque {
		tw.Line(0, "Unterminated container left in residual")
	}
	tw.Line(0, "Containers: %d (versioned: %t)", r.Subtree.Len(), r.Subtree.Versioned())
	if r.Subtree == nil {
		return tw.String()
	}
	for i, c := range r.Subtree.containers {
		tw.Line(1, "Container[%d]", i)
		tw.Node(2, c)
	}
	return tw.String()
}
