package fixer

import (
	"fmt"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/ajranjith/gamecheck/internal/store"
)

// Diff renders a unified diff of an artifact's content change.
func Diff(artifact, before, after string) string {
	name := artifact + store.Ext
	edits := myers.ComputeEdits(span.URIFromPath(name), before, after)
	return fmt.Sprint(gotextdiff.ToUnified("a/"+name, "b/"+name, before, edits))
}

// Patch concatenates the diffs of planned outcomes.
func Patch(outcomes []Outcome) string {
	var b strings.Builder
	for _, o := range outcomes {
		if o.Diff == "" {
			continue
		}
		fmt.Fprintf(&b, "# fix %s on %s (%d changes)\n", o.Fix, o.Artifact, o.Changes)
		b.WriteString(o.Diff)
		if !strings.HasSuffix(o.Diff, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
