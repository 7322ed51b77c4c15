package catalog

import "regexp"

// FixKind selects how a Fix transforms artifact text.
type FixKind string

const (
	// FixInject inserts Block immediately before the first Anchor.
	FixInject FixKind = "inject"
	// FixRewrite applies Rewrites in order and appends Marker.
	FixRewrite FixKind = "rewrite"
)

// Rewrite is one ordered from->to substitution. To may reference capture
// groups with ${n}.
type Rewrite struct {
	From *regexp.Regexp
	To   string
}

// Replace builds a Rewrite. It panics on a malformed expression.
func Replace(from, to string) Rewrite {
	return Rewrite{From: regexp.MustCompile(from), To: to}
}

// Fix is a named, idempotent text transformation. Marker is the stable token
// the fix leaves behind; its presence means the fix was already applied.
type Fix struct {
	Name        string
	Description string
	Kind        FixKind
	Checks      []string
	Targets     []string
	Marker      string
	Anchor      string
	Block       string
	Rewrites    []Rewrite
}

func (f Fix) clone() Fix {
	f.Checks = append([]string(nil), f.Checks...)
	f.Targets = append([]string(nil), f.Targets...)
	f.Rewrites = append([]Rewrite(nil), f.Rewrites...)
	return f
}
