package catalog

import (
	"fmt"
	"regexp"
)

// Marker is one atomic textual signal.
type Marker struct {
	Name    string
	Pattern *regexp.Regexp
}

// Literal builds a marker matching s verbatim.
func Literal(name, s string) Marker {
	return Marker{Name: name, Pattern: regexp.MustCompile(regexp.QuoteMeta(s))}
}

// Pattern builds a marker from a regular expression. It panics on a malformed
// expression: catalog definitions are compiled in.
func Pattern(name, expr string) Marker {
	return Marker{Name: name, Pattern: regexp.MustCompile(expr)}
}

// MarkerSet detects how many of its markers occur in the text.
type MarkerSet []Marker

// Detect implements Detector.
func (m MarkerSet) Detect(text string) (Signal, error) {
	sig := Signal{Total: len(m)}
	for _, mk := range m {
		if mk.Pattern == nil {
			return Signal{}, fmt.Errorf("marker %q has no pattern", mk.Name)
		}
		if mk.Pattern.MatchString(text) {
			sig.Present++
			sig.Matched = append(sig.Matched, mk.Name)
		} else {
			sig.Missing = append(sig.Missing, mk.Name)
		}
	}
	return sig, nil
}

// LoadEstimate derives an estimated load time in milliseconds from the
// artifact's byte length.
type LoadEstimate struct {
	BytesPerMs float64
}

// Detect implements Detector.
func (l LoadEstimate) Detect(text string) (Signal, error) {
	if l.BytesPerMs <= 0 {
		return Signal{}, fmt.Errorf("load estimate: bytes per ms must be positive, got %v", l.BytesPerMs)
	}
	return Signal{
		Value: float64(len(text)) / l.BytesPerMs,
		Unit:  "ms",
	}, nil
}
