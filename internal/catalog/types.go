package catalog

import "math"

// Status is the graded outcome of one check against one artifact.
type Status string

const (
	StatusPass    Status = "pass"
	StatusWarning Status = "warning"
	StatusFail    Status = "fail"
)

// Rank orders statuses from worst (0) to best (2).
func (s Status) Rank() int {
	switch s {
	case StatusPass:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// Signal is what a Detector observed in an artifact's text.
// Marker detectors fill Present/Total; metric detectors fill Value/Unit.
type Signal struct {
	Present int      `json:"present"`
	Total   int      `json:"total"`
	Matched []string `json:"matched,omitempty"`
	Missing []string `json:"missing,omitempty"`
	Value   float64  `json:"value,omitempty"`
	Unit    string   `json:"unit,omitempty"`
}

// Detector evaluates raw artifact text. Implementations must not retain or
// mutate the text and must return the same Signal for the same input.
type Detector interface {
	Detect(text string) (Signal, error)
}

// Grader maps a Signal to a status and a score in [0,100].
type Grader interface {
	Grade(sig Signal) (Status, int)
}

// Check is a single named compliance test. Category is assigned by New from
// the owning Category.
type Check struct {
	Name        string
	Category    string
	Description string
	Detector    Detector
	Grader      Grader
}

// Category groups checks under a name.
type Category struct {
	Name        string
	Description string
	Checks      []Check
}

// Percent returns round(100*part/whole), or 100 when whole is zero.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 100
	}
	return int(math.Round(100 * float64(part) / float64(whole)))
}
