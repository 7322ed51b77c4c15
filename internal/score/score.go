// Package score folds detector results into artifact reports and a
// portfolio summary.
package score

import (
	"time"

	"github.com/ajranjith/gamecheck/internal/catalog"
	"github.com/ajranjith/gamecheck/internal/detect"
)

const (
	// MaxWarningsForPass is the most warnings an artifact may carry and
	// still be graded pass overall.
	MaxWarningsForPass = 2

	ROIBaseline         = 150.0
	ROIPerCoveragePoint = 2.5
)

// Tier is the portfolio's coarse compliance grade.
type Tier string

const (
	TierExcellent        Tier = "excellent"
	TierGood             Tier = "good"
	TierNeedsImprovement Tier = "needs improvement"
	TierCritical         Tier = "critical"
)

// TierFor maps coverage to a tier.
func TierFor(coverage int) Tier {
	switch {
	case coverage >= 95:
		return TierExcellent
	case coverage >= 80:
		return TierGood
	case coverage >= 60:
		return TierNeedsImprovement
	default:
		return TierCritical
	}
}

// Describe returns a one-line description of the tier.
func (t Tier) Describe() string {
	switch t {
	case TierExcellent:
		return "Excellent - portfolio is release ready"
	case TierGood:
		return "Good - minor gaps remain"
	case TierNeedsImprovement:
		return "Needs improvement - several categories are incomplete"
	default:
		return "Critical - most checks are failing"
	}
}

// CategoryResults is the results of one category for one artifact.
type CategoryResults struct {
	Name    string          `json:"name"`
	Results []detect.Result `json:"results"`
}

// ArtifactReport is the composite view of one artifact. A report with a
// non-empty Error describes a missing artifact and is excluded from
// aggregation.
type ArtifactReport struct {
	Artifact   string            `json:"name"`
	// Score is the mean of the result scores, unrounded.
	Score      float64           `json:"score"`
	Status     catalog.Status    `json:"status"`
	Categories []CategoryResults `json:"categories,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// IsMissing reports whether the artifact could not be read.
func (r ArtifactReport) IsMissing() bool { return r.Error != "" }

// Results flattens the per-category results in order.
func (r ArtifactReport) Results() []detect.Result {
	var out []detect.Result
	for _, c := range r.Categories {
		out = append(out, c.Results...)
	}
	return out
}

// Counts returns pass, warning and fail counts.
func (r ArtifactReport) Counts() (passed, warnings, failed int) {
	for _, res := range r.Results() {
		switch res.Status {
		case catalog.StatusPass:
			passed++
		case catalog.StatusWarning:
			warnings++
		default:
			failed++
		}
	}
	return passed, warnings, failed
}

// Compose builds an artifact report. Results are grouped by category in the
// order categories first appear.
func Compose(name string, results []detect.Result) ArtifactReport {
	rep := ArtifactReport{Artifact: name}
	index := map[string]int{}
	total := 0
	for _, res := range results {
		i, ok := index[res.Category]
		if !ok {
			i = len(rep.Categories)
			index[res.Category] = i
			rep.Categories = append(rep.Categories, CategoryResults{Name: res.Category})
		}
		rep.Categories[i].Results = append(rep.Categories[i].Results, res)
		total += res.Score
	}

	if len(results) == 0 {
		rep.Score = 100
	} else {
		rep.Score = float64(total) / float64(len(results))
	}

	_, warnings, failed := rep.Counts()
	switch {
	case failed > 0:
		rep.Status = catalog.StatusFail
	case warnings > MaxWarningsForPass:
		rep.Status = catalog.StatusWarning
	default:
		rep.Status = catalog.StatusPass
	}
	return rep
}

// Missing builds the report for an artifact that could not be read.
func Missing(name string, err error) ArtifactReport {
	msg := "artifact not found"
	if err != nil {
		msg = err.Error()
	}
	return ArtifactReport{Artifact: name, Status: catalog.StatusFail, Error: msg}
}

// Summary is the portfolio-level aggregate.
type Summary struct {
	TotalChecks   int       `json:"total_checks"`
	Passed        int       `json:"passed"`
	Warnings      int       `json:"warnings"`
	Failed        int       `json:"failed"`
	Coverage      int       `json:"coverage"`
	ROI           float64   `json:"roi"`
	MeanLoadMs    float64   `json:"mean_load_ms"`
	ArtifactCount int       `json:"artifact_count"`
	MissingCount  int       `json:"missing_count"`
	Tier          Tier      `json:"tier"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// Summarize folds reports into a Summary. Missing reports are counted but
// contribute no results.
func Summarize(reports []ArtifactReport, at time.Time) Summary {
	s := Summary{GeneratedAt: at.UTC()}
	var loadTotal float64
	loadN := 0
	for _, rep := range reports {
		if rep.IsMissing() {
			s.MissingCount++
			continue
		}
		s.ArtifactCount++
		for _, res := range rep.Results() {
			s.TotalChecks++
			switch res.Status {
			case catalog.StatusPass:
				s.Passed++
			case catalog.StatusWarning:
				s.Warnings++
			default:
				s.Failed++
			}
			if res.Signal.Unit == "ms" {
				loadTotal += res.Signal.Value
				loadN++
			}
		}
	}
	s.Coverage = catalog.Percent(s.Passed, s.TotalChecks)
	s.ROI = ROIBaseline + ROIPerCoveragePoint*float64(s.Coverage)
	if loadN > 0 {
		s.MeanLoadMs = loadTotal / float64(loadN)
	}
	s.Tier = TierFor(s.Coverage)
	return s
}

// ExitCode is 1 when any check failed.
func ExitCode(s Summary) int {
	if s.Failed > 0 {
		return 1
	}
	return 0
}
