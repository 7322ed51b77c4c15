package report

import (
	"fmt"
	"path"

	"github.com/ajranjith/gamecheck/internal/catalog"
	"github.com/ajranjith/gamecheck/internal/support"
)

const sarifSchema = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"

type sarifDocument struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}
type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}
type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}
type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules,omitempty"`
}
type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}
type sarifResult struct {
	RuleID  string          `json:"ruleId"`
	Level   string          `json:"level"`
	Message sarifMessage    `json:"message"`
	Locs    []sarifLocation `json:"locations,omitempty"`
}
type sarifMessage struct {
	Text string `json:"text"`
}
type sarifLocation struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
}
type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
}
type sarifArtifact struct {
	URI string `json:"uri"`
}

// SARIFOptions locates artifacts and names the tool.
type SARIFOptions struct {
	// GamesURI is the games directory as it should appear in result URIs.
	GamesURI string
	Version  string
	Catalog  *catalog.Catalog
}

// WriteSARIF writes warnings as SARIF "warning" and fails as "error". A
// failing gate adds one "gamecheck-gate" error.
func WriteSARIF(dst string, rec Record, opts SARIFOptions) error {
	return support.WriteJSONAtomic(dst, buildSARIF(rec, opts))
}

func buildSARIF(rec Record, opts SARIFOptions) sarifDocument {
	results := []sarifResult{}
	loc := func(artifact string) []sarifLocation {
		return []sarifLocation{{PhysicalLocation: sarifPhysical{
			ArtifactLocation: sarifArtifact{URI: path.Join(opts.GamesURI, artifact+".html")},
		}}}
	}

	for _, a := range rec.Artifacts {
		for _, r := range a.Results() {
			level := ""
			switch r.Status {
			case catalog.StatusWarning:
				level = "warning"
			case catalog.StatusFail:
				level = "error"
			default:
				continue
			}
			results = append(results, sarifResult{
				RuleID:  r.Check,
				Level:   level,
				Message: sarifMessage{Text: fmt.Sprintf("%s: %s (score %d)", a.Artifact, r.Message, r.Score)},
				Locs:    loc(a.Artifact),
			})
		}
	}
	for _, m := range rec.Missing {
		results = append(results, sarifResult{
			RuleID:  "artifact-missing",
			Level:   "error",
			Message: sarifMessage{Text: fmt.Sprintf("%s: %s", m.Name, m.Error)},
			Locs:    loc(m.Name),
		})
	}
	if !rec.Verdict.Pass {
		results = append(results, sarifResult{
			RuleID:  "gamecheck-gate",
			Level:   "error",
			Message: sarifMessage{Text: rec.Verdict.Message},
		})
	}

	var rules []sarifRule
	if opts.Catalog != nil {
		for _, chk := range opts.Catalog.Checks() {
			rules = append(rules, sarifRule{ID: chk.Name, ShortDescription: sarifMessage{Text: chk.Description}})
		}
	}

	return sarifDocument{
		Schema:  sarifSchema,
		Version: "2.1.0",
		Runs: []sarifRun{{
			Tool:    sarifTool{Driver: sarifDriver{Name: "gamecheck", Version: opts.Version, Rules: rules}},
			Results: results,
		}},
	}
}
