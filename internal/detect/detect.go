// Package detect runs catalog checks against artifact text.
package detect

import (
	"fmt"
	"strings"

	"github.com/ajranjith/gamecheck/internal/catalog"
)

// Result is the outcome of one check against one artifact.
type Result struct {
	Check    string         `json:"check"`
	Category string         `json:"category"`
	Status   catalog.Status `json:"status"`
	Score    int            `json:"score"`
	Message  string         `json:"message"`
	Signal   catalog.Signal `json:"signal"`
}

// Run evaluates a single check. A detector that errors or panics produces a
// fail result instead of propagating.
func Run(check catalog.Check, text string) (res Result) {
	res = Result{Check: check.Name, Category: check.Category}
	defer func() {
		if r := recover(); r != nil {
			res.Status = catalog.StatusFail
			res.Score = 0
			res.Signal = catalog.Signal{}
			res.Message = fmt.Sprintf("detector error: panic: %v", r)
		}
	}()

	sig, err := check.Detector.Detect(text)
	if err != nil {
		res.Status = catalog.StatusFail
		res.Message = "detector error: " + err.Error()
		return res
	}
	res.Signal = sig
	res.Status, res.Score = check.Grader.Grade(sig)
	if res.Score < 0 {
		res.Score = 0
	}
	if res.Score > 100 {
		res.Score = 100
	}
	res.Message = message(res.Status, sig)
	return res
}

// RunAll evaluates every check of c in catalog order.
func RunAll(c *catalog.Catalog, text string) []Result {
	checks := c.Checks()
	out := make([]Result, 0, len(checks))
	for _, chk := range checks {
		out = append(out, Run(chk, text))
	}
	return out
}

func message(st catalog.Status, sig catalog.Signal) string {
	if sig.Unit != "" {
		return fmt.Sprintf("estimated %.1f %s", sig.Value, sig.Unit)
	}
	switch {
	case st == catalog.StatusPass:
		return fmt.Sprintf("%d/%d signals present", sig.Present, sig.Total)
	case len(sig.Missing) > 0:
		return fmt.Sprintf("%d/%d signals present; missing: %s", sig.Present, sig.Total, strings.Join(sig.Missing, ", "))
	default:
		return fmt.Sprintf("%d/%d signals present", sig.Present, sig.Total)
	}
}
