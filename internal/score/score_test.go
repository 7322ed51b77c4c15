package score

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajranjith/gamecheck/internal/catalog"
	"github.com/ajranjith/gamecheck/internal/detect"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func result(check, category string, st catalog.Status, sc int) detect.Result {
	return detect.Result{Check: check, Category: category, Status: st, Score: sc}
}

func TestComposeMeanAndStatus(t *testing.T) {
	rep := Compose("snake", []detect.Result{
		result("a", "visual", catalog.StatusPass, 100),
		result("b", "visual", catalog.StatusWarning, 75),
		result("c", "sound", catalog.StatusWarning, 50),
	})
	assert.InDelta(t, 75.0, rep.Score, 1e-9)
	assert.Equal(t, catalog.StatusPass, rep.Status)
	require.Len(t, rep.Categories, 2)
	assert.Equal(t, "visual", rep.Categories[0].Name)
	assert.Len(t, rep.Categories[0].Results, 2)
}

func TestComposeWarningThreshold(t *testing.T) {
	rep := Compose("pong", []detect.Result{
		result("a", "x", catalog.StatusWarning, 50),
		result("b", "x", catalog.StatusWarning, 50),
		result("c", "x", catalog.StatusWarning, 50),
	})
	assert.Equal(t, catalog.StatusWarning, rep.Status)

	rep = Compose("pong", []detect.Result{
		result("a", "x", catalog.StatusPass, 100),
		result("b", "x", catalog.StatusFail, 0),
	})
	assert.Equal(t, catalog.StatusFail, rep.Status)
	assert.InDelta(t, 50.0, rep.Score, 1e-9)
}

func TestComposeEmpty(t *testing.T) {
	rep := Compose("empty", nil)
	assert.InDelta(t, 100.0, rep.Score, 1e-9)
	assert.Equal(t, catalog.StatusPass, rep.Status)
}

func TestComposeScoreIsExactMean(t *testing.T) {
	rep := Compose("maze", []detect.Result{
		result("a", "visual", catalog.StatusPass, 100),
		result("b", "visual", catalog.StatusWarning, 75),
		result("c", "sound", catalog.StatusFail, 0),
	})
	assert.InDelta(t, 175.0/3.0, rep.Score, 1e-9)
	assert.NotEqual(t, 58.0, rep.Score)
}

func TestPortfolioOfTenArtifacts(t *testing.T) {
	checks := catalog.Default().Checks()
	require.Len(t, checks, 8)

	var reports []ArtifactReport
	for i := 0; i < 10; i++ {
		var results []detect.Result
		for j, chk := range checks {
			st, sc := catalog.StatusPass, 100
			if j == 0 {
				st, sc = catalog.StatusWarning, 75
			}
			results = append(results, result(chk.Name, chk.Category, st, sc))
		}
		reports = append(reports, Compose(fmt.Sprintf("game-%02d", i), results))
	}

	s := Summarize(reports, fixedTime)
	assert.Equal(t, 80, s.TotalChecks)
	assert.Equal(t, 72, s.Passed)
	assert.Equal(t, 8, s.Warnings)
	assert.Equal(t, 0, s.Failed)
	assert.Equal(t, 90, s.Coverage)
	assert.Equal(t, TierGood, s.Tier)
	assert.InDelta(t, 375.0, s.ROI, 1e-9)
	assert.Equal(t, 0, ExitCode(s))
}

func TestSummarizeMissingAndEmpty(t *testing.T) {
	s := Summarize(nil, fixedTime)
	assert.Equal(t, 100, s.Coverage)
	assert.Equal(t, TierExcellent, s.Tier)

	s = Summarize([]ArtifactReport{
		Missing("ghost", errors.New("artifact not found")),
		Compose("real", []detect.Result{result("a", "x", catalog.StatusFail, 0)}),
	}, fixedTime)
	assert.Equal(t, 1, s.MissingCount)
	assert.Equal(t, 1, s.ArtifactCount)
	assert.Equal(t, 1, s.TotalChecks)
	assert.Equal(t, 0, s.Coverage)
	assert.Equal(t, TierCritical, s.Tier)
	assert.Equal(t, 1, ExitCode(s))
}

func TestMeanLoadTime(t *testing.T) {
	a := detect.Result{Check: "load-time", Category: "performance", Status: catalog.StatusPass, Score: 100, Signal: catalog.Signal{Value: 10, Unit: "ms"}}
	b := a
	b.Signal.Value = 30
	s := Summarize([]ArtifactReport{Compose("a", []detect.Result{a}), Compose("b", []detect.Result{b})}, fixedTime)
	assert.InDelta(t, 20.0, s.MeanLoadMs, 1e-9)
}

func TestTierBoundaries(t *testing.T) {
	assert.Equal(t, TierExcellent, TierFor(95))
	assert.Equal(t, TierGood, TierFor(94))
	assert.Equal(t, TierGood, TierFor(80))
	assert.Equal(t, TierNeedsImprovement, TierFor(79))
	assert.Equal(t, TierNeedsImprovement, TierFor(60))
	assert.Equal(t, TierCritical, TierFor(59))
}

func TestSummarizeDeterministic(t *testing.T) {
	reports := []ArtifactReport{Compose("a", []detect.Result{result("x", "y", catalog.StatusWarning, 50)})}
	if diff := cmp.Diff(Summarize(reports, fixedTime), Summarize(reports, fixedTime)); diff != "" {
		t.Fatalf("summary differs:\n%s", diff)
	}
}
