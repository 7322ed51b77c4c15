package report

import (
	"encoding/xml"
	"fmt"

	"github.com/ajranjith/gamecheck/internal/catalog"
	"github.com/ajranjith/gamecheck/internal/support"
)

type junitTestsuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Testsuites []junitTestsuite `xml:"testsuite"`
}
type junitTestsuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []junitTestcase `xml:"testcase"`
}
type junitTestcase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
}
type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}
type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// WriteJUnit writes one suite per artifact with a case per check, plus a
// gate suite. Warnings fail only when the policy does not tolerate them.
func WriteJUnit(dst string, rec Record) error {
	data, err := xml.MarshalIndent(buildJUnit(rec), "", "  ")
	if err != nil {
		return err
	}
	return support.WriteFileAtomic(dst, append([]byte(xml.Header), data...))
}

func buildJUnit(rec Record) junitTestsuites {
	warnViolated := !rec.Policy.EffectiveAllowWarnings() && rec.Summary.Warnings > 0
	if rec.Policy.MaxWarnings != nil && rec.Summary.Warnings > *rec.Policy.MaxWarnings {
		warnViolated = true
	}

	var suites []junitTestsuite
	for _, a := range rec.Artifacts {
		suite := junitTestsuite{Name: "gamecheck." + a.Artifact, Time: "0"}
		for _, r := range a.Results() {
			tc := junitTestcase{Name: r.Check, Classname: "gamecheck." + r.Category, Time: "0"}
			switch r.Status {
			case catalog.StatusFail:
				tc.Failure = &junitFailure{Message: r.Message, Type: "FAIL", Body: fmt.Sprintf("%s: %s", a.Artifact, r.Message)}
				suite.Failures++
			case catalog.StatusWarning:
				if warnViolated {
					tc.Failure = &junitFailure{Message: r.Message, Type: "WARNING", Body: fmt.Sprintf("%s: %s", a.Artifact, r.Message)}
					suite.Failures++
				} else {
					tc.Skipped = &junitSkipped{Message: "warning tolerated by gate"}
					suite.Skipped++
				}
			}
			suite.Cases = append(suite.Cases, tc)
		}
		suite.Tests = len(suite.Cases)
		suites = append(suites, suite)
	}

	gateSuite := junitTestsuite{Name: "gamecheck.gate", Time: "0"}
	for _, m := range rec.Missing {
		gateSuite.Cases = append(gateSuite.Cases, junitTestcase{
			Name: m.Name, Classname: "gamecheck.artifact", Time: "0",
			Failure: &junitFailure{Message: m.Error, Type: "MISSING", Body: m.Error},
		})
		gateSuite.Failures++
	}
	gateCase := junitTestcase{Name: "gamecheck-gate", Classname: "gamecheck.gate", Time: "0"}
	if !rec.Verdict.Pass {
		gateCase.Failure = &junitFailure{Message: rec.Verdict.Message, Type: "GATE", Body: rec.Verdict.Message}
		gateSuite.Failures++
	}
	gateSuite.Cases = append(gateSuite.Cases, gateCase)
	gateSuite.Tests = len(gateSuite.Cases)

	return junitTestsuites{Testsuites: append(suites, gateSuite)}
}
