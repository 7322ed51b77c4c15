// Package gate turns a portfolio summary into a pass/fail verdict.
package gate

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/ajranjith/gamecheck/internal/score"
)

// Policy configures the gate. Pointer fields distinguish "unset" from zero
// values.
type Policy struct {
	FailOnFail    *bool  `json:"failOnFail,omitempty" yaml:"failOnFail"`
	AllowWarnings *bool  `json:"allowWarnings,omitempty" yaml:"allowWarnings"`
	MaxFail       *int   `json:"maxFail,omitempty" yaml:"maxFail"`
	MaxWarnings   *int   `json:"maxWarnings,omitempty" yaml:"maxWarnings"`
	Expr          string `json:"expr,omitempty" yaml:"expr"`
}

// EffectiveFailOnFail defaults to true.
func (p Policy) EffectiveFailOnFail() bool {
	if p.FailOnFail == nil {
		return true
	}
	return *p.FailOnFail
}

// EffectiveAllowWarnings defaults to true.
func (p Policy) EffectiveAllowWarnings() bool {
	if p.AllowWarnings == nil {
		return true
	}
	return *p.AllowWarnings
}

// Validate rejects negative caps and expressions that do not compile.
func (p Policy) Validate() error {
	if p.MaxFail != nil && *p.MaxFail < 0 {
		return fmt.Errorf("policy.maxFail must be >= 0, got %d", *p.MaxFail)
	}
	if p.MaxWarnings != nil && *p.MaxWarnings < 0 {
		return fmt.Errorf("policy.maxWarnings must be >= 0, got %d", *p.MaxWarnings)
	}
	if strings.TrimSpace(p.Expr) != "" {
		if _, err := compile(p.Expr); err != nil {
			return fmt.Errorf("policy.expr: %w", err)
		}
	}
	return nil
}

// Verdict is the gate decision.
type Verdict struct {
	Pass     bool     `json:"pass"`
	Message  string   `json:"message"`
	Reasons  []string `json:"reasons,omitempty"`
	ExitCode int      `json:"exit_code"`
}

var variables = []string{"passed", "warnings", "failed", "total", "coverage", "missing"}

func compile(expr string) (cel.Program, error) {
	opts := make([]cel.EnvOption, 0, len(variables))
	for _, v := range variables {
		opts = append(opts, cel.Variable(v, cel.IntType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression must be boolean, got %s", ast.OutputType())
	}
	return env.Program(ast)
}

func evalExpr(expr string, s score.Summary) (bool, error) {
	prg, err := compile(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{
		"passed":   int64(s.Passed),
		"warnings": int64(s.Warnings),
		"failed":   int64(s.Failed),
		"total":    int64(s.TotalChecks),
		"coverage": int64(s.Coverage),
		"missing":  int64(s.MissingCount),
	})
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, want bool", out.Value())
	}
	return b, nil
}

// Evaluate applies numeric caps, then boolean rules, then the expression.
// The first failing rule becomes the verdict message.
func Evaluate(p Policy, s score.Summary) Verdict {
	v := Verdict{Pass: true}
	var reasons []string
	fail := func(msg string) {
		v.Pass = false
		reasons = append(reasons, msg)
	}

	if p.MaxFail != nil && s.Failed > *p.MaxFail {
		fail(fmt.Sprintf("FAILED: fail results (%d) exceeded maxFail (%d)", s.Failed, *p.MaxFail))
	}
	if p.MaxWarnings != nil && s.Warnings > *p.MaxWarnings {
		fail(fmt.Sprintf("FAILED: warning results (%d) exceeded maxWarnings (%d)", s.Warnings, *p.MaxWarnings))
	}

	if p.EffectiveFailOnFail() && s.Failed > 0 {
		fail(fmt.Sprintf("FAILED: %d fail results detected (failOnFail enabled)", s.Failed))
	}
	if !p.EffectiveAllowWarnings() && s.Warnings > 0 {
		fail(fmt.Sprintf("FAILED: %d warning results detected (allowWarnings disabled)", s.Warnings))
	}

	if expr := strings.TrimSpace(p.Expr); expr != "" {
		ok, err := evalExpr(expr, s)
		switch {
		case err != nil:
			fail(fmt.Sprintf("FAILED: policy expression error: %v", err))
		case !ok:
			fail(fmt.Sprintf("FAILED: policy expression %q is false", expr))
		}
	}

	v.Reasons = reasons
	if v.Pass {
		v.Message = fmt.Sprintf("PASSED: pass=%d, warning=%d, fail=%d, coverage=%d%%", s.Passed, s.Warnings, s.Failed, s.Coverage)
	} else {
		v.Message = reasons[0]
		v.ExitCode = 1
	}
	return v
}
