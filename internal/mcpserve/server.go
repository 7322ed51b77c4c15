// Package mcpserve exposes scanning and fixing as MCP tools over stdio.
package mcpserve

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ajranjith/gamecheck/internal/catalog"
	"github.com/ajranjith/gamecheck/internal/fixer"
	"github.com/ajranjith/gamecheck/internal/gate"
	"github.com/ajranjith/gamecheck/internal/logging"
	"github.com/ajranjith/gamecheck/internal/scan"
	"github.com/ajranjith/gamecheck/internal/score"
)

// Store is the artifact access the tools need.
type Store interface {
	scan.Source
	fixer.Store
}

// Server wraps the MCP SDK server. Tool calls are serialized so that a
// scan never observes a half-applied fix.
type Server struct {
	MCPServer *sdkmcp.Server

	cat    *catalog.Catalog
	store  Store
	index  fixer.BackupIndex
	policy gate.Policy

	mu  sync.Mutex
	log *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithIndex records backups made by apply_fix.
func WithIndex(idx fixer.BackupIndex) Option { return func(s *Server) { s.index = idx } }

// WithPolicy sets the gate policy reported by scan_games.
func WithPolicy(p gate.Policy) Option { return func(s *Server) { s.policy = p } }

func NewServer(version string, cat *catalog.Catalog, st Store, opts ...Option) *Server {
	s := &Server{
		MCPServer: sdkmcp.NewServer(&sdkmcp.Implementation{Name: "gamecheck", Version: version}, nil),
		cat:       cat,
		store:     st,
		log:       logging.New("mcp"),
	}
	for _, o := range opts {
		o(s)
	}
	s.registerTools()
	return s
}

// Run serves over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("mcp server starting", "checks", len(s.cat.Checks()), "fixes", len(s.cat.Fixes()))
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_checks",
		Description: "List quality categories, their checks, and the available fixes.",
	}, s.handleListChecks)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "scan_games",
		Description: "Scan game artifacts and return per-artifact scores, the portfolio summary, and the gate verdict.",
	}, s.handleScanGames)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "plan_fix",
		Description: "Preview fixes as unified diffs without writing anything.",
	}, s.handlePlanFix)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "apply_fix",
		Description: "Apply fixes with backups and return the outcomes and the summary after re-scanning.",
	}, s.handleApplyFix)
}

// --- Tool input/output types ---

type listChecksInput struct{}

type checkInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type categoryInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Checks      []checkInfo `json:"checks"`
}

type fixInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Checks      []string `json:"checks"`
	Targets     []string `json:"targets"`
}

type listChecksOutput struct {
	Categories []categoryInfo `json:"categories"`
	Fixes      []fixInfo      `json:"fixes"`
}

type scanGamesInput struct {
	Games    []string `json:"games,omitempty" jsonschema:"artifact names to scan (default: every artifact)"`
	Category string   `json:"category,omitempty" jsonschema:"restrict checks to one category"`
}

type scanGamesOutput struct {
	RunID     string                 `json:"run_id"`
	Summary   score.Summary          `json:"summary"`
	Verdict   gate.Verdict           `json:"verdict"`
	Artifacts []score.ArtifactReport `json:"artifacts"`
}

type fixInput struct {
	Fixes []string `json:"fixes,omitempty" jsonschema:"fix names to run (default: every fix)"`
}

type planFixOutput struct {
	Outcomes []fixer.Outcome `json:"outcomes"`
	Patch    string          `json:"patch"`
}

type applyFixOutput struct {
	Outcomes []fixer.Outcome `json:"outcomes"`
	Applied  int             `json:"applied"`
	Skipped  int             `json:"skipped"`
	Errors   int             `json:"errors"`
	Summary  score.Summary   `json:"summary"`
}

// --- Tool handlers ---

func (s *Server) handleListChecks(_ context.Context, _ *sdkmcp.CallToolRequest, _ listChecksInput) (*sdkmcp.CallToolResult, listChecksOutput, error) {
	var out listChecksOutput
	for _, cat := range s.cat.Categories() {
		ci := categoryInfo{Name: cat.Name, Description: cat.Description}
		for _, chk := range cat.Checks {
			ci.Checks = append(ci.Checks, checkInfo{Name: chk.Name, Description: chk.Description})
		}
		out.Categories = append(out.Categories, ci)
	}
	for _, fx := range s.cat.Fixes() {
		out.Fixes = append(out.Fixes, fixInfo{Name: fx.Name, Description: fx.Description, Checks: fx.Checks, Targets: fx.Targets})
	}
	return nil, out, nil
}

func (s *Server) handleScanGames(ctx context.Context, _ *sdkmcp.CallToolRequest, input scanGamesInput) (*sdkmcp.CallToolResult, scanGamesOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := s.cat.Only(input.Category)
	if err != nil {
		return nil, scanGamesOutput{}, err
	}
	res, err := scan.New(cat, s.store).Run(ctx, input.Games)
	if err != nil {
		return nil, scanGamesOutput{}, fmt.Errorf("scan: %w", err)
	}
	s.log.Info("scan_games", "run_id", res.RunID, "artifacts", res.Summary.ArtifactCount, "coverage", res.Summary.Coverage)
	return nil, scanGamesOutput{
		RunID:     res.RunID,
		Summary:   res.Summary,
		Verdict:   gate.Evaluate(s.policy, res.Summary),
		Artifacts: res.Reports,
	}, nil
}

func (s *Server) handlePlanFix(ctx context.Context, _ *sdkmcp.CallToolRequest, input fixInput) (*sdkmcp.CallToolResult, planFixOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcomes, err := s.engine().DryRun(ctx, input.Fixes...)
	if err != nil {
		return nil, planFixOutput{}, err
	}
	return nil, planFixOutput{Outcomes: outcomes, Patch: fixer.Patch(outcomes)}, nil
}

func (s *Server) handleApplyFix(ctx context.Context, _ *sdkmcp.CallToolRequest, input fixInput) (*sdkmcp.CallToolResult, applyFixOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcomes, err := s.engine().ApplyAll(ctx, input.Fixes...)
	if err != nil {
		return nil, applyFixOutput{}, err
	}
	counts := fixer.Counts(outcomes)
	res, err := scan.New(s.cat, s.store).Run(ctx, nil)
	if err != nil {
		return nil, applyFixOutput{}, fmt.Errorf("re-scan: %w", err)
	}
	s.log.Info("apply_fix", "applied", counts[fixer.StatusApplied], "errors", counts[fixer.StatusError])
	return nil, applyFixOutput{
		Outcomes: outcomes,
		Applied:  counts[fixer.StatusApplied],
		Skipped:  counts[fixer.StatusSkipped],
		Errors:   counts[fixer.StatusError],
		Summary:  res.Summary,
	}, nil
}

func (s *Server) engine() *fixer.Engine {
	opts := []fixer.Option{fixer.WithLogger(s.log)}
	if s.index != nil {
		opts = append(opts, fixer.WithIndex(s.index))
	}
	return fixer.New(s.cat, s.store, opts...)
}
