package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajranjith/gamecheck/internal/catalog"
	"github.com/ajranjith/gamecheck/internal/parity"
	"github.com/ajranjith/gamecheck/internal/report"
	"github.com/ajranjith/gamecheck/internal/support"
)

const completeGame = `<!DOCTYPE html>
<html><head>
<meta name="viewport" content="width=device-width, initial-scale=1">
<style>
.game { width: 90vw; max-width: 100%; }
@media (max-width: 600px) { .game { width: 100vw; } }
@media (prefers-reduced-motion: reduce) { * { animation: none; } }
button:focus-visible { outline: 2px solid; }
</style></head>
<body>
<div role="main" aria-label="game" aria-live="polite"></div>
<script>
window.addEventListener('error', function () {});
window.addEventListener('unhandledrejection', function () {});
try { init(); } catch (e) {}
const Ctx = window.AudioContext || window.webkitAudioContext;
let audioEnabled = true;
sound.play().catch(function () { audioEnabled = false; });
canvas.width = w * window.devicePixelRatio;
const best = localStorage.getItem('best') ?? 0;
const el = document.getElementById('x')?.value;
if (typeof window.foo === 'undefined' && el !== null) {}
</script>
</body></html>
`

const bareGame = `<!DOCTYPE html>
<html><head><style>
body { margin: 0; }
</style></head>
<body><canvas id="c"></canvas>
</body></html>
`

// newWorkspace lays out <root>/games with the given artifacts.
func newWorkspace(t *testing.T, games map[string]string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "games")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, text := range games {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".html"), []byte(text), 0o644))
	}
	return root
}

func run(t *testing.T, root string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(append([]string{"--workspace", root, "--log-level", "error"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func outDir(root string) string { return filepath.Join(root, ".gamecheck") }

func TestReportPassingGate(t *testing.T) {
	root := newWorkspace(t, map[string]string{"complete": completeGame})

	code, out, errOut := run(t, root, "report")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "GATE PASS")
	assert.Contains(t, out, "Coverage 100%")

	records, err := report.List(outDir(root))
	require.NoError(t, err)
	require.Len(t, records, 1)
	for _, f := range []string{"results.sarif", "junit.xml", "certificate.json", support.AuditFile, "ledger.db"} {
		assert.FileExists(t, filepath.Join(outDir(root), f))
	}
}

func TestReportFailingGate(t *testing.T) {
	root := newWorkspace(t, map[string]string{"complete": completeGame, "bare": bareGame})

	code, out, _ := run(t, root, "run-report")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "GATE FAIL")

	code, out, errOut := run(t, root, "history")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "report")
}

func TestReportUnknownCategory(t *testing.T) {
	root := newWorkspace(t, map[string]string{"complete": completeGame})
	code, _, errOut := run(t, root, "report", "--category", "nope")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "ERROR:")
	assert.Contains(t, errOut, "nope")
}

func TestReportCategoryFilter(t *testing.T) {
	root := newWorkspace(t, map[string]string{"bare": bareGame})
	code, out, errOut := run(t, root, "report", "--category", "performance")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "performance")
	assert.NotContains(t, out, "accessibility")
}

func TestReportPersistenceFailureKeepsExitCode(t *testing.T) {
	root := newWorkspace(t, map[string]string{"complete": completeGame})
	require.NoError(t, os.MkdirAll(outDir(root), 0o755))
	// a plain file where the records directory belongs
	require.NoError(t, os.WriteFile(filepath.Join(outDir(root), "reports"), []byte("x"), 0o644))

	code, out, errOut := run(t, root, "report", "--log-level", "warn")
	assert.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "GATE PASS")
	assert.Contains(t, errOut, "report record not written")

	failing := newWorkspace(t, map[string]string{"bare": bareGame})
	require.NoError(t, os.MkdirAll(outDir(failing), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outDir(failing), "reports"), []byte("x"), 0o644))
	code, _, _ = run(t, failing, "report", "--log-level", "warn")
	assert.Equal(t, 1, code)
}

func TestFixDryRunWritesPlanOnly(t *testing.T) {
	root := newWorkspace(t, map[string]string{"bare": bareGame})

	code, out, errOut := run(t, root, "fix", "--dry-run", "--fix", "error-handlers")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "PLANNED")

	data, err := os.ReadFile(filepath.Join(outDir(root), fixPlanFile))
	require.NoError(t, err)
	var plan fixPlan
	require.NoError(t, json.Unmarshal(data, &plan))
	assert.Equal(t, 1, plan.Planned)

	patch, err := os.ReadFile(filepath.Join(outDir(root), fixPatchFile))
	require.NoError(t, err)
	assert.Contains(t, string(patch), "+"+catalog.MarkerErrorHandlers)

	game, err := os.ReadFile(filepath.Join(root, "games", "bare.html"))
	require.NoError(t, err)
	assert.Equal(t, bareGame, string(game))
	assert.NoDirExists(t, filepath.Join(outDir(root), "backups"))
}

func TestFixThenRollback(t *testing.T) {
	root := newWorkspace(t, map[string]string{"bare": bareGame})
	gamePath := filepath.Join(root, "games", "bare.html")

	_, out, _ := run(t, root, "fix", "--fix", "error-handlers")
	assert.Contains(t, out, "APPLIED")

	fixed, err := os.ReadFile(gamePath)
	require.NoError(t, err)
	assert.Contains(t, string(fixed), catalog.MarkerErrorHandlers)

	// second run is a no-op
	_, out, _ = run(t, root, "fix", "--fix", "error-handlers")
	assert.Contains(t, out, "SKIPPED")

	code, out, errOut := run(t, root, "rollback", "bare", "--list")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "error-handlers")

	code, out, errOut = run(t, root, "rollback", "bare")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Restored bare")

	restored, err := os.ReadFile(gamePath)
	require.NoError(t, err)
	assert.Equal(t, bareGame, string(restored))
}

func TestRollbackWithoutBackups(t *testing.T) {
	root := newWorkspace(t, map[string]string{"bare": bareGame})
	code, _, errOut := run(t, root, "rollback", "bare")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "artifact not found")
}

func TestFixUnknownFix(t *testing.T) {
	root := newWorkspace(t, map[string]string{"bare": bareGame})
	code, _, errOut := run(t, root, "fix", "--fix", "nope")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown fix")
}

func TestVerifyCert(t *testing.T) {
	t.Setenv(support.SigningKeyEnv, base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32)))
	root := newWorkspace(t, map[string]string{"complete": completeGame})

	code, _, errOut := run(t, root, "report")
	require.Equal(t, 0, code, errOut)

	code, out, errOut := run(t, root, "verify-cert")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Signature: VALID")
	assert.Contains(t, out, "3 files verified")

	junit := filepath.Join(outDir(root), "junit.xml")
	require.NoError(t, os.WriteFile(junit, []byte("<testsuites/>"), 0o644))
	code, out, _ = run(t, root, "verify-cert")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Evidence changed: junit.xml")
}

func TestVerifyCertWithoutKey(t *testing.T) {
	t.Setenv(support.SigningKeyEnv, "")
	root := newWorkspace(t, map[string]string{"complete": completeGame})
	code, _, _ := run(t, root, "report")
	require.Equal(t, 0, code)

	code, _, errOut := run(t, root, "verify-cert")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no signing key")
}

func TestParity(t *testing.T) {
	root := newWorkspace(t, map[string]string{"complete": completeGame, "bare": bareGame})
	require.NoError(t, os.WriteFile(filepath.Join(root, "parity.yml"), []byte(`
- game: complete
  status: pass
- game: bare
  status: fail
`), 0o644))

	code, out, errOut := run(t, root, "parity")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "confidence HIGH")
	assert.FileExists(t, filepath.Join(outDir(root), parity.ReportFile))

	require.NoError(t, os.WriteFile(filepath.Join(root, "parity.yml"), []byte("- game: bare\n  status: pass\n"), 0o644))
	code, out, _ = run(t, root, "parity")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "MISMATCH bare")
}

func TestDoctor(t *testing.T) {
	root := newWorkspace(t, map[string]string{"bare": bareGame})

	code, out, errOut := run(t, root, "doctor")
	require.Equal(t, 0, code, errOut+out)
	assert.Contains(t, out, "bare")

	data, err := os.ReadFile(filepath.Join(outDir(root), doctorFile))
	require.NoError(t, err)
	var rep doctorReport
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, "OK", rep.Status)
	require.Len(t, rep.Artifacts, 1)
	assert.Equal(t, fixReady, rep.Artifacts[0].Fixes["error-handlers"])
}

func TestDoctorMissingGames(t *testing.T) {
	root := t.TempDir()
	code, out, _ := run(t, root, "doctor")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "games dir missing")
}

func TestSupportBundle(t *testing.T) {
	root := newWorkspace(t, map[string]string{"complete": completeGame})
	code, _, _ := run(t, root, "report")
	require.Equal(t, 0, code)

	code, out, errOut := run(t, root, "support-bundle")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Support bundle:")

	matches, err := filepath.Glob(filepath.Join(outDir(root), "support-bundle_*.zip"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	zr, err := zip.OpenReader(matches[0])
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, support.AuditFile)
	assert.Contains(t, names, certificateFile)
	var hasRecord bool
	for _, n := range names {
		hasRecord = hasRecord || strings.HasPrefix(n, "reports/report_")
	}
	assert.True(t, hasRecord, names)
}

func TestVersion(t *testing.T) {
	code, out, _ := run(t, t.TempDir(), "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "gamecheck "+Version)
}

func TestWatchRerunsOnChange(t *testing.T) {
	root := newWorkspace(t, map[string]string{"complete": completeGame})
	globalFlags.workspace = root
	globalFlags.logLevel = "error"
	t.Cleanup(func() { globalFlags.workspace, globalFlags.logLevel = "", "" })

	a, err := loadApp()
	require.NoError(t, err)
	defer a.Close()
	a.cfg.Watch.DebounceMs = 20

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ran := make(chan string, 4)
	done := make(chan error, 1)
	var out bytes.Buffer
	go func() { done <- a.watch(ctx, &out, ran) }()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("no initial run")
	}

	require.NoError(t, os.WriteFile(filepath.Join(root, "games", "bare.html"), []byte(bareGame), 0o644))
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("no run after change")
	}
	cancel()
	require.NoError(t, <-done)

	records, err := report.List(outDir(root))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(records), 2)
}
