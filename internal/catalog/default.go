package catalog

// Fix markers. Each fix leaves exactly one of these behind.
const (
	MarkerResponsiveCSS = "/* gamecheck:fix=responsive-css */"
	MarkerMotionCSS     = "/* gamecheck:fix=motion-css */"
	MarkerErrorHandlers = "// gamecheck:fix=error-handlers"
	MarkerAudioFallback = "<!-- gamecheck:fix=audio-fallback -->"
	MarkerNullSafety    = "<!-- gamecheck:fix=null-safety -->"
)

const (
	anchorStyleClose = "</style>"
	anchorBodyClose  = "</body>"
)

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(defaultCategories(), defaultFixes())
	if err != nil {
		panic("catalog: invalid default definition: " + err.Error())
	}
	return c
}

func defaultCategories() []Category {
	return []Category{
		{
			Name:        "error-recovery",
			Description: "Global error capture and local try/catch recovery",
			Checks: []Check{{
				Name:        "error-handlers",
				Description: "window error listener, unhandledrejection listener, try and catch blocks",
				Detector: MarkerSet{
					Pattern("global error listener", `window\.onerror\s*=|addEventListener\(\s*['"]error['"]`),
					Literal("unhandledrejection listener", "unhandledrejection"),
					Pattern("try block", `\btry\s*\{`),
					Pattern("catch block", `\}\s*catch\s*(\(|\{)`),
				},
				Grader: MultiSignal(),
			}},
		},
		{
			Name:        "sound",
			Description: "Audio initialisation that degrades when audio is unavailable",
			Checks: []Check{{
				Name:        "audio-fallback",
				Description: "AudioContext with webkit fallback, guarded play(), audio-enabled flag",
				Detector: MarkerSet{
					Pattern("AudioContext", `\bAudioContext\b`),
					Literal("webkitAudioContext fallback", "webkitAudioContext"),
					Pattern("play() rejection handler", `\.play\(\)\s*\.catch\(`),
					Pattern("audio enabled flag", `(?i)\b(audio|sound)(Enabled|On|Muted|Available)\b`),
				},
				Grader: MultiSignal(),
			}},
		},
		{
			Name:        "visual",
			Description: "Layout and rendering across viewport sizes and pixel densities",
			Checks: []Check{
				{
					Name:        "responsive-layout",
					Description: "viewport meta, media queries, fluid widths, viewport units",
					Detector: MarkerSet{
						Pattern("viewport meta", `<meta[^>]+name=["']viewport["']`),
						Literal("media query", "@media"),
						Pattern("fluid max-width", `max-width\s*:\s*100%`),
						Pattern("viewport units", `\b\d+(\.\d+)?(vw|vh|vmin|vmax)\b`),
					},
					Grader: MultiSignal(),
				},
				{
					Name:        "canvas-scaling",
					Description: "canvas sized against devicePixelRatio",
					Detector:    MarkerSet{Literal("devicePixelRatio", "devicePixelRatio")},
					Grader:      Binary(),
				},
			},
		},
		{
			Name:        "accessibility",
			Description: "Assistive technology states and motion preferences",
			Checks: []Check{
				{
					Name:        "aria-states",
					Description: "aria-label, aria-live, role attributes, focus-visible styles",
					Detector: MarkerSet{
						Literal("aria-label", "aria-label"),
						Literal("aria-live", "aria-live"),
						Pattern("role attribute", `\brole=["']`),
						Literal("focus-visible style", ":focus-visible"),
					},
					Grader: MultiSignal(),
				},
				{
					Name:        "reduced-motion",
					Description: "prefers-reduced-motion media query",
					Detector:    MarkerSet{Literal("prefers-reduced-motion", "prefers-reduced-motion")},
					Grader:      Binary(),
				},
			},
		},
		{
			Name:        "type-safety",
			Description: "Null and undefined guards in game script",
			Checks: []Check{{
				Name:        "null-safety",
				Description: "optional chaining, nullish coalescing, typeof undefined guards, null comparisons",
				Detector: MarkerSet{
					Pattern("optional chaining", `[\w\)\]]\?\.[\w\[(]`),
					Pattern("nullish coalescing", `\?\?`),
					Pattern("typeof undefined guard", `typeof\s+[\w.$]+\s*[!=]==?\s*['"]undefined['"]`),
					Pattern("null comparison", `[!=]==?\s*null\b`),
				},
				Grader: MultiSignal(),
			}},
		},
		{
			Name:        "performance",
			Description: "Estimated load cost",
			Checks: []Check{{
				Name:        "load-time",
				Description: "estimated load time from artifact size",
				Detector:    LoadEstimate{BytesPerMs: BytesPerMs},
				Grader:      LoadTime(),
			}},
		},
	}
}

func defaultFixes() []Fix {
	return []Fix{
		{
			Name:        "responsive-css",
			Description: "inject fluid layout rules and a mobile media query",
			Kind:        FixInject,
			Checks:      []string{"responsive-layout"},
			Marker:      MarkerResponsiveCSS,
			Anchor:      anchorStyleClose,
			Block: MarkerResponsiveCSS + `
html, body { margin: 0; padding: 0; }
canvas, img, video { max-width: 100%; height: auto; }
.game-container { width: min(100vw, 960px); margin: 0 auto; }
@media (max-width: 768px) {
  .game-container { width: 100vw; }
  button { min-height: 44px; }
}
`,
		},
		{
			Name:        "motion-css",
			Description: "inject focus-visible outlines and a reduced-motion override",
			Kind:        FixInject,
			Checks:      []string{"reduced-motion", "aria-states"},
			Marker:      MarkerMotionCSS,
			Anchor:      anchorStyleClose,
			Block: MarkerMotionCSS + `
:focus-visible { outline: 3px solid #4a90d9; outline-offset: 2px; }
@media (prefers-reduced-motion: reduce) {
  *, *::before, *::after { animation-duration: 0.01ms !important; transition-duration: 0.01ms !important; }
}
`,
		},
		{
			Name:        "error-handlers",
			Description: "inject global error and unhandledrejection listeners",
			Kind:        FixInject,
			Checks:      []string{"error-handlers"},
			Marker:      MarkerErrorHandlers,
			Anchor:      anchorBodyClose,
			Block: `<script>
` + MarkerErrorHandlers + `
window.addEventListener('error', function (event) {
  try {
    console.error('game error:', event.message);
  } catch (e) {}
});
window.addEventListener('unhandledrejection', function (event) {
  console.error('unhandled rejection:', event.reason);
});
</script>
`,
		},
		{
			Name:        "audio-fallback",
			Description: "add the webkit AudioContext fallback and swallow play() rejections",
			Kind:        FixRewrite,
			Checks:      []string{"audio-fallback"},
			Marker:      MarkerAudioFallback,
			Rewrites: []Rewrite{
				Replace(`new\s+AudioContext\(`, `new (window.AudioContext || window.webkitAudioContext)(`),
				Replace(`(\w+)\.play\(\);`, `${1}.play().catch(function () {});`),
			},
		},
		{
			Name:        "null-safety",
			Description: "use nullish coalescing for storage reads and optional chaining on element lookups",
			Kind:        FixRewrite,
			Checks:      []string{"null-safety"},
			Marker:      MarkerNullSafety,
			Rewrites: []Rewrite{
				Replace(`localStorage\.getItem\(([^()]*)\)\s*\|\|`, `localStorage.getItem(${1}) ??`),
				Replace(`document\.getElementById\(([^()]*)\)\.addEventListener\(`, `document.getElementById(${1})?.addEventListener(`),
				Replace(`document\.querySelector\(([^()]*)\)\.addEventListener\(`, `document.querySelector(${1})?.addEventListener(`),
			},
		},
	}
}
