// Package timing decides, per scheduled frame, whether to render or skip.
// The estimate is a moving window of measured render durations compared to
// the target frame duration, with hysteresis so a transient spike does not
// make the output flicker between full and half rate.
package timing

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	windowSize     = 60
	warmupSamples  = 5
	enterThreshold = 0.80
	exitThreshold  = 0.60
	confirmFrames  = 3
)

// Stats is a snapshot of the governor's counters for status reports.
type Stats struct {
	Rendered   uint64  `json:"frames_rendered"`
	Skipped    uint64  `json:"frames_skipped"`
	Load       float64 `json:"load"`
	SkipMode   bool    `json:"skip_mode"`
	MeanRender float64 `json:"mean_render_ms"`
}

// Governor tracks render load for one surface. Not safe for concurrent use;
// each surface owns one and drives it from the main loop.
type Governor struct {
	target time.Duration

	window [windowSize]time.Duration
	count  int
	next   int
	sum    time.Duration

	rendered uint64
	skipped  uint64

	skipMode  bool
	confirm   int
	alternate bool

	log zerolog.Logger
}

// New returns a governor targeting maxFPS frames per second. maxFPS 0 means
// compositor-driven pacing, which is treated as 60 Hz for load estimation.
func New(maxFPS int, log zerolog.Logger) *Governor {
	g := &Governor{log: log}
	g.SetMaxFPS(maxFPS)
	return g
}

// SetMaxFPS retargets the governor, keeping the measurement window.
func (g *Governor) SetMaxFPS(maxFPS int) {
	if maxFPS < 1 {
		maxFPS = 60
	}
	g.target = time.Second / time.Duration(maxFPS)
}

// Target returns the current target frame duration.
func (g *Governor) Target() time.Duration {
	return g.target
}

// RecordRender feeds one measured render duration into the window and
// updates the skip-mode state machine. A threshold crossing must hold for
// confirmFrames consecutive measurements before the mode flips, and each
// flip logs exactly once.
func (g *Governor) RecordRender(d time.Duration) {
	if g.count == windowSize {
		g.sum -= g.window[g.next]
	} else {
		g.count++
	}
	g.window[g.next] = d
	g.sum += d
	g.next = (g.next + 1) % windowSize

	load := g.Load()
	switch {
	case !g.skipMode && load >= enterThreshold:
		g.confirm++
		if g.confirm >= confirmFrames {
			g.skipMode = true
			g.confirm = 0
			g.alternate = false
			g.log.Info().Float64("load", load).Msg("entering skip mode")
		}
	case g.skipMode && load <= exitThreshold:
		g.confirm++
		if g.confirm >= confirmFrames {
			g.skipMode = false
			g.confirm = 0
			g.log.Info().Float64("load", load).Msg("exiting skip mode")
		}
	default:
		g.confirm = 0
	}
}

// Load returns mean(window)/target, or 0 while the window is still warming
// up (never skip on a cold start).
func (g *Governor) Load() float64 {
	if g.count < warmupSamples {
		return 0
	}
	mean := float64(g.sum) / float64(g.count)
	return mean / float64(g.target)
}

// ShouldSkip is consulted once per scheduled frame. In skip mode it
// alternates render/skip so measurements keep flowing and motion stays
// visible; outside skip mode it always renders. The relevant counter is
// bumped either way, so rendered+skipped equals frames scheduled.
func (g *Governor) ShouldSkip() bool {
	if !g.skipMode {
		g.rendered++
		return false
	}
	g.alternate = !g.alternate
	if g.alternate {
		g.skipped++
		return true
	}
	g.rendered++
	return false
}

// SkipMode reports whether the governor is currently halving the rate.
func (g *Governor) SkipMode() bool {
	return g.skipMode
}

// Snapshot returns the current counters.
func (g *Governor) Snapshot() Stats {
	s := Stats{
		Rendered: g.rendered,
		Skipped:  g.skipped,
		Load:     g.Load(),
		SkipMode: g.skipMode,
	}
	if g.count > 0 {
		s.MeanRender = float64(g.sum) / float64(g.count) / float64(time.Millisecond)
	}
	return s
}

// LogReport emits the periodic aggregate line (§ every ~10s, and once at
// shutdown).
func (g *Governor) LogReport() {
	s := g.Snapshot()
	total := s.Rendered + s.Skipped
	rate := 0.0
	if total > 0 {
		rate = float64(s.Skipped) / float64(total)
	}
	g.log.Info().
		Uint64("rendered", s.Rendered).
		Uint64("skipped", s.Skipped).
		Float64("skip_rate", rate).
		Float64("load", s.Load).
		Float64("mean_render_ms", s.MeanRender).
		Msg("frame stats")
}
