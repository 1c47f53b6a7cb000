package timing

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestGovernor(maxFPS int) *Governor {
	return New(maxFPS, zerolog.Nop())
}

func warm(g *Governor, d time.Duration, n int) {
	for i := 0; i < n; i++ {
		g.RecordRender(d)
	}
}

func TestNeverSkipsDuringWarmup(t *testing.T) {
	g := newTestGovernor(60)
	/* heavy frames, but fewer than the warmup sample count */
	for i := 0; i < warmupSamples-1; i++ {
		assert.False(t, g.ShouldSkip())
		g.RecordRender(50 * time.Millisecond)
	}
	assert.Equal(t, 0.0, g.Load())
	assert.False(t, g.SkipMode())
}

func TestEntersSkipAfterConfirmation(t *testing.T) {
	g := newTestGovernor(60) /* target 16.67ms */

	/* warm the window just below the enter threshold */
	warm(g, 12*time.Millisecond, windowSize)
	assert.False(t, g.SkipMode())

	/* ~20ms frames push the mean over 0.80×target */
	n := 0
	for !g.SkipMode() {
		g.RecordRender(20 * time.Millisecond)
		n++
		if n > windowSize {
			t.Fatal("governor never entered skip mode")
		}
	}
	/* the mode flips on the confirmFrames-th consecutive measurement over
	 * the threshold, the crossing one included */
	assert.GreaterOrEqual(t, n, confirmFrames)
}

func TestSkipModeAlternates(t *testing.T) {
	g := newTestGovernor(60)
	warm(g, 30*time.Millisecond, windowSize)
	assert.True(t, g.SkipMode())

	skips := 0
	const frames = 20
	for i := 0; i < frames; i++ {
		if g.ShouldSkip() {
			skips++
		}
	}
	assert.Equal(t, frames/2, skips)

	s := g.Snapshot()
	assert.Equal(t, uint64(frames), s.Rendered+s.Skipped)
}

func TestExitsSkipWithHysteresis(t *testing.T) {
	g := newTestGovernor(60)
	warm(g, 30*time.Millisecond, windowSize)
	assert.True(t, g.SkipMode())

	/* fast frames drain the window back under the exit threshold */
	n := 0
	for g.SkipMode() {
		g.RecordRender(2 * time.Millisecond)
		n++
		if n > 2*windowSize {
			t.Fatal("governor never exited skip mode")
		}
	}
	assert.GreaterOrEqual(t, n, confirmFrames)
	assert.False(t, g.ShouldSkip())
}

func TestMidBandDoesNotOscillate(t *testing.T) {
	/* between exit (0.60) and enter (0.80) nothing flips */
	g := newTestGovernor(60)
	warm(g, 12*time.Millisecond, 2*windowSize) /* load ≈ 0.72 */
	assert.False(t, g.SkipMode())

	g2 := newTestGovernor(60)
	warm(g2, 30*time.Millisecond, windowSize)
	assert.True(t, g2.SkipMode())
	warm(g2, 12*time.Millisecond, 2*windowSize)
	assert.True(t, g2.SkipMode(), "load in the dead band must not exit skip mode")
}

func TestSetMaxFPS(t *testing.T) {
	g := newTestGovernor(0)
	assert.Equal(t, time.Second/60, g.Target(), "0 means compositor-driven, estimated at 60Hz")

	g.SetMaxFPS(30)
	assert.Equal(t, time.Second/30, g.Target())

	/* 16ms frames: overloaded at 60fps, fine at 30fps */
	warm(g, 16*time.Millisecond, windowSize)
	assert.False(t, g.SkipMode())
}

func TestCountersConserved(t *testing.T) {
	g := newTestGovernor(60)
	scheduled := 0
	for i := 0; i < 500; i++ {
		scheduled++
		if !g.ShouldSkip() {
			d := 10 * time.Millisecond
			if i > 100 && i < 300 {
				d = 25 * time.Millisecond
			}
			g.RecordRender(d)
		}
	}
	s := g.Snapshot()
	assert.Equal(t, uint64(scheduled), s.Rendered+s.Skipped)
}
