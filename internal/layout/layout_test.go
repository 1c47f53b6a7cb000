package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStretchExact(t *testing.T) {
	r := Viewport(640, 480, 1920, 1080, ModeStretch)
	assert.Equal(t, Rect{0, 0, 1920, 1080}, r)
}

func TestContainLetterbox(t *testing.T) {
	/* 4:3 into 16:9: pillarboxed, full height */
	r := Viewport(640, 480, 1920, 1080, ModeContain)
	assert.Equal(t, int32(1080), r.H)
	assert.Equal(t, int32(1440), r.W)
	assert.Equal(t, int32(240), r.X)
	assert.Equal(t, int32(0), r.Y)

	/* aspect preserved within one rounding unit */
	diff := int64(r.W)*480 - int64(r.H)*640
	if diff < 0 {
		diff = -diff
	}
	assert.LessOrEqual(t, diff, int64(640))
}

func TestContainBounds(t *testing.T) {
	cases := []Key{
		{1920, 1080, 1920, 1080, ModeContain},
		{3840, 2160, 1280, 720, ModeContain},
		{720, 1280, 2560, 1440, ModeContain},
		{1, 1, 9999, 3, ModeContain},
	}
	for _, k := range cases {
		r := Viewport(k.SW, k.SH, k.DW, k.DH, k.Mode)
		assert.GreaterOrEqual(t, r.X, int32(0), "%+v", k)
		assert.GreaterOrEqual(t, r.Y, int32(0), "%+v", k)
		assert.LessOrEqual(t, r.X+r.W, int32(k.DW), "%+v", k)
		assert.LessOrEqual(t, r.Y+r.H, int32(k.DH), "%+v", k)
	}
}

func TestFillCovers(t *testing.T) {
	/* fill always covers the whole destination, cropping the overflow */
	cases := []Key{
		{640, 480, 1920, 1080, ModeFill},
		{1920, 1080, 1080, 1920, ModeCover},
		{300, 100, 1000, 1000, ModeFill},
	}
	for _, k := range cases {
		r := Viewport(k.SW, k.SH, k.DW, k.DH, k.Mode)
		assert.LessOrEqual(t, r.X, int32(0), "%+v", k)
		assert.LessOrEqual(t, r.Y, int32(0), "%+v", k)
		assert.GreaterOrEqual(t, r.X+r.W, int32(k.DW), "%+v", k)
		assert.GreaterOrEqual(t, r.Y+r.H, int32(k.DH), "%+v", k)
	}
}

func TestCoverAliasesFill(t *testing.T) {
	assert.Equal(t,
		Viewport(1280, 720, 2560, 1440, ModeFill),
		Viewport(1280, 720, 2560, 1440, ModeCover))
}

func TestCentre(t *testing.T) {
	/* smaller than destination: centered 1:1 */
	r := Viewport(800, 600, 1920, 1080, ModeCentre)
	assert.Equal(t, Rect{560, 240, 800, 600}, r)

	/* larger than destination: clamped to destination */
	r = Viewport(4000, 3000, 1920, 1080, ModeCentre)
	assert.Equal(t, Rect{0, 0, 1920, 1080}, r)
}

func TestIdempotent(t *testing.T) {
	k := Key{1917, 1079, 2561, 1439, ModeContain}
	first := Viewport(k.SW, k.SH, k.DW, k.DH, k.Mode)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Viewport(k.SW, k.SH, k.DW, k.DH, k.Mode))
	}
}

func TestCacheReuseAndInvalidate(t *testing.T) {
	var c Cache
	k := Key{1440, 1080, 2560, 1440, ModeFill}
	r1 := c.Get(k)
	r2 := c.Get(k)
	assert.Equal(t, r1, r2)

	k.Mode = ModeContain
	r3 := c.Get(k)
	assert.NotEqual(t, r1, r3)

	c.Invalidate()
	assert.Equal(t, r3, c.Get(k))
}
