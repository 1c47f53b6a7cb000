// Package layout computes the destination viewport for one decoded frame
// inside one output-sized framebuffer.
package layout

import "math"

// Mode selects how a source rectangle is mapped onto the destination.
type Mode string

const (
	ModeFill    Mode = "fill"    /* cover with center crop */
	ModeContain Mode = "contain" /* fit with letterbox */
	ModeStretch Mode = "stretch" /* non-uniform scale */
	ModeCover   Mode = "cover"   /* alias of fill */
	ModeCentre  Mode = "centre"  /* 1:1 centered, no scale */
)

// Valid reports whether m is a known layout mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeFill, ModeContain, ModeStretch, ModeCover, ModeCentre:
		return true
	}
	return false
}

// Rect is a viewport in destination pixel coordinates. For Fill/Cover the
// rectangle may extend past the framebuffer on purpose; the GL viewport is
// set beyond the framebuffer and the driver clips.
type Rect struct {
	X, Y int32
	W, H int32
}

// Key identifies one cached viewport computation. Any component changing
// (source switch, configure resize, mode change) invalidates the cache.
type Key struct {
	SW, SH uint32
	DW, DH uint32
	Mode   Mode
}

// Viewport maps a sw×sh source into a dw×dh destination under mode. All
// dimensions must be positive; a zero dimension yields the full destination.
func Viewport(sw, sh, dw, dh uint32, mode Mode) Rect {
	if sw == 0 || sh == 0 || dw == 0 || dh == 0 {
		return Rect{W: int32(dw), H: int32(dh)}
	}
	swf, shf := float64(sw), float64(sh)
	dwf, dhf := float64(dw), float64(dh)

	switch mode {
	case ModeContain:
		scale := math.Min(dwf/swf, dhf/shf)
		w := int32(math.Round(swf * scale))
		h := int32(math.Round(shf * scale))
		return Rect{X: (int32(dw) - w) / 2, Y: (int32(dh) - h) / 2, W: w, H: h}
	case ModeStretch:
		return Rect{W: int32(dw), H: int32(dh)}
	case ModeCentre:
		w := int32(min(sw, dw))
		h := int32(min(sh, dh))
		return Rect{X: (int32(dw) - w) / 2, Y: (int32(dh) - h) / 2, W: w, H: h}
	default: /* fill, cover */
		scale := math.Max(dwf/swf, dhf/shf)
		w := int32(math.Round(swf * scale))
		h := int32(math.Round(shf * scale))
		return Rect{X: (int32(dw) - w) / 2, Y: (int32(dh) - h) / 2, W: w, H: h}
	}
}

// Cache memoizes the last viewport. Surfaces hold one; a changed key
// recomputes, an equal key reuses.
type Cache struct {
	key   Key
	rect  Rect
	valid bool
}

// Get returns the viewport for k, computing it only when k differs from the
// cached key.
func (c *Cache) Get(k Key) Rect {
	if c.valid && c.key == k {
		return c.rect
	}
	c.key = k
	c.rect = Viewport(k.SW, k.SH, k.DW, k.DH, k.Mode)
	c.valid = true
	return c.rect
}

// Invalidate drops the cached entry.
func (c *Cache) Invalidate() {
	c.valid = false
}
