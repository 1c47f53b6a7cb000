// Package gl carries the handful of GL entry points the core itself calls:
// viewport and clear. Everything else happens inside the decoder's render
// path. The functions are resolved through the same get-proc-address loader
// the decoder receives and invoked via purego, so no GL headers are linked.
package gl

import (
	"github.com/ebitengine/purego"

	"github.com/YangYuS8/wayvid/internal/errdefs"
)

const colorBufferBit = 0x00004000

// Funcs is the resolved entry-point set for one GL context family.
type Funcs struct {
	viewport   func(x, y, width, height int32)
	clearColor func(r, g, b, a float32)
	clear      func(mask uint32)
}

// Load resolves the entry points through getProcAddress. The owning context
// must be current on the calling thread.
func Load(getProcAddress func(name string) uintptr) (*Funcs, error) {
	f := &Funcs{}
	for _, sym := range []struct {
		name string
		fp   any
	}{
		{"glViewport", &f.viewport},
		{"glClearColor", &f.clearColor},
		{"glClear", &f.clear},
	} {
		addr := getProcAddress(sym.name)
		if addr == 0 {
			return nil, errdefs.New(errdefs.Gl, "cannot resolve %s", sym.name)
		}
		purego.RegisterFunc(sym.fp, addr)
	}
	return f, nil
}

// Viewport sets the GL viewport. For fill layouts the rectangle
// intentionally extends past the framebuffer; the driver clips.
func (f *Funcs) Viewport(x, y, width, height int32) {
	f.viewport(x, y, width, height)
}

// Clear paints the whole framebuffer with the background color.
func (f *Funcs) Clear(r, g, b, a float32) {
	f.clearColor(r, g, b, a)
	f.clear(colorBufferBit)
}
