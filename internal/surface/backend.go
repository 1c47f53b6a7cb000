package surface

import (
	"github.com/YangYuS8/wayvid/internal/config"
	"github.com/YangYuS8/wayvid/internal/egl"
	"github.com/YangYuS8/wayvid/internal/errdefs"
	"github.com/YangYuS8/wayvid/internal/gl"
	"github.com/YangYuS8/wayvid/internal/layout"
	"github.com/YangYuS8/wayvid/internal/wl"
)

// wlBackend is the production Backend: a layer surface with a wl_egl_window,
// a per-surface EGL context and the core's own GL entry points.
type wlBackend struct {
	wls   *wl.Surface
	egld  *egl.Display
	ctx   *egl.Context
	funcs *gl.Funcs
}

// NewWaylandBackend wraps a layer surface and the process EGL display into
// a Backend. GL resources are created lazily through CreateGL.
func NewWaylandBackend(wls *wl.Surface, egld *egl.Display) Backend {
	return &wlBackend{wls: wls, egld: egld}
}

func (b *wlBackend) CreateGL(width, height uint32) error {
	native, err := b.wls.EGLWindow(width, height)
	if err != nil {
		return err
	}
	ctx, err := b.egld.NewContext(native)
	if err != nil {
		return err
	}
	funcs, err := gl.Load(b.egld.GetProcAddress)
	if err != nil {
		ctx.Destroy()
		return err
	}
	b.ctx = ctx
	b.funcs = funcs
	return nil
}

func (b *wlBackend) ResizeGL(width, height uint32) {
	b.wls.ResizeEGL(width, height)
}

func (b *wlBackend) MakeCurrent() error {
	if b.ctx == nil {
		return errdefs.New(errdefs.Gl, "no GL context")
	}
	return b.ctx.MakeCurrent()
}

func (b *wlBackend) GetProcAddress(name string) uintptr {
	return b.egld.GetProcAddress(name)
}

func (b *wlBackend) Viewport(r layout.Rect) {
	b.funcs.Viewport(r.X, r.Y, r.W, r.H)
}

func (b *wlBackend) Clear(c config.Color) {
	b.funcs.Clear(c[0], c[1], c[2], c[3])
}

func (b *wlBackend) SwapBuffers() error {
	if b.ctx == nil {
		return errdefs.New(errdefs.Gl, "no GL context")
	}
	return b.ctx.SwapBuffers()
}

func (b *wlBackend) RequestFrame() {
	b.wls.RequestFrame()
}

func (b *wlBackend) Commit() {
	b.wls.Commit()
}

func (b *wlBackend) Destroy() {
	if b.ctx != nil {
		b.ctx.Destroy()
		b.ctx = nil
	}
	b.wls.Destroy()
}
