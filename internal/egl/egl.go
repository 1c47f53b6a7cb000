// Package egl binds EGL for the per-surface GL contexts. One Display wraps
// the process-wide EGL display on top of the Wayland connection; each
// output surface gets its own context and window surface.
package egl

/*
#cgo pkg-config: egl
#cgo CFLAGS: -DEGL_NO_X11

#include <stdlib.h>
#include <EGL/egl.h>
*/
import "C"

import (
	"unsafe"

	"github.com/YangYuS8/wayvid/internal/errdefs"
)

// Display is the process-wide EGL display plus the chosen framebuffer
// configuration.
type Display struct {
	dpy    C.EGLDisplay
	config C.EGLConfig
}

// NewDisplay initializes EGL on the native Wayland display and picks an
// RGBA8888 window config renderable with GLES2.
func NewDisplay(nativeDisplay uintptr) (*Display, error) {
	/* EGL_NO_DISPLAY and friends are null pointers under EGL_NO_X11 */
	dpy := C.eglGetDisplay(C.EGLNativeDisplayType(unsafe.Pointer(nativeDisplay)))
	if dpy == 0 {
		return nil, errdefs.New(errdefs.Gl, "eglGetDisplay failed")
	}
	var major, minor C.EGLint
	if C.eglInitialize(dpy, &major, &minor) != C.EGL_TRUE {
		return nil, errdefs.New(errdefs.Gl, "eglInitialize failed: 0x%x", int(C.eglGetError()))
	}
	if C.eglBindAPI(C.EGL_OPENGL_ES_API) != C.EGL_TRUE {
		return nil, errdefs.New(errdefs.Gl, "eglBindAPI failed: 0x%x", int(C.eglGetError()))
	}

	attribs := []C.EGLint{
		C.EGL_SURFACE_TYPE, C.EGL_WINDOW_BIT,
		C.EGL_RENDERABLE_TYPE, C.EGL_OPENGL_ES2_BIT,
		C.EGL_RED_SIZE, 8,
		C.EGL_GREEN_SIZE, 8,
		C.EGL_BLUE_SIZE, 8,
		C.EGL_ALPHA_SIZE, 8,
		C.EGL_NONE,
	}
	var config C.EGLConfig
	var n C.EGLint
	if C.eglChooseConfig(dpy, &attribs[0], &config, 1, &n) != C.EGL_TRUE || n == 0 {
		return nil, errdefs.New(errdefs.Gl, "no usable EGL config")
	}
	return &Display{dpy: dpy, config: config}, nil
}

// GetProcAddress resolves a GL entry point. It is the function-pointer
// loader handed both to the decoder's render context and to the small GL
// surface the core uses itself.
func (d *Display) GetProcAddress(name string) uintptr {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	return uintptr(unsafe.Pointer(C.eglGetProcAddress(cs)))
}

// Terminate releases the EGL display.
func (d *Display) Terminate() {
	C.eglTerminate(d.dpy)
}

// Context is one surface's GL context and window surface. Contexts are
// strictly per-surface; MakeCurrent runs at the start of each render.
type Context struct {
	dpy  *Display
	ctx  C.EGLContext
	surf C.EGLSurface
}

// NewContext creates a GLES2 context and a window surface on the given
// native (wl_egl_window) handle, and leaves the context current. Swaps are
// non-blocking: the frame callback is the only pacing source.
func (d *Display) NewContext(nativeWindow uintptr) (*Context, error) {
	ctxAttribs := []C.EGLint{
		C.EGL_CONTEXT_CLIENT_VERSION, 2,
		C.EGL_NONE,
	}
	ctx := C.eglCreateContext(d.dpy, d.config, nil, &ctxAttribs[0])
	if ctx == nil {
		return nil, errdefs.New(errdefs.Gl, "eglCreateContext failed: 0x%x", int(C.eglGetError()))
	}
	surf := C.eglCreateWindowSurface(d.dpy, d.config,
		C.EGLNativeWindowType(nativeWindow), nil)
	if surf == nil {
		C.eglDestroyContext(d.dpy, ctx)
		return nil, errdefs.New(errdefs.Gl, "eglCreateWindowSurface failed: 0x%x", int(C.eglGetError()))
	}

	c := &Context{dpy: d, ctx: ctx, surf: surf}
	if err := c.MakeCurrent(); err != nil {
		c.Destroy()
		return nil, err
	}
	C.eglSwapInterval(d.dpy, 0)
	return c, nil
}

// MakeCurrent binds the context to the calling thread.
func (c *Context) MakeCurrent() error {
	if C.eglMakeCurrent(c.dpy.dpy, c.surf, c.surf, c.ctx) != C.EGL_TRUE {
		return errdefs.New(errdefs.Gl, "eglMakeCurrent failed: 0x%x", int(C.eglGetError()))
	}
	return nil
}

// SwapBuffers presents the frame. On Wayland this also commits the surface.
func (c *Context) SwapBuffers() error {
	if C.eglSwapBuffers(c.dpy.dpy, c.surf) != C.EGL_TRUE {
		return errdefs.New(errdefs.Gl, "eglSwapBuffers failed: 0x%x", int(C.eglGetError()))
	}
	return nil
}

// Destroy releases the context and window surface.
func (c *Context) Destroy() {
	C.eglMakeCurrent(c.dpy.dpy, nil, nil, nil)
	if c.surf != nil {
		C.eglDestroySurface(c.dpy.dpy, c.surf)
		c.surf = nil
	}
	if c.ctx != nil {
		C.eglDestroyContext(c.dpy.dpy, c.ctx)
		c.ctx = nil
	}
}
