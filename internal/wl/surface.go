package wl

/*
#include <wayland-client.h>
#include <wayland-egl.h>
#include "protocols.h"
#include "shims.h"
*/
import "C"

import (
	"unsafe"

	"github.com/YangYuS8/wayvid/internal/errdefs"
)

// Surface is the Wayland half of one per-output background surface: the
// wl_surface, its layer-surface role, the EGL-backed native window and the
// frame-callback registration.
type Surface struct {
	disp   *Display
	surf   *C.struct_wl_surface
	layer  *C.struct_zwlr_layer_surface_v1
	eglWin *C.struct_wl_egl_window
	handle uintptr

	// OnConfigure delivers compositor-assigned dimensions. The ack has
	// already been sent when it runs.
	OnConfigure func(width, height uint32)
	OnClosed    func()
	OnFrame     func()

	frameInFlight bool
}

// CreateLayerSurface promotes a fresh wl_surface to a background layer
// surface on the given output: anchored to all edges, exclusive zone 0, no
// keyboard interactivity and an empty input region so all input passes
// through. The initial commit that triggers the first configure is sent
// here; the caller round-trips or dispatches to receive it.
func (d *Display) CreateLayerSurface(o *Output, namespace string) (*Surface, error) {
	s := &Surface{disp: d}

	s.surf = C.wl_compositor_create_surface(d.compositor)
	if s.surf == nil {
		return nil, errdefs.New(errdefs.Environment, "wl_compositor.create_surface failed")
	}

	/* empty input region: full click-through */
	region := C.wl_compositor_create_region(d.compositor)
	C.wl_surface_set_input_region(s.surf, region)
	C.wl_region_destroy(region)

	ns := C.CString(namespace)
	defer C.free(unsafe.Pointer(ns))
	s.layer = C.zwlr_layer_shell_v1_get_layer_surface(
		d.layerShell, s.surf, o.wlOutput,
		C.ZWLR_LAYER_SHELL_V1_LAYER_BACKGROUND, ns)
	if s.layer == nil {
		C.wl_surface_destroy(s.surf)
		return nil, errdefs.New(errdefs.Environment, "get_layer_surface failed for %s", o.Name)
	}

	s.handle = newHandle(s)
	C.wayvid_layer_surface_add_listener(s.layer, C.uintptr_t(s.handle))

	C.zwlr_layer_surface_v1_set_size(s.layer, 0, 0)
	C.zwlr_layer_surface_v1_set_anchor(s.layer,
		C.ZWLR_LAYER_SURFACE_V1_ANCHOR_TOP|
			C.ZWLR_LAYER_SURFACE_V1_ANCHOR_BOTTOM|
			C.ZWLR_LAYER_SURFACE_V1_ANCHOR_LEFT|
			C.ZWLR_LAYER_SURFACE_V1_ANCHOR_RIGHT)
	C.zwlr_layer_surface_v1_set_exclusive_zone(s.layer, 0)
	C.zwlr_layer_surface_v1_set_keyboard_interactivity(s.layer, 0)
	C.wl_surface_commit(s.surf)

	return s, nil
}

// EGLWindow returns the native window for EGL surface creation, creating
// it at the given pixel size on first use.
func (s *Surface) EGLWindow(width, height uint32) (uintptr, error) {
	if s.eglWin == nil {
		s.eglWin = C.wl_egl_window_create(s.surf, C.int(width), C.int(height))
		if s.eglWin == nil {
			return 0, errdefs.New(errdefs.Gl, "wl_egl_window_create %dx%d failed", width, height)
		}
	}
	return uintptr(unsafe.Pointer(s.eglWin)), nil
}

// ResizeEGL resizes the native window ahead of the next render.
func (s *Surface) ResizeEGL(width, height uint32) {
	if s.eglWin != nil {
		C.wl_egl_window_resize(s.eglWin, C.int(width), C.int(height), 0, 0)
	}
}

// RequestFrame registers a frame callback if none is in flight. The
// callback is latched by the following commit (or buffer swap).
func (s *Surface) RequestFrame() {
	if s.frameInFlight {
		return
	}
	s.frameInFlight = true
	C.wayvid_surface_frame(s.surf, C.uintptr_t(s.handle))
}

// Commit commits pending surface state without attaching a buffer.
func (s *Surface) Commit() {
	C.wl_surface_commit(s.surf)
}

// Destroy releases the layer role, the native window and the wl_surface.
func (s *Surface) Destroy() {
	s.OnConfigure = nil
	s.OnClosed = nil
	s.OnFrame = nil
	if s.eglWin != nil {
		C.wl_egl_window_destroy(s.eglWin)
		s.eglWin = nil
	}
	if s.layer != nil {
		C.zwlr_layer_surface_v1_destroy(s.layer)
		s.layer = nil
	}
	if s.surf != nil {
		C.wl_surface_destroy(s.surf)
		s.surf = nil
	}
	dropHandle(s.handle)
}
