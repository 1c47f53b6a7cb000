// Package wl is the Wayland client layer: connection, registry, outputs,
// layer surfaces and frame callbacks. It binds libwayland-client through
// cgo and carries condensed scanner output for the two extension protocols
// it needs (wlr-layer-shell, xdg-output).
package wl

/*
#cgo pkg-config: wayland-client wayland-egl

#include <stdlib.h>
#include <wayland-client.h>
#include <wayland-egl.h>
#include "protocols.h"
#include "shims.h"
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/rs/zerolog"

	"github.com/YangYuS8/wayvid/internal/errdefs"
)

/* C listener data must not be a Go pointer; callbacks carry opaque handles
 * resolved through this table. Dispatch is single-threaded but destruction
 * can race with late events, hence the lock. */
var (
	handleMu   sync.Mutex
	handles    = map[uintptr]any{}
	nextHandle uintptr = 1
)

func newHandle(v any) uintptr {
	handleMu.Lock()
	defer handleMu.Unlock()
	h := nextHandle
	nextHandle++
	handles[h] = v
	return h
}

func lookupHandle(h uintptr) any {
	handleMu.Lock()
	defer handleMu.Unlock()
	return handles[h]
}

func dropHandle(h uintptr) {
	handleMu.Lock()
	defer handleMu.Unlock()
	delete(handles, h)
}

// Display owns the compositor connection for the lifetime of the process.
// All methods must be called from the main thread.
type Display struct {
	d        *C.struct_wl_display
	registry *C.struct_wl_registry

	compositor *C.struct_wl_compositor
	layerShell *C.struct_zwlr_layer_shell_v1
	xdgMgr     *C.struct_zxdg_output_manager_v1

	handle  uintptr
	outputs map[uint32]*Output

	// OnOutputReady fires once per output, after both its pixel mode and
	// its connector name are known (or a synthetic name was assigned).
	OnOutputReady func(*Output)
	// OnOutputRemoved fires when the compositor withdraws an output.
	OnOutputRemoved func(*Output)

	log zerolog.Logger
}

// Connect opens the Wayland connection and binds the globals. Missing
// wl_compositor or zwlr_layer_shell_v1 is fatal; a missing xdg-output
// manager degrades to synthetic connector names.
func Connect(log zerolog.Logger) (*Display, error) {
	d := &Display{outputs: make(map[uint32]*Output), log: log}

	d.d = C.wl_display_connect(nil)
	if d.d == nil {
		return nil, errdefs.New(errdefs.Environment, "cannot connect to wayland display")
	}
	d.handle = newHandle(d)

	d.registry = C.wl_display_get_registry(d.d)
	C.wayvid_registry_add_listener(d.registry, C.uintptr_t(d.handle))

	/* first round-trip: learn the globals */
	if err := d.Roundtrip(); err != nil {
		d.Disconnect()
		return nil, err
	}
	if d.compositor == nil {
		d.Disconnect()
		return nil, errdefs.New(errdefs.Environment, "compositor does not advertise wl_compositor")
	}
	if d.layerShell == nil {
		d.Disconnect()
		return nil, errdefs.New(errdefs.Environment, "compositor does not advertise zwlr_layer_shell_v1")
	}
	if d.xdgMgr == nil {
		log.Warn().Msg("no zxdg_output_manager_v1, falling back to synthetic output names")
	}
	return d, nil
}

// SyncOutputs performs the second round-trip so every output's mode and
// connector name are in, then fires OnOutputReady for each. Call after
// setting the callbacks.
func (d *Display) SyncOutputs() error {
	if err := d.Roundtrip(); err != nil {
		return err
	}
	/* without xdg-output (or with a v1 manager that predates the name
	 * event) the name never comes; promote stragglers to synthetic names */
	for _, o := range d.outputs {
		if !o.readyFired && o.doneSeen && !o.nameSeen {
			o.Name = fmt.Sprintf("output-%d", o.RegistryName)
			o.nameSeen = true
		}
		o.maybeReady()
	}
	return nil
}

func (d *Display) onGlobal(name uint32, iface string, version uint32) {
	cs := C.CString(iface)
	defer C.free(unsafe.Pointer(cs))

	switch iface {
	case "wl_compositor":
		v := min(version, 4)
		d.compositor = (*C.struct_wl_compositor)(C.wayvid_registry_bind(d.registry, C.uint32_t(name), cs, C.uint32_t(v)))
	case "zwlr_layer_shell_v1":
		v := min(version, 4)
		d.layerShell = (*C.struct_zwlr_layer_shell_v1)(C.wayvid_registry_bind(d.registry, C.uint32_t(name), cs, C.uint32_t(v)))
	case "zxdg_output_manager_v1":
		v := min(version, 3)
		d.xdgMgr = (*C.struct_zxdg_output_manager_v1)(C.wayvid_registry_bind(d.registry, C.uint32_t(name), cs, C.uint32_t(v)))
		/* outputs that arrived before the manager still need names */
		for _, o := range d.outputs {
			o.requestXdg()
		}
	case "wl_output":
		v := min(version, 2)
		p := C.wayvid_registry_bind(d.registry, C.uint32_t(name), cs, C.uint32_t(v))
		if p == nil {
			d.log.Warn().Uint32("name", name).Msg("binding wl_output failed, skipping output")
			return
		}
		o := &Output{
			disp:         d,
			wlOutput:     (*C.struct_wl_output)(p),
			RegistryName: name,
			Scale:        1,
		}
		o.handle = newHandle(o)
		d.outputs[name] = o
		C.wayvid_output_add_listener(o.wlOutput, C.uintptr_t(o.handle))
		o.requestXdg()
	}
}

func (d *Display) onGlobalRemove(name uint32) {
	o, ok := d.outputs[name]
	if !ok {
		return
	}
	delete(d.outputs, name)
	if d.OnOutputRemoved != nil {
		d.OnOutputRemoved(o)
	}
	o.release()
}

// Outputs returns the currently known outputs.
func (d *Display) Outputs() []*Output {
	out := make([]*Output, 0, len(d.outputs))
	for _, o := range d.outputs {
		out = append(out, o)
	}
	return out
}

// Roundtrip blocks until the compositor has processed all outstanding
// requests and their events were dispatched.
func (d *Display) Roundtrip() error {
	if C.wl_display_roundtrip(d.d) < 0 {
		return errdefs.New(errdefs.Environment, "wayland round-trip failed: %v", d.Err())
	}
	return nil
}

// Fd returns the connection fd for the main-loop multiplexer.
func (d *Display) Fd() int {
	return int(C.wl_display_get_fd(d.d))
}

// PrepareRead begins the poll-integration sequence: it returns false while
// events are already queued, in which case DispatchPending must run first.
func (d *Display) PrepareRead() bool {
	return C.wl_display_prepare_read(d.d) == 0
}

// ReadEvents completes a PrepareRead once the fd polled readable.
func (d *Display) ReadEvents() error {
	if C.wl_display_read_events(d.d) < 0 {
		return errdefs.New(errdefs.Environment, "wayland read failed: %v", d.Err())
	}
	return nil
}

// CancelRead abandons a PrepareRead when the fd was not readable.
func (d *Display) CancelRead() {
	C.wl_display_cancel_read(d.d)
}

// DispatchPending runs queued event handlers without reading the fd.
func (d *Display) DispatchPending() error {
	if C.wl_display_dispatch_pending(d.d) < 0 {
		return errdefs.New(errdefs.Environment, "wayland dispatch failed: %v", d.Err())
	}
	return nil
}

// Flush writes buffered requests out to the compositor.
func (d *Display) Flush() {
	C.wl_display_flush(d.d)
}

// Err returns the connection's fatal protocol error, if any.
func (d *Display) Err() error {
	if code := C.wl_display_get_error(d.d); code != 0 {
		return fmt.Errorf("wayland connection error %d", int(code))
	}
	return nil
}

// Native returns the wl_display pointer for EGL platform binding.
func (d *Display) Native() uintptr {
	return uintptr(unsafe.Pointer(d.d))
}

// Disconnect tears the connection down.
func (d *Display) Disconnect() {
	for name, o := range d.outputs {
		delete(d.outputs, name)
		o.release()
	}
	if d.xdgMgr != nil {
		C.zxdg_output_manager_v1_destroy(d.xdgMgr)
		d.xdgMgr = nil
	}
	if d.layerShell != nil {
		C.zwlr_layer_shell_v1_destroy(d.layerShell)
		d.layerShell = nil
	}
	if d.registry != nil {
		C.wl_registry_destroy(d.registry)
		d.registry = nil
	}
	if d.d != nil {
		C.wl_display_disconnect(d.d)
		d.d = nil
	}
	dropHandle(d.handle)
}

//export wayvidRegistryGlobal
func wayvidRegistryGlobal(h C.uintptr_t, name C.uint32_t, iface *C.char, version C.uint32_t) {
	if d, ok := lookupHandle(uintptr(h)).(*Display); ok {
		d.onGlobal(uint32(name), C.GoString(iface), uint32(version))
	}
}

//export wayvidRegistryGlobalRemove
func wayvidRegistryGlobalRemove(h C.uintptr_t, name C.uint32_t) {
	if d, ok := lookupHandle(uintptr(h)).(*Display); ok {
		d.onGlobalRemove(uint32(name))
	}
}

//export wayvidOutputGeometry
func wayvidOutputGeometry(h C.uintptr_t, x, y, transform C.int32_t) {
	if o, ok := lookupHandle(uintptr(h)).(*Output); ok {
		o.X, o.Y = int32(x), int32(y)
		o.Transform = int32(transform)
	}
}

//export wayvidOutputMode
func wayvidOutputMode(h C.uintptr_t, flags C.uint32_t, width, height C.int32_t) {
	const modeCurrent = 0x1
	if o, ok := lookupHandle(uintptr(h)).(*Output); ok && flags&modeCurrent != 0 {
		o.Width, o.Height = int32(width), int32(height)
	}
}

//export wayvidOutputScale
func wayvidOutputScale(h C.uintptr_t, factor C.int32_t) {
	if o, ok := lookupHandle(uintptr(h)).(*Output); ok {
		o.Scale = int32(factor)
	}
}

//export wayvidOutputDone
func wayvidOutputDone(h C.uintptr_t) {
	if o, ok := lookupHandle(uintptr(h)).(*Output); ok {
		o.doneSeen = true
		o.maybeReady()
	}
}

//export wayvidXdgOutputName
func wayvidXdgOutputName(h C.uintptr_t, name *C.char) {
	if o, ok := lookupHandle(uintptr(h)).(*Output); ok && !o.readyFired {
		o.Name = C.GoString(name)
		o.nameSeen = true
	}
}

//export wayvidXdgOutputDone
func wayvidXdgOutputDone(h C.uintptr_t) {
	if o, ok := lookupHandle(uintptr(h)).(*Output); ok {
		o.maybeReady()
	}
}

//export wayvidLayerSurfaceConfigure
func wayvidLayerSurfaceConfigure(h C.uintptr_t, serial, width, height C.uint32_t) {
	if s, ok := lookupHandle(uintptr(h)).(*Surface); ok && s.OnConfigure != nil {
		s.OnConfigure(uint32(width), uint32(height))
	}
}

//export wayvidLayerSurfaceClosed
func wayvidLayerSurfaceClosed(h C.uintptr_t) {
	if s, ok := lookupHandle(uintptr(h)).(*Surface); ok && s.OnClosed != nil {
		s.OnClosed()
	}
}

//export wayvidFrameDone
func wayvidFrameDone(h C.uintptr_t, _ C.uint32_t) {
	if s, ok := lookupHandle(uintptr(h)).(*Surface); ok {
		s.frameInFlight = false
		if s.OnFrame != nil {
			s.OnFrame()
		}
	}
}
