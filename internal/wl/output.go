package wl

/*
#include <wayland-client.h>
#include "protocols.h"
#include "shims.h"
*/
import "C"

import "fmt"

// Output tracks one wl_output: its registry identity, pixel mode, scale,
// geometry origin, transform and connector name. Once a surface has been
// created for an output the name is frozen for the surface's lifetime.
type Output struct {
	disp     *Display
	wlOutput *C.struct_wl_output
	xdg      *C.struct_zxdg_output_v1
	handle   uintptr

	RegistryName uint32
	Name         string
	X, Y         int32
	Width        int32
	Height       int32
	Scale        int32
	Transform    int32

	doneSeen   bool
	nameSeen   bool
	readyFired bool
}

// requestXdg asks for the xdg_output companion object once the manager is
// bound. Safe to call repeatedly.
func (o *Output) requestXdg() {
	if o.xdg != nil || o.disp.xdgMgr == nil {
		return
	}
	o.xdg = C.zxdg_output_manager_v1_get_xdg_output(o.disp.xdgMgr, o.wlOutput)
	C.wayvid_xdg_output_add_listener(o.xdg, C.uintptr_t(o.handle))
}

// maybeReady fires OnOutputReady exactly once, after the pixel mode is in
// and the connector name arrived. Without an xdg-output manager the name
// falls back to a stable synthetic identifier.
func (o *Output) maybeReady() {
	if o.readyFired || !o.doneSeen {
		return
	}
	if !o.nameSeen {
		if o.disp.xdgMgr != nil {
			return /* name event still on the wire */
		}
		o.Name = fmt.Sprintf("output-%d", o.RegistryName)
	}
	o.readyFired = true
	o.disp.log.Debug().
		Str("output", o.Name).
		Int32("width", o.Width).
		Int32("height", o.Height).
		Int32("scale", o.Scale).
		Msg("output ready")
	if o.disp.OnOutputReady != nil {
		o.disp.OnOutputReady(o)
	}
}

func (o *Output) release() {
	if o.xdg != nil {
		C.zxdg_output_v1_destroy(o.xdg)
		o.xdg = nil
	}
	if o.wlOutput != nil {
		C.wl_output_destroy(o.wlOutput)
		o.wlOutput = nil
	}
	dropHandle(o.handle)
}
