// Package decode owns the process-wide decoder registry. Decoders are
// deduplicated by source key and reference-counted: any number of surfaces
// may hold a handle onto one decoder, and the decoder is destroyed exactly
// when the last handle is released.
package decode

import "github.com/YangYuS8/wayvid/internal/source"

// Decoder is the media collaborator the registry manages. One concrete
// implementation wraps libmpv (internal/mpvdec); tests inject fakes.
//
// Render-path methods are called under the owning entry's mutex; the
// registry never calls a decoder concurrently with itself.
type Decoder interface {
	// LoadSource starts playback of src.
	LoadSource(src source.Source) error
	// InitRenderGL wires the decoder's GL rendering path. getProcAddress
	// resolves GL entry points in the caller's current context.
	InitRenderGL(getProcAddress func(name string) uintptr) error
	// RenderToFBO draws the current frame into fbo at width×height.
	RenderToFBO(fbo int, width, height int) error
	// Dimensions returns the source video size, or ok=false while unknown.
	Dimensions() (w, h uint32, ok bool)

	SetPaused(paused bool) error
	Seek(seconds float64) error
	SetVolume(volume float64) error
	SetMuted(muted bool) error
	SetRate(rate float64) error

	// GetPropertyString exposes decoder-native string properties for
	// status reporting.
	GetPropertyString(name string) (string, bool)
	// GetPropertyFloat exposes decoder-native numeric properties.
	GetPropertyFloat(name string) (float64, bool)

	// Close releases the decoder's OS resources. Called exactly once.
	Close() error
}

// OutputInfo is the slice of output state a decoder may care about when it
// is constructed (HDR capability, pixel size for scaling decisions).
type OutputInfo struct {
	Name   string
	Width  uint32
	Height uint32
	Scale  int32

	// SDR defaults; replaced when the compositor ever grows HDR discovery.
	HDRCapable bool
	MaxNits    float64
}

// DefaultOutputInfo returns the SDR capability block assumed for every
// output.
func DefaultOutputInfo(name string, w, h uint32, scale int32) OutputInfo {
	return OutputInfo{Name: name, Width: w, Height: h, Scale: scale, MaxNits: 203}
}
