// Package mpvdec is the libmpv-backed decoder. It maps every source kind
// onto an mpv URI (plain paths, network streams, fd://0 for inherited
// stdin, mf:// for image sequences) and renders through mpv's OpenGL
// render API into caller-provided framebuffers.
package mpvdec

import (
	"fmt"
	"strconv"

	mpv "github.com/gen2brain/go-mpv"

	"github.com/YangYuS8/wayvid/internal/config"
	"github.com/YangYuS8/wayvid/internal/decode"
	"github.com/YangYuS8/wayvid/internal/source"
)

// Decoder wraps one mpv instance plus its render context. Call sites
// serialize through the registry's per-entry mutex; no locking here.
type Decoder struct {
	m  *mpv.Mpv
	rc *mpv.RenderContext
}

var _ decode.Decoder = (*Decoder)(nil)

// New constructs a decoder for the effective configuration: creates the mpv
// instance, applies decode parameters and HDR options, and starts loading
// the source. Used as the registry's factory.
func New(cfg config.Effective, _ decode.OutputInfo) (decode.Decoder, error) {
	m := mpv.New()

	opts := map[string]string{
		"vo":                "libmpv",
		"terminal":          "no",
		"msg-level":         "all=warn",
		"audio":             "auto",
		"video-sync":        "audio",
		"keep-open":         "yes",
		"input-vo-keyboard": "no",
	}
	if cfg.Params.Loop {
		opts["loop-file"] = "inf"
	} else {
		opts["loop-file"] = "no"
	}
	switch cfg.Params.HWDecode {
	case source.HWOn:
		opts["hwdec"] = "auto"
	case source.HWOff:
		opts["hwdec"] = "no"
	default:
		opts["hwdec"] = "auto-safe"
	}
	if cfg.Params.Mute {
		opts["mute"] = "yes"
	}
	opts["volume"] = strconv.Itoa(int(cfg.Volume * 100))
	opts["speed"] = fmt.Sprintf("%g", cfg.Params.Rate)
	if cfg.Params.StartOffset > 0 {
		opts["start"] = fmt.Sprintf("%g", cfg.Params.StartOffset)
	}
	if cfg.Source.Type == source.TypeSequence && cfg.Source.FPS > 0 {
		opts["mf-fps"] = fmt.Sprintf("%g", cfg.Source.FPS)
	}
	applyHDR(opts, cfg.HDR)

	for k, v := range opts {
		if err := m.SetOptionString(k, v); err != nil {
			m.TerminateDestroy()
			return nil, fmt.Errorf("mpv option %s=%s: %w", k, v, err)
		}
	}
	if err := m.Initialize(); err != nil {
		m.TerminateDestroy()
		return nil, fmt.Errorf("mpv initialize: %w", err)
	}

	d := &Decoder{m: m}
	if err := d.LoadSource(cfg.Source); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func applyHDR(opts map[string]string, hdr config.HDR) {
	opts["tone-mapping"] = string(hdr.ToneMap)
	opts["tone-mapping-param"] = fmt.Sprintf("%g", hdr.Param)
	opts["gamut-mapping-mode"] = string(hdr.Mapping)
	if hdr.DynamicPeak {
		opts["hdr-compute-peak"] = "yes"
	} else {
		opts["hdr-compute-peak"] = "no"
	}
	switch hdr.Mode {
	case config.HDRForce:
		opts["target-peak"] = "203"
	case config.HDRDisable:
		opts["tone-mapping"] = string(config.ToneClip)
	}
}

// LoadSource starts playback of src.
func (d *Decoder) LoadSource(src source.Source) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if err := d.m.Command([]string{"loadfile", src.URI()}); err != nil {
		return fmt.Errorf("load %s: %w", src.Location(), err)
	}
	return nil
}

// InitRenderGL creates the OpenGL render context. The surface's context is
// current when this runs; mpv resolves its GL entry points through the
// given loader.
func (d *Decoder) InitRenderGL(getProcAddress func(name string) uintptr) error {
	rc, err := mpv.RenderContextCreate(d.m, []mpv.RenderParam{
		{Type: mpv.RenderParamAPIType, Data: mpv.RenderAPITypeOpenGL},
		{Type: mpv.RenderParamOpenGLInitParams, Data: &mpv.RenderOpenGLInitParams{
			GetProcAddress: getProcAddress,
		}},
	})
	if err != nil {
		return fmt.Errorf("mpv render context: %w", err)
	}
	d.rc = rc
	return nil
}

// RenderToFBO draws the current frame into fbo at width×height.
func (d *Decoder) RenderToFBO(fbo, width, height int) error {
	if d.rc == nil {
		return fmt.Errorf("render before InitRenderGL")
	}
	err := d.rc.Render([]mpv.RenderParam{
		{Type: mpv.RenderParamOpenGLFBO, Data: &mpv.RenderFBO{
			FBO: fbo, Width: width, Height: height,
		}},
		{Type: mpv.RenderParamFlipY, Data: 1},
	})
	if err != nil {
		return fmt.Errorf("mpv render: %w", err)
	}
	return nil
}

// Dimensions reports the decoded video size, once known.
func (d *Decoder) Dimensions() (uint32, uint32, bool) {
	w, errW := d.m.GetProperty("dwidth", mpv.FormatInt64)
	h, errH := d.m.GetProperty("dheight", mpv.FormatInt64)
	if errW != nil || errH != nil {
		return 0, 0, false
	}
	wi, _ := w.(int64)
	hi, _ := h.(int64)
	if wi <= 0 || hi <= 0 {
		return 0, 0, false
	}
	return uint32(wi), uint32(hi), true
}

// SetPaused pauses or resumes playback.
func (d *Decoder) SetPaused(paused bool) error {
	return d.m.SetProperty("pause", mpv.FormatFlag, paused)
}

// Seek sets the absolute playback position. Sources mpv cannot seek return
// mpv's own error unchanged.
func (d *Decoder) Seek(seconds float64) error {
	return d.m.Command([]string{"seek", fmt.Sprintf("%g", seconds), "absolute"})
}

// SetVolume sets the volume from [0,1] onto mpv's 0-100 scale.
func (d *Decoder) SetVolume(volume float64) error {
	return d.m.SetProperty("volume", mpv.FormatDouble, volume*100)
}

// SetMuted toggles mute.
func (d *Decoder) SetMuted(muted bool) error {
	return d.m.SetProperty("mute", mpv.FormatFlag, muted)
}

// SetRate sets the playback rate.
func (d *Decoder) SetRate(rate float64) error {
	return d.m.SetProperty("speed", mpv.FormatDouble, rate)
}

// GetPropertyString exposes mpv string properties for status reporting.
func (d *Decoder) GetPropertyString(name string) (string, bool) {
	v, err := d.m.GetProperty(name, mpv.FormatString)
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetPropertyFloat exposes mpv numeric properties.
func (d *Decoder) GetPropertyFloat(name string) (float64, bool) {
	v, err := d.m.GetProperty(name, mpv.FormatDouble)
	if err != nil {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Close frees the render context and destroys the mpv instance. The
// registry calls this exactly once, when the last handle drops.
func (d *Decoder) Close() error {
	if d.rc != nil {
		d.rc.Free()
		d.rc = nil
	}
	d.m.TerminateDestroy()
	return nil
}
