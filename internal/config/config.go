// Package config loads the wallpaper configuration, validates and clamps its
// values, and resolves the effective per-output configuration from the
// global defaults plus pattern-matched overrides.
package config

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/YangYuS8/wayvid/internal/errdefs"
	"github.com/YangYuS8/wayvid/internal/layout"
	"github.com/YangYuS8/wayvid/internal/source"
)

// HDRMode controls whether HDR metadata is honored.
type HDRMode string

const (
	HDRAuto    HDRMode = "auto"
	HDRForce   HDRMode = "force"
	HDRDisable HDRMode = "disable"
)

// ToneMap selects the tone-mapping algorithm.
type ToneMap string

const (
	ToneHable    ToneMap = "hable"
	ToneMobius   ToneMap = "mobius"
	ToneReinhard ToneMap = "reinhard"
	ToneBT2390   ToneMap = "bt2390"
	ToneClip     ToneMap = "clip"
)

// MapMode selects the gamut-mapping mode.
type MapMode string

const (
	MapHybrid MapMode = "hybrid"
	MapAuto   MapMode = "auto"
	MapRGB    MapMode = "rgb"
	MapLuma   MapMode = "luma"
)

// HDR holds the tone-mapping configuration handed to the decoder.
type HDR struct {
	Mode        HDRMode `yaml:"mode" json:"mode"`
	ToneMap     ToneMap `yaml:"tone-map" json:"tone_map"`
	Param       float64 `yaml:"param" json:"param"`
	DynamicPeak bool    `yaml:"dynamic-peak" json:"dynamic_peak"`
	Mapping     MapMode `yaml:"mapping" json:"mapping"`
}

// DefaultHDR returns the HDR settings used when nothing is configured.
func DefaultHDR() HDR {
	return HDR{Mode: HDRAuto, ToneMap: ToneHable, Param: 1.0, Mapping: MapHybrid}
}

// Effective is the fully-resolved configuration for one output. It is the
// authoritative input to the surface: the source plus decode params form the
// decoder-sharing key, the rest applies per surface.
type Effective struct {
	Source source.Source       `json:"source"`
	Params source.DecodeParams `json:"params"`
	Layout layout.Mode         `json:"layout"`
	Volume float64             `json:"volume"`
	MaxFPS int                 `json:"max_fps"`
	HDR    HDR                 `json:"hdr"`
}

// Key returns the decoder-sharing key for this configuration.
func (e Effective) Key() (source.Key, error) {
	return source.NewKey(e.Source, e.Params)
}

// Fields is the partial settings block shared by the global section and the
// per-output overrides. Nil means "not set here".
type Fields struct {
	Source   *source.Source `yaml:"source"`
	Layout   *layout.Mode   `yaml:"layout"`
	Volume   *float64       `yaml:"volume"`
	Rate     *float64       `yaml:"rate"`
	Start    *float64       `yaml:"start"`
	MaxFPS   *int           `yaml:"max-fps"`
	HWDecode *source.HWMode `yaml:"hwdec"`
	Loop     *bool          `yaml:"loop"`
	Mute     *bool          `yaml:"mute"`
	HDR      *HDR           `yaml:"hdr"`
}

// Override is one per-output entry: a connector-name pattern plus the fields
// it overrides. An exact pattern is implicitly the highest priority.
type Override struct {
	Pattern  string `yaml:"pattern"`
	Priority int    `yaml:"priority"`
	Fields   `yaml:",inline"`
}

// File is the parsed configuration document.
type File struct {
	Source     source.Source `yaml:"source"`
	Layout     layout.Mode   `yaml:"layout"`
	Volume     float64       `yaml:"volume"`
	Rate       float64       `yaml:"rate"`
	Start      float64       `yaml:"start"`
	MaxFPS     int           `yaml:"max-fps"`
	HWDecode   source.HWMode `yaml:"hwdec"`
	Loop       bool          `yaml:"loop"`
	Mute       bool          `yaml:"mute"`
	HDR        HDR           `yaml:"hdr"`
	Background string        `yaml:"background"`
	Socket     string        `yaml:"socket"`
	Outputs    []Override    `yaml:"outputs"`
}

// Default returns the configuration used when no file is given: a muted,
// looping, hardware-decoded fill with no source.
func Default() *File {
	return &File{
		Layout:     layout.ModeFill,
		Volume:     0,
		Rate:       1.0,
		MaxFPS:     0,
		HWDecode:   source.HWAuto,
		Loop:       true,
		Mute:       true,
		HDR:        DefaultHDR(),
		Background: "#000000",
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// ValidateAndClamp normalizes the document in place. Numeric fields are
// clamped into range, unknown enum strings reset to their defaults with a
// warning, and NaN anywhere is an outright error.
func (f *File) ValidateAndClamp(log zerolog.Logger) error {
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"volume", f.Volume},
		{"rate", f.Rate},
		{"start", f.Start},
		{"hdr.param", f.HDR.Param},
		{"source.fps", f.Source.FPS},
	} {
		if math.IsNaN(v.value) {
			return errdefs.New(errdefs.Config, "%s is NaN", v.name)
		}
	}

	f.Volume = clamp(f.Volume, 0, 1)
	f.Rate = clamp(f.Rate, 0.1, 10)
	f.Start = math.Max(0, f.Start)
	if f.MaxFPS < 0 {
		f.MaxFPS = 0
	}

	if !f.Layout.Valid() {
		log.Warn().Str("layout", string(f.Layout)).Msg("unknown layout mode, using fill")
		f.Layout = layout.ModeFill
	}
	switch f.HWDecode {
	case source.HWAuto, source.HWOn, source.HWOff:
	default:
		log.Warn().Str("hwdec", string(f.HWDecode)).Msg("unknown hwdec mode, using auto")
		f.HWDecode = source.HWAuto
	}
	f.HDR.validate(log)

	if f.Source.Type != "" {
		if err := f.Source.Validate(); err != nil {
			return errdefs.Wrap(errdefs.Config, err, "global source")
		}
	}
	for i := range f.Outputs {
		o := &f.Outputs[i]
		if o.Pattern == "" {
			return errdefs.New(errdefs.Config, "output override %d: empty pattern", i)
		}
		if err := o.Fields.validateAndClamp(log); err != nil {
			return errdefs.Wrap(errdefs.Config, err, "override %q", o.Pattern)
		}
	}
	return nil
}

func (h *HDR) validate(log zerolog.Logger) {
	switch h.Mode {
	case HDRAuto, HDRForce, HDRDisable:
	default:
		log.Warn().Str("mode", string(h.Mode)).Msg("unknown hdr mode, using auto")
		h.Mode = HDRAuto
	}
	switch h.ToneMap {
	case ToneHable, ToneMobius, ToneReinhard, ToneBT2390, ToneClip:
	default:
		log.Warn().Str("tone-map", string(h.ToneMap)).Msg("unknown tone-mapping algorithm, using hable")
		h.ToneMap = ToneHable
	}
	switch h.Mapping {
	case MapHybrid, MapAuto, MapRGB, MapLuma:
	default:
		log.Warn().Str("mapping", string(h.Mapping)).Msg("unknown mapping mode, using hybrid")
		h.Mapping = MapHybrid
	}
	h.Param = clamp(h.Param, 0, 10)
}

func (fl *Fields) validateAndClamp(log zerolog.Logger) error {
	for _, v := range []struct {
		name  string
		value *float64
	}{
		{"volume", fl.Volume},
		{"rate", fl.Rate},
		{"start", fl.Start},
	} {
		if v.value != nil && math.IsNaN(*v.value) {
			return errdefs.New(errdefs.Config, "%s is NaN", v.name)
		}
	}
	if fl.HDR != nil && math.IsNaN(fl.HDR.Param) {
		return errdefs.New(errdefs.Config, "hdr.param is NaN")
	}
	if fl.Source != nil && math.IsNaN(fl.Source.FPS) {
		return errdefs.New(errdefs.Config, "source.fps is NaN")
	}
	if fl.Volume != nil {
		*fl.Volume = clamp(*fl.Volume, 0, 1)
	}
	if fl.Rate != nil {
		*fl.Rate = clamp(*fl.Rate, 0.1, 10)
	}
	if fl.Start != nil {
		*fl.Start = math.Max(0, *fl.Start)
	}
	if fl.MaxFPS != nil && *fl.MaxFPS < 0 {
		*fl.MaxFPS = 0
	}
	if fl.Layout != nil && !fl.Layout.Valid() {
		log.Warn().Str("layout", string(*fl.Layout)).Msg("unknown layout mode in override, ignoring")
		fl.Layout = nil
	}
	if fl.HWDecode != nil {
		switch *fl.HWDecode {
		case source.HWAuto, source.HWOn, source.HWOff:
		default:
			log.Warn().Str("hwdec", string(*fl.HWDecode)).Msg("unknown hwdec mode in override, ignoring")
			fl.HWDecode = nil
		}
	}
	if fl.HDR != nil {
		fl.HDR.validate(log)
	}
	if fl.Source != nil {
		if err := fl.Source.Validate(); err != nil {
			return err
		}
	}
	return nil
}
