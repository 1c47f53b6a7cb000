// Package source defines the media sources a wallpaper can play and the
// keys by which decoders are shared between outputs.
package source

import (
	"fmt"
	"math"
	"strings"
)

// Type tags the kind of media source.
type Type string

const (
	TypeFile     Type = "File"
	TypeURL      Type = "URL"
	TypeRTSP     Type = "RTSP"
	TypePipe     Type = "Pipe"
	TypeSequence Type = "Sequence"
)

// Source names one playable thing. Exactly one of the location fields is
// meaningful, depending on Type:
//
//	File      Path is a local file
//	URL       URL is a full scheme://... string
//	RTSP      URL is the rtsp authority+path
//	Pipe      Path is a named pipe, or empty for inherited stdin
//	Sequence  Path is a glob, FPS the nominal frame rate
type Source struct {
	Type Type    `json:"type" yaml:"type"`
	Path string  `json:"path,omitempty" yaml:"path,omitempty"`
	URL  string  `json:"url,omitempty" yaml:"url,omitempty"`
	FPS  float64 `json:"fps,omitempty" yaml:"fps,omitempty"`
}

// HWMode selects hardware decoding.
type HWMode string

const (
	HWAuto HWMode = "auto"
	HWOn   HWMode = "on"
	HWOff  HWMode = "off"
)

// DecodeParams are the decoder-side knobs. Two surfaces only share a decoder
// when both the source and all of these match.
type DecodeParams struct {
	HWDecode    HWMode  `json:"hwdec" yaml:"hwdec"`
	Loop        bool    `json:"loop" yaml:"loop"`
	StartOffset float64 `json:"start" yaml:"start"`
	Rate        float64 `json:"rate" yaml:"rate"`
	Mute        bool    `json:"mute" yaml:"mute"`
}

// DefaultParams returns the decode parameters used when nothing is configured.
func DefaultParams() DecodeParams {
	return DecodeParams{HWDecode: HWAuto, Loop: true, Rate: 1.0, Mute: true}
}

// Key is the identity of a shareable decoder: one source plus one set of
// decode parameters. Float fields are stored bitwise so Key is a valid map
// key; NewKey rejects NaN before it can poison comparisons.
type Key struct {
	typ  Type
	path string
	url  string

	fpsBits   uint64
	hwdec     HWMode
	loop      bool
	startBits uint64
	rateBits  uint64
	mute      bool
}

// NewKey builds the sharing key for src under params. NaN in any float field
// is rejected: a key that does not equal itself can never be released from
// the registry.
func NewKey(src Source, params DecodeParams) (Key, error) {
	for name, v := range map[string]float64{
		"fps":   src.FPS,
		"start": params.StartOffset,
		"rate":  params.Rate,
	} {
		if math.IsNaN(v) {
			return Key{}, fmt.Errorf("source key: %s is NaN", name)
		}
	}
	return Key{
		typ:       src.Type,
		path:      src.Path,
		url:       src.URL,
		fpsBits:   math.Float64bits(src.FPS),
		hwdec:     params.HWDecode,
		loop:      params.Loop,
		startBits: math.Float64bits(params.StartOffset),
		rateBits:  math.Float64bits(params.Rate),
		mute:      params.Mute,
	}, nil
}

// Source reconstructs the source half of the key.
func (k Key) Source() Source {
	return Source{
		Type: k.typ,
		Path: k.path,
		URL:  k.url,
		FPS:  math.Float64frombits(k.fpsBits),
	}
}

// Params reconstructs the decode-parameter half of the key.
func (k Key) Params() DecodeParams {
	return DecodeParams{
		HWDecode:    k.hwdec,
		Loop:        k.loop,
		StartOffset: math.Float64frombits(k.startBits),
		Rate:        math.Float64frombits(k.rateBits),
		Mute:        k.mute,
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s(%s)", k.typ, k.Source().Location())
}

// Location returns the user-facing location string for logs and status
// reports.
func (s Source) Location() string {
	switch s.Type {
	case TypeURL, TypeRTSP:
		return s.URL
	case TypePipe:
		if s.Path == "" {
			return "<stdin>"
		}
		return s.Path
	default:
		return s.Path
	}
}

// Validate checks that the source names something loadable.
func (s Source) Validate() error {
	switch s.Type {
	case TypeFile:
		if s.Path == "" {
			return fmt.Errorf("file source: empty path")
		}
	case TypeURL:
		if s.URL == "" || !strings.Contains(s.URL, "://") {
			return fmt.Errorf("url source: %q is not a URL", s.URL)
		}
	case TypeRTSP:
		if s.URL == "" {
			return fmt.Errorf("rtsp source: empty address")
		}
	case TypePipe:
		/* empty path means stdin */
	case TypeSequence:
		if s.Path == "" {
			return fmt.Errorf("sequence source: empty glob")
		}
		if s.FPS < 0 || math.IsNaN(s.FPS) {
			return fmt.Errorf("sequence source: invalid fps %v", s.FPS)
		}
	default:
		return fmt.Errorf("unknown source type %q", s.Type)
	}
	return nil
}

// URI maps the source onto an mpv-style URI. Pipe sources with no path become
// the inherited standard input, image sequences use the mf:// pseudo protocol.
func (s Source) URI() string {
	switch s.Type {
	case TypeURL:
		return s.URL
	case TypeRTSP:
		if strings.Contains(s.URL, "://") {
			return s.URL
		}
		return "rtsp://" + s.URL
	case TypePipe:
		if s.Path == "" {
			return "fd://0"
		}
		return s.Path
	case TypeSequence:
		return "mf://" + s.Path
	default:
		return s.Path
	}
}
