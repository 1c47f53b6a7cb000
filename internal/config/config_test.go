package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YangYuS8/wayvid/internal/errdefs"
	"github.com/YangYuS8/wayvid/internal/layout"
	"github.com/YangYuS8/wayvid/internal/source"
)

func TestValidateClampsNumbers(t *testing.T) {
	f := Default()
	f.Volume = 3.2
	f.Rate = 0.001
	f.Start = -5
	f.MaxFPS = -1
	f.HDR.Param = 99

	require.NoError(t, f.ValidateAndClamp(zerolog.Nop()))
	assert.Equal(t, 1.0, f.Volume)
	assert.Equal(t, 0.1, f.Rate)
	assert.Equal(t, 0.0, f.Start)
	assert.Equal(t, 0, f.MaxFPS)
	assert.Equal(t, 10.0, f.HDR.Param)
}

func TestValidateResetsUnknownEnums(t *testing.T) {
	f := Default()
	f.Layout = layout.Mode("diagonal")
	f.HWDecode = source.HWMode("maybe")
	f.HDR.ToneMap = ToneMap("gamma")
	f.HDR.Mode = HDRMode("sometimes")
	f.HDR.Mapping = MapMode("cmyk")

	require.NoError(t, f.ValidateAndClamp(zerolog.Nop()))
	assert.Equal(t, layout.ModeFill, f.Layout)
	assert.Equal(t, source.HWAuto, f.HWDecode)
	assert.Equal(t, ToneHable, f.HDR.ToneMap)
	assert.Equal(t, HDRAuto, f.HDR.Mode)
	assert.Equal(t, MapHybrid, f.HDR.Mapping)
}

func TestValidateRejectsNaN(t *testing.T) {
	f := Default()
	f.Rate = math.NaN()
	err := f.ValidateAndClamp(zerolog.Nop())
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.Config))

	f = Default()
	v := math.NaN()
	f.Outputs = []Override{{Pattern: "*", Fields: Fields{Volume: &v}}}
	assert.Error(t, f.ValidateAndClamp(zerolog.Nop()))
}

func TestValidateRejectsEmptyPattern(t *testing.T) {
	f := Default()
	f.Outputs = []Override{{Fields: Fields{Mute: new(bool)}}}
	assert.Error(t, f.ValidateAndClamp(zerolog.Nop()))
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wayvid.yaml")
	doc := `
source:
  type: File
  path: /home/u/a.mp4
layout: contain
volume: 0.3
max-fps: 30
outputs:
  - pattern: "HDMI-A-*"
    priority: 5
    layout: fill
    mute: false
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	f, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "/home/u/a.mp4", f.Source.Path)
	assert.Equal(t, layout.ModeContain, f.Layout)
	assert.Equal(t, 30, f.MaxFPS)

	eff := f.Resolve("HDMI-A-1")
	assert.Equal(t, layout.ModeFill, eff.Layout)
	assert.False(t, eff.Params.Mute)
	assert.Equal(t, 0.3, eff.Volume)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml", zerolog.Nop())
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.Config))
}

func TestLoadEmptyPathIsDefaults(t *testing.T) {
	f, err := Load("", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, layout.ModeFill, f.Layout)
	assert.True(t, f.Mute)
	assert.True(t, f.Loop)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#000000")
	require.NoError(t, err)
	assert.Equal(t, Color{0, 0, 0, 1}, c)

	c, err = ParseColor("fff")
	require.NoError(t, err)
	assert.Equal(t, Color{1, 1, 1, 1}, c)

	c, err = ParseColor("#80808080")
	require.NoError(t, err)
	assert.InDelta(t, 0.502, float64(c[0]), 0.01)
	assert.InDelta(t, 0.502, float64(c[3]), 0.01)

	_, err = ParseColor("")
	assert.Error(t, err)
	_, err = ParseColor("#12345")
	assert.Error(t, err)
	_, err = ParseColor("zzzzzz")
	assert.Error(t, err)
}
