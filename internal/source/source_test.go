package source

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyEquality(t *testing.T) {
	src := Source{Type: TypeFile, Path: "/home/u/a.mp4"}

	a, err := NewKey(src, DefaultParams())
	require.NoError(t, err)
	b, err := NewKey(src, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	/* same source, different params: distinct decoders */
	p := DefaultParams()
	p.Rate = 2.0
	c, err := NewKey(src, p)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	m := map[Key]int{a: 1}
	m[b]++
	assert.Equal(t, 2, m[a])
}

func TestKeyRejectsNaN(t *testing.T) {
	p := DefaultParams()
	p.Rate = math.NaN()
	_, err := NewKey(Source{Type: TypeFile, Path: "/x.mp4"}, p)
	assert.Error(t, err)

	_, err = NewKey(Source{Type: TypeSequence, Path: "*.png", FPS: math.NaN()}, DefaultParams())
	assert.Error(t, err)
}

func TestKeyRoundTrip(t *testing.T) {
	src := Source{Type: TypeSequence, Path: "/wall/*.png", FPS: 12.5}
	p := DecodeParams{HWDecode: HWOff, Loop: true, StartOffset: 3.5, Rate: 0.5, Mute: false}
	k, err := NewKey(src, p)
	require.NoError(t, err)
	assert.Equal(t, src, k.Source())
	assert.Equal(t, p, k.Params())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		src Source
		ok  bool
	}{
		{Source{Type: TypeFile, Path: "/a.mp4"}, true},
		{Source{Type: TypeFile}, false},
		{Source{Type: TypeURL, URL: "https://host/v.mp4"}, true},
		{Source{Type: TypeURL, URL: "no-scheme"}, false},
		{Source{Type: TypeRTSP, URL: "cam.local/stream"}, true},
		{Source{Type: TypePipe}, true},
		{Source{Type: TypePipe, Path: "/run/fifo"}, true},
		{Source{Type: TypeSequence, Path: "*.png", FPS: 10}, true},
		{Source{Type: TypeSequence}, false},
		{Source{Type: Type("Bogus")}, false},
	}
	for _, c := range cases {
		err := c.src.Validate()
		if c.ok {
			assert.NoError(t, err, "%+v", c.src)
		} else {
			assert.Error(t, err, "%+v", c.src)
		}
	}
}

func TestURI(t *testing.T) {
	assert.Equal(t, "/a.mp4", Source{Type: TypeFile, Path: "/a.mp4"}.URI())
	assert.Equal(t, "fd://0", Source{Type: TypePipe}.URI())
	assert.Equal(t, "/run/fifo", Source{Type: TypePipe, Path: "/run/fifo"}.URI())
	assert.Equal(t, "mf:///wall/*.png", Source{Type: TypeSequence, Path: "/wall/*.png"}.URI())
	assert.Equal(t, "rtsp://cam/stream", Source{Type: TypeRTSP, URL: "cam/stream"}.URI())
	assert.Equal(t, "rtsp://cam/stream", Source{Type: TypeRTSP, URL: "rtsp://cam/stream"}.URI())
}
