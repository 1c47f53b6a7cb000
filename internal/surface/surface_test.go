package surface

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YangYuS8/wayvid/internal/config"
	"github.com/YangYuS8/wayvid/internal/decode"
	"github.com/YangYuS8/wayvid/internal/layout"
	"github.com/YangYuS8/wayvid/internal/source"
)

type fakeBackend struct {
	created   bool
	createErr error
	current   int
	swaps     int
	frames    int
	commits   int
	resizes   [][2]uint32
	viewports []layout.Rect
	destroyed bool
}

func (b *fakeBackend) CreateGL(w, h uint32) error {
	if b.createErr != nil {
		err := b.createErr
		b.createErr = nil
		return err
	}
	b.created = true
	return nil
}
func (b *fakeBackend) ResizeGL(w, h uint32)             { b.resizes = append(b.resizes, [2]uint32{w, h}) }
func (b *fakeBackend) MakeCurrent() error               { b.current++; return nil }
func (b *fakeBackend) GetProcAddress(string) uintptr    { return 1 }
func (b *fakeBackend) Viewport(r layout.Rect)           { b.viewports = append(b.viewports, r) }
func (b *fakeBackend) Clear(config.Color)               {}
func (b *fakeBackend) SwapBuffers() error               { b.swaps++; return nil }
func (b *fakeBackend) RequestFrame()                    { b.frames++ }
func (b *fakeBackend) Commit()                          { b.commits++ }
func (b *fakeBackend) Destroy()                         { b.destroyed = true }

type fakeHandle struct {
	key       source.Key
	released  int
	inits     int
	renders   int
	renderErr error
	w, h      uint32
}

func (h *fakeHandle) Key() source.Key { return h.key }
func (h *fakeHandle) InitRenderContext(func(string) uintptr) error {
	h.inits++
	return nil
}
func (h *fakeHandle) Dimensions() (uint32, uint32, bool) { return h.w, h.h, h.w != 0 }
func (h *fakeHandle) Render(int, int, int) error {
	if h.renderErr != nil {
		return h.renderErr
	}
	h.renders++
	return nil
}
func (h *fakeHandle) Release()               { h.released++ }
func (h *fakeHandle) Frames() uint64         { return uint64(h.renders) }
func (h *fakeHandle) Consumers() int         { return 1 }
func (h *fakeHandle) SetPaused(bool) error   { return nil }
func (h *fakeHandle) Seek(float64) error     { return nil }
func (h *fakeHandle) SetVolume(float64) error { return nil }
func (h *fakeHandle) SetMuted(bool) error    { return nil }
func (h *fakeHandle) SetRate(float64) error  { return nil }

type fakeRegistry struct {
	acquired []source.Key
	err      error
	handles  []*fakeHandle
	w, h     uint32
}

func (r *fakeRegistry) acquire(key source.Key, _ config.Effective, _ decode.OutputInfo) (DecoderHandle, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.acquired = append(r.acquired, key)
	h := &fakeHandle{key: key, w: r.w, h: r.h}
	r.handles = append(r.handles, h)
	return h, nil
}

func testCfg(path string) config.Effective {
	return config.Effective{
		Source: source.Source{Type: source.TypeFile, Path: path},
		Params: source.DefaultParams(),
		Layout: layout.ModeFill,
	}
}

func newTestSurface(t *testing.T, b *fakeBackend, r *fakeRegistry) *Surface {
	t.Helper()
	out := decode.DefaultOutputInfo("eDP-1", 1920, 1080, 1)
	return New(out, testCfg("/a.mp4"), config.Color{0, 0, 0, 1}, b, r.acquire, zerolog.Nop())
}

func TestLazyInitialization(t *testing.T) {
	b := &fakeBackend{}
	r := &fakeRegistry{w: 1280, h: 720}
	s := newTestSurface(t, b, r)

	assert.Equal(t, StateCreated, s.State())
	/* nothing before the first configure */
	s.RenderIfDue()
	assert.False(t, b.created)
	assert.Empty(t, r.acquired)

	s.Configure(1920, 1080)
	assert.Equal(t, StateConfigured, s.State())
	assert.False(t, b.created, "configure alone must not touch GL")

	/* first scheduled frame does the whole lazy init + render */
	s.RenderIfDue()
	assert.True(t, b.created)
	require.Len(t, r.acquired, 1)
	assert.Equal(t, 1, r.handles[0].inits)
	assert.Equal(t, 1, r.handles[0].renders)
	assert.Equal(t, 1, b.swaps)
	assert.Equal(t, StateRendering, s.State())
	assert.Equal(t, 1, b.frames, "next frame callback registered before swap")
}

func TestRenderWaitsForFrameCallback(t *testing.T) {
	b := &fakeBackend{}
	r := &fakeRegistry{w: 1280, h: 720}
	s := newTestSurface(t, b, r)
	s.Configure(1920, 1080)
	s.RenderIfDue()
	require.Equal(t, 1, b.swaps)

	/* no callback fired: no render */
	s.RenderIfDue()
	assert.Equal(t, 1, b.swaps)

	s.FrameDue()
	s.RenderIfDue()
	assert.Equal(t, 2, b.swaps)
}

func TestConfigureResizeInvalidatesLayoutOnly(t *testing.T) {
	b := &fakeBackend{}
	r := &fakeRegistry{w: 1280, h: 720}
	s := newTestSurface(t, b, r)
	s.Configure(1920, 1080)
	s.RenderIfDue()
	require.Len(t, r.handles, 1)
	vp1 := b.viewports[0]

	/* resize: no decoder teardown, GL resized before next render */
	s.Configure(2560, 1440)
	s.FrameDue()
	s.RenderIfDue()
	assert.Equal(t, 0, r.handles[0].released, "resize must not drop the decoder")
	require.Len(t, b.resizes, 1)
	assert.Equal(t, [2]uint32{2560, 1440}, b.resizes[0])
	vp2 := b.viewports[1]
	assert.NotEqual(t, vp1, vp2, "resize must recompute the viewport")
}

func TestRepeatedConfigureSameSizeIsNoop(t *testing.T) {
	b := &fakeBackend{}
	r := &fakeRegistry{w: 1280, h: 720}
	s := newTestSurface(t, b, r)
	s.Configure(1920, 1080)
	s.RenderIfDue()

	s.Configure(1920, 1080)
	s.FrameDue()
	s.RenderIfDue()
	assert.Empty(t, b.resizes)
	require.Len(t, r.acquired, 1, "re-configure must not re-run initialization")
}

func TestDeactivateReleasesDecoderKeepsGL(t *testing.T) {
	b := &fakeBackend{}
	r := &fakeRegistry{w: 1280, h: 720}
	s := newTestSurface(t, b, r)
	s.Configure(1920, 1080)
	s.RenderIfDue()
	require.Len(t, r.handles, 1)

	s.SetActive(false)
	assert.Equal(t, 1, r.handles[0].released)
	assert.False(t, b.destroyed, "the GL surface stays")
	assert.Equal(t, StateInactive, s.State())

	/* no rendering while inactive */
	s.FrameDue()
	s.RenderIfDue()
	assert.Equal(t, 1, b.swaps)

	/* reactivation lazily re-acquires */
	s.SetActive(true)
	s.RenderIfDue()
	require.Len(t, r.acquired, 2)
	assert.Equal(t, 2, b.swaps)
}

func TestAcquireFailureBacksOffThenRetries(t *testing.T) {
	b := &fakeBackend{}
	r := &fakeRegistry{w: 1280, h: 720, err: errors.New("load failed")}
	s := newTestSurface(t, b, r)
	s.Configure(1920, 1080)

	s.RenderIfDue()
	assert.Equal(t, StateInactive, s.State())
	assert.NotEmpty(t, s.Status().LastError)
	assert.Zero(t, b.swaps)
	assert.Positive(t, b.frames, "failed surface must keep scheduling frames")

	/* one idle cycle */
	s.FrameDue()
	s.RenderIfDue()
	assert.Empty(t, r.acquired)

	/* then re-acquisition is retried and succeeds */
	r.err = nil
	s.FrameDue()
	s.RenderIfDue()
	require.Len(t, r.acquired, 1)
	assert.Equal(t, StateRendering, s.State())
	assert.Empty(t, s.Status().LastError)
}

func TestRenderFailureReleasesHandle(t *testing.T) {
	b := &fakeBackend{}
	r := &fakeRegistry{w: 1280, h: 720}
	s := newTestSurface(t, b, r)
	s.Configure(1920, 1080)
	s.RenderIfDue()
	require.Len(t, r.handles, 1)

	r.handles[0].renderErr = errors.New("gpu reset")
	s.FrameDue()
	s.RenderIfDue()
	assert.Equal(t, 1, r.handles[0].released)
	assert.Equal(t, StateInactive, s.State())
	assert.Equal(t, "gpu reset", s.Status().LastError)
}

func TestSwitchSourceReacquires(t *testing.T) {
	b := &fakeBackend{}
	r := &fakeRegistry{w: 1280, h: 720}
	s := newTestSurface(t, b, r)
	s.Configure(1920, 1080)
	s.RenderIfDue()
	require.Len(t, r.handles, 1)

	/* switch drops the old handle, next render acquires the new key */
	require.NoError(t, s.SwitchSource(source.Source{Type: source.TypeFile, Path: "/b.mp4"}))
	assert.Equal(t, 1, r.handles[0].released)

	s.RenderIfDue()
	require.Len(t, r.acquired, 2)
	assert.Equal(t, "/b.mp4", r.acquired[1].Source().Path)
	assert.Equal(t, "/b.mp4", s.Status().Source.Path)

	/* invalid sources are rejected without touching the handle */
	assert.Error(t, s.SwitchSource(source.Source{Type: source.TypeFile}))
}

func TestApplyConfigSameKeyKeepsDecoder(t *testing.T) {
	b := &fakeBackend{}
	r := &fakeRegistry{w: 1280, h: 720}
	s := newTestSurface(t, b, r)
	s.Configure(1920, 1080)
	s.RenderIfDue()

	cfg := s.Config()
	cfg.Volume = 0.8
	cfg.Layout = layout.ModeContain
	s.ApplyConfig(cfg, config.Color{0, 0, 0, 1})
	assert.Equal(t, 0, r.handles[0].released, "same key must keep the decoder")

	cfg.Params.Rate = 2.0 /* rate is part of the key */
	s.ApplyConfig(cfg, config.Color{0, 0, 0, 1})
	assert.Equal(t, 1, r.handles[0].released)
}

func TestDestroyReleasesEverything(t *testing.T) {
	b := &fakeBackend{}
	r := &fakeRegistry{w: 1280, h: 720}
	s := newTestSurface(t, b, r)
	s.Configure(1920, 1080)
	s.RenderIfDue()

	s.Destroy()
	assert.Equal(t, 1, r.handles[0].released)
	assert.True(t, b.destroyed)
	assert.Equal(t, StateDestroyed, s.State())

	/* terminal: nothing revives it */
	s.FrameDue()
	s.RenderIfDue()
	s.Configure(640, 480)
	assert.Equal(t, StateDestroyed, s.State())
	s.Destroy()
	assert.Equal(t, 1, r.handles[0].released, "double destroy must not double release")
}

func TestStatusFields(t *testing.T) {
	b := &fakeBackend{}
	r := &fakeRegistry{w: 1280, h: 720}
	s := newTestSurface(t, b, r)
	s.Configure(1920, 1080)
	s.RenderIfDue()

	st := s.Status()
	assert.Equal(t, "eDP-1", st.Name)
	assert.Equal(t, uint32(1920), st.Width)
	assert.Equal(t, uint32(1080), st.Height)
	assert.Equal(t, "/a.mp4", st.Source.Path)
	assert.Equal(t, layout.ModeFill, st.Layout)
	assert.Equal(t, 1, st.Decoder.Consumers)
	assert.Equal(t, uint64(1), st.Decoder.DecodedFrames)
	assert.Equal(t, uint64(1), st.Renderer.Rendered)
}
