package decode

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YangYuS8/wayvid/internal/config"
	"github.com/YangYuS8/wayvid/internal/errdefs"
	"github.com/YangYuS8/wayvid/internal/source"
)

// fakeDecoder counts lifecycle calls so tests can assert construction and
// destruction happen exactly once per entry.
type fakeDecoder struct {
	closed   atomic.Int32
	rendered atomic.Int32
	glInits  atomic.Int32
	w, h     uint32

	renderErr error
	seekErr   error
}

func (f *fakeDecoder) LoadSource(source.Source) error { return nil }
func (f *fakeDecoder) InitRenderGL(func(string) uintptr) error {
	f.glInits.Add(1)
	return nil
}
func (f *fakeDecoder) RenderToFBO(int, int, int) error {
	if f.renderErr != nil {
		return f.renderErr
	}
	f.rendered.Add(1)
	return nil
}
func (f *fakeDecoder) Dimensions() (uint32, uint32, bool) {
	return f.w, f.h, f.w != 0
}
func (f *fakeDecoder) SetPaused(bool) error    { return nil }
func (f *fakeDecoder) Seek(float64) error      { return f.seekErr }
func (f *fakeDecoder) SetVolume(float64) error { return nil }
func (f *fakeDecoder) SetMuted(bool) error     { return nil }
func (f *fakeDecoder) SetRate(float64) error   { return nil }
func (f *fakeDecoder) GetPropertyString(string) (string, bool) {
	return "", false
}
func (f *fakeDecoder) GetPropertyFloat(string) (float64, bool) {
	return 0, false
}
func (f *fakeDecoder) Close() error {
	f.closed.Add(1)
	return nil
}

type fakeFactory struct {
	mu      sync.Mutex
	created []*fakeDecoder
	err     error
	w, h    uint32
}

func (ff *fakeFactory) make(config.Effective, OutputInfo) (Decoder, error) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.err != nil {
		return nil, ff.err
	}
	d := &fakeDecoder{w: ff.w, h: ff.h}
	ff.created = append(ff.created, d)
	return d, nil
}

func (ff *fakeFactory) count() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.created)
}

func keyFor(t *testing.T, path string) source.Key {
	t.Helper()
	k, err := source.NewKey(source.Source{Type: source.TypeFile, Path: path}, source.DefaultParams())
	require.NoError(t, err)
	return k
}

func newTestRegistry(ff *fakeFactory) *Registry {
	return NewRegistry(ff.make, zerolog.Nop())
}

func TestAcquireDeduplicates(t *testing.T) {
	ff := &fakeFactory{w: 1920, h: 1080}
	r := newTestRegistry(ff)
	k := keyFor(t, "/a.mp4")
	cfg := config.Effective{}
	out := DefaultOutputInfo("eDP-1", 1920, 1080, 1)

	h1, err := r.Acquire(k, cfg, out)
	require.NoError(t, err)
	h2, err := r.Acquire(k, cfg, out)
	require.NoError(t, err)

	assert.Equal(t, 1, ff.count(), "one key, one decoder")
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 2, r.Refs(k))
	assert.Equal(t, 2, h1.Consumers())

	h1.Release()
	assert.Equal(t, 1, r.Refs(k))
	assert.Equal(t, int32(0), ff.created[0].closed.Load(), "decoder must survive while a handle lives")

	h2.Release()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, int32(1), ff.created[0].closed.Load(), "last release destroys exactly once")
}

func TestDistinctKeysDistinctDecoders(t *testing.T) {
	ff := &fakeFactory{w: 640, h: 480}
	r := newTestRegistry(ff)
	cfg := config.Effective{}
	out := DefaultOutputInfo("eDP-1", 1920, 1080, 1)

	ha, err := r.Acquire(keyFor(t, "/a.mp4"), cfg, out)
	require.NoError(t, err)
	hb, err := r.Acquire(keyFor(t, "/b.mp4"), cfg, out)
	require.NoError(t, err)

	assert.Equal(t, 2, ff.count())
	assert.Equal(t, 2, r.Len())
	ha.Release()
	hb.Release()
	assert.Equal(t, 0, r.Len())
}

func TestReacquireAfterDropBuildsFresh(t *testing.T) {
	ff := &fakeFactory{w: 640, h: 480}
	r := newTestRegistry(ff)
	k := keyFor(t, "/a.mp4")
	cfg := config.Effective{}
	out := DefaultOutputInfo("eDP-1", 1920, 1080, 1)

	h, err := r.Acquire(k, cfg, out)
	require.NoError(t, err)
	h.Release()

	h2, err := r.Acquire(k, cfg, out)
	require.NoError(t, err)
	defer h2.Release()

	require.Equal(t, 2, ff.count(), "refcount 0→1 must construct a fresh decoder")
	assert.Equal(t, int32(1), ff.created[0].closed.Load())
	assert.Equal(t, int32(0), ff.created[1].closed.Load())
}

func TestAcquireFailureLeavesRegistryUnchanged(t *testing.T) {
	ff := &fakeFactory{err: errors.New("no such file")}
	r := newTestRegistry(ff)
	k := keyFor(t, "/missing.mp4")

	_, err := r.Acquire(k, config.Effective{}, OutputInfo{})
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.Decoder))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.Refs(k))
}

func TestReleaseIdempotent(t *testing.T) {
	ff := &fakeFactory{w: 1, h: 1}
	r := newTestRegistry(ff)
	k := keyFor(t, "/a.mp4")

	h1, err := r.Acquire(k, config.Effective{}, OutputInfo{})
	require.NoError(t, err)
	h2, err := r.Acquire(k, config.Effective{}, OutputInfo{})
	require.NoError(t, err)

	h1.Release()
	h1.Release()
	h1.Release()
	assert.Equal(t, 1, r.Refs(k), "double release must not steal the other handle's reference")
	h2.Release()
	assert.Equal(t, 0, r.Len())
}

func TestInitRenderContextIdempotent(t *testing.T) {
	ff := &fakeFactory{w: 1, h: 1}
	r := newTestRegistry(ff)
	k := keyFor(t, "/a.mp4")

	h1, _ := r.Acquire(k, config.Effective{}, OutputInfo{})
	h2, _ := r.Acquire(k, config.Effective{}, OutputInfo{})
	defer h1.Release()
	defer h2.Release()

	loader := func(string) uintptr { return 0 }
	require.NoError(t, h1.InitRenderContext(loader))
	require.NoError(t, h2.InitRenderContext(loader))
	require.NoError(t, h1.InitRenderContext(loader))
	assert.Equal(t, int32(1), ff.created[0].glInits.Load())
}

func TestRenderCountsFrames(t *testing.T) {
	ff := &fakeFactory{w: 1280, h: 720}
	r := newTestRegistry(ff)
	k := keyFor(t, "/a.mp4")

	h, _ := r.Acquire(k, config.Effective{}, OutputInfo{})
	defer h.Release()

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Render(1920, 1080, 0))
	}
	assert.Equal(t, uint64(5), h.Frames())

	w, ht, ok := h.Dimensions()
	require.True(t, ok)
	assert.Equal(t, uint32(1280), w)
	assert.Equal(t, uint32(720), ht)
}

func TestRenderErrorSetsLastError(t *testing.T) {
	ff := &fakeFactory{w: 1, h: 1}
	r := newTestRegistry(ff)
	k := keyFor(t, "/a.mp4")

	h, _ := r.Acquire(k, config.Effective{}, OutputInfo{})
	defer h.Release()
	ff.created[0].renderErr = errors.New("gpu reset")

	err := h.Render(64, 64, 0)
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.Decoder))
	assert.Equal(t, "gpu reset", h.LastError())
	assert.Equal(t, uint64(0), h.Frames())
}

func TestConcurrentAcquireRelease(t *testing.T) {
	ff := &fakeFactory{w: 1, h: 1}
	r := newTestRegistry(ff)
	k := keyFor(t, "/a.mp4")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				h, err := r.Acquire(k, config.Effective{}, OutputInfo{})
				if err != nil {
					t.Error(err)
					return
				}
				h.Release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len(), "all handles dropped, registry must be empty")
	ff.mu.Lock()
	defer ff.mu.Unlock()
	for i, d := range ff.created {
		assert.Equal(t, int32(1), d.closed.Load(), "decoder %d closed exactly once", i)
	}
}
