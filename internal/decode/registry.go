package decode

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/YangYuS8/wayvid/internal/config"
	"github.com/YangYuS8/wayvid/internal/errdefs"
	"github.com/YangYuS8/wayvid/internal/source"
)

// Factory constructs a decoder for an effective configuration. The returned
// decoder has its source loaded and parameters applied; GL init happens
// later via Handle.InitRenderContext.
type Factory func(cfg config.Effective, out OutputInfo) (Decoder, error)

// Registry deduplicates decoders by source key. The registry lock is held
// only for lookup/insert/remove; decoder work runs under the per-entry
// mutex, outside the registry lock.
type Registry struct {
	mu      sync.RWMutex
	entries map[source.Key]*entry

	factory Factory
	log     zerolog.Logger
}

// entry is one shared decoder. refs is guarded by the registry lock; the
// decoder and glInit by mu. The dimension cache and frame counter are
// written under mu and read lock-free.
type entry struct {
	key source.Key

	mu     sync.Mutex
	dec    Decoder
	glInit bool

	refs int

	dims    atomic.Uint64 /* w<<32 | h, 0 while unknown */
	frames  atomic.Uint64
	lastErr atomic.Value /* string */
}

// NewRegistry builds an empty registry around a decoder factory.
func NewRegistry(factory Factory, log zerolog.Logger) *Registry {
	return &Registry{
		entries: make(map[source.Key]*entry),
		factory: factory,
		log:     log,
	}
}

// Acquire returns a handle for key, reusing the existing decoder when one is
// live or constructing a fresh one otherwise. On construction failure the
// registry is unchanged and the error is returned.
func (r *Registry) Acquire(key source.Key, cfg config.Effective, out OutputInfo) (*Handle, error) {
	r.mu.Lock()
	if e, ok := r.entries[key]; ok {
		e.refs++
		refs := e.refs
		r.mu.Unlock()
		r.log.Debug().Stringer("key", key).Int("refs", refs).Msg("reusing decoder")
		return &Handle{reg: r, e: e}, nil
	}
	r.mu.Unlock()

	/* construct outside the lock; loading a source can block for a while */
	dec, err := r.factory(cfg, out)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.Decoder, err, "create decoder for %s", key)
	}

	r.mu.Lock()
	if e, ok := r.entries[key]; ok {
		/* lost the race; keep the winner, drop ours */
		e.refs++
		r.mu.Unlock()
		_ = dec.Close()
		return &Handle{reg: r, e: e}, nil
	}
	e := &entry{key: key, dec: dec, refs: 1}
	r.entries[key] = e
	r.mu.Unlock()

	r.log.Info().Stringer("key", key).Msg("decoder created")
	return &Handle{reg: r, e: e}, nil
}

// release drops one reference. When the count hits zero the entry leaves
// the registry and the decoder is destroyed, deterministically.
func (r *Registry) release(e *entry) {
	r.mu.Lock()
	e.refs--
	last := e.refs == 0
	if last {
		delete(r.entries, e.key)
	}
	r.mu.Unlock()

	if last {
		e.mu.Lock()
		dec := e.dec
		e.dec = nil
		e.mu.Unlock()
		if dec != nil {
			if err := dec.Close(); err != nil {
				r.log.Warn().Err(err).Stringer("key", e.key).Msg("decoder close failed")
			}
		}
		r.log.Info().Stringer("key", e.key).Msg("decoder destroyed")
	}
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Refs returns the reference count for key, 0 when absent.
func (r *Registry) Refs(key source.Key) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[key]; ok {
		return e.refs
	}
	return 0
}

// Handle is one surface's reference onto a shared decoder entry. Release is
// idempotent; all other methods must not be called after Release.
type Handle struct {
	reg      *Registry
	e        *entry
	released atomic.Bool
}

// Key returns the source key this handle was acquired under.
func (h *Handle) Key() source.Key {
	return h.e.key
}

// Release drops the reference. Safe to call more than once.
func (h *Handle) Release() {
	if h.released.CompareAndSwap(false, true) {
		h.reg.release(h.e)
	}
}

// InitRenderContext configures the decoder's GL path. Idempotent per entry:
// only the first handle on a fresh entry does the work.
func (h *Handle) InitRenderContext(getProcAddress func(name string) uintptr) error {
	h.e.mu.Lock()
	defer h.e.mu.Unlock()
	if h.e.glInit || h.e.dec == nil {
		return nil
	}
	if err := h.e.dec.InitRenderGL(getProcAddress); err != nil {
		return errdefs.Wrap(errdefs.Decoder, err, "init render context for %s", h.e.key)
	}
	h.e.glInit = true
	return nil
}

// Dimensions returns the source video size, cached after the first non-zero
// read so steady-state renders never take the entry mutex for it.
func (h *Handle) Dimensions() (uint32, uint32, bool) {
	if packed := h.e.dims.Load(); packed != 0 {
		return uint32(packed >> 32), uint32(packed), true
	}
	h.e.mu.Lock()
	defer h.e.mu.Unlock()
	if h.e.dec == nil {
		return 0, 0, false
	}
	w, hgt, ok := h.e.dec.Dimensions()
	if !ok || w == 0 || hgt == 0 {
		return 0, 0, false
	}
	h.e.dims.Store(uint64(w)<<32 | uint64(hgt))
	return w, hgt, true
}

// Render draws one frame into fbo at width×height, under the entry mutex.
func (h *Handle) Render(width, height, fbo int) error {
	h.e.mu.Lock()
	defer h.e.mu.Unlock()
	if h.e.dec == nil {
		return errdefs.New(errdefs.Decoder, "render on released decoder %s", h.e.key)
	}
	if err := h.e.dec.RenderToFBO(fbo, width, height); err != nil {
		h.e.lastErr.Store(err.Error())
		return errdefs.Wrap(errdefs.Decoder, err, "render %s", h.e.key)
	}
	h.e.frames.Add(1)
	return nil
}

// Frames returns the cumulative decoded-frame count for the shared entry.
func (h *Handle) Frames() uint64 {
	return h.e.frames.Load()
}

// Consumers returns the current reference count of the shared entry.
func (h *Handle) Consumers() int {
	return h.reg.Refs(h.e.key)
}

// LastError returns the most recent render error on the shared entry, empty
// when none occurred.
func (h *Handle) LastError() string {
	if v, ok := h.e.lastErr.Load().(string); ok {
		return v
	}
	return ""
}

// do runs fn on the decoder under the entry mutex.
func (h *Handle) do(fn func(Decoder) error) error {
	h.e.mu.Lock()
	defer h.e.mu.Unlock()
	if h.e.dec == nil {
		return errdefs.New(errdefs.Decoder, "operation on released decoder %s", h.e.key)
	}
	return fn(h.e.dec)
}

// SetPaused pauses or resumes playback on the shared decoder.
func (h *Handle) SetPaused(p bool) error {
	return h.do(func(d Decoder) error { return d.SetPaused(p) })
}

// Seek sets the playback position. Non-seekable sources surface the
// decoder's own response unchanged.
func (h *Handle) Seek(seconds float64) error {
	return h.do(func(d Decoder) error { return d.Seek(seconds) })
}

// SetVolume adjusts playback volume in [0,1].
func (h *Handle) SetVolume(v float64) error {
	return h.do(func(d Decoder) error { return d.SetVolume(v) })
}

// SetMuted toggles audio mute.
func (h *Handle) SetMuted(m bool) error {
	return h.do(func(d Decoder) error { return d.SetMuted(m) })
}

// SetRate adjusts the playback rate.
func (h *Handle) SetRate(rate float64) error {
	return h.do(func(d Decoder) error { return d.SetRate(rate) })
}
