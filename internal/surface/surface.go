// Package surface drives one background surface per output from creation
// to teardown: lazy GL and decoder acquisition on the first scheduled
// frame, a frame-callback-paced render loop with layout caching and frame
// skipping, and deactivation that releases the shared decoder while keeping
// the cheap window resources.
package surface

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/YangYuS8/wayvid/internal/config"
	"github.com/YangYuS8/wayvid/internal/control"
	"github.com/YangYuS8/wayvid/internal/decode"
	"github.com/YangYuS8/wayvid/internal/errdefs"
	"github.com/YangYuS8/wayvid/internal/layout"
	"github.com/YangYuS8/wayvid/internal/source"
	"github.com/YangYuS8/wayvid/internal/timing"
)

// State is the surface lifecycle position.
type State int

const (
	StateCreated State = iota
	StateConfigured
	StateInitialized
	StateRendering
	StateInactive
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConfigured:
		return "configured"
	case StateInitialized:
		return "initialized"
	case StateRendering:
		return "rendering"
	case StateInactive:
		return "inactive"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Backend is the window-system and GL side of one surface. The production
// implementation glues wl.Surface, an EGL context and the GL entry points;
// tests substitute fakes.
type Backend interface {
	// CreateGL builds the native window, EGL surface and context at the
	// configured pixel size and leaves the context current.
	CreateGL(width, height uint32) error
	// ResizeGL applies a configure-resize before the next render.
	ResizeGL(width, height uint32)
	MakeCurrent() error
	// GetProcAddress is the loader handed to the decoder's render init.
	GetProcAddress(name string) uintptr
	Viewport(r layout.Rect)
	Clear(c config.Color)
	// SwapBuffers presents and, on Wayland, commits the surface.
	SwapBuffers() error
	// RequestFrame registers a frame callback; latched by the next
	// commit or swap.
	RequestFrame()
	// Commit commits surface state without attaching a buffer.
	Commit()
	Destroy()
}

// DecoderHandle is the slice of decode.Handle the surface consumes.
// *decode.Handle satisfies it.
type DecoderHandle interface {
	Key() source.Key
	InitRenderContext(getProcAddress func(name string) uintptr) error
	Dimensions() (uint32, uint32, bool)
	Render(width, height, fbo int) error
	Release()
	Frames() uint64
	Consumers() int
	SetPaused(bool) error
	Seek(float64) error
	SetVolume(float64) error
	SetMuted(bool) error
	SetRate(float64) error
}

// AcquireFunc obtains a shared decoder handle for a source key.
type AcquireFunc func(key source.Key, cfg config.Effective, out decode.OutputInfo) (DecoderHandle, error)

// Surface is one per-output background surface.
type Surface struct {
	name string
	out  decode.OutputInfo
	cfg  config.Effective
	bg   config.Color

	backend Backend
	acquire AcquireFunc
	handle  DecoderHandle
	gov     *timing.Governor
	cache   layout.Cache

	state  State
	active bool

	width, height uint32
	resizePending bool
	glCreated     bool

	frameDue bool
	backoff  bool
	lastErr  string

	log zerolog.Logger
}

// New builds a surface in the Created state. Nothing expensive happens
// until the first scheduled frame after the first configure.
func New(out decode.OutputInfo, cfg config.Effective, bg config.Color,
	backend Backend, acquire AcquireFunc, log zerolog.Logger) *Surface {

	slog := log.With().Str("output", out.Name).Logger()
	return &Surface{
		name:    out.Name,
		out:     out,
		cfg:     cfg,
		bg:      bg,
		backend: backend,
		acquire: acquire,
		gov:     timing.New(cfg.MaxFPS, slog),
		state:   StateCreated,
		active:  true,
		log:     slog,
	}
}

// Name returns the frozen connector name.
func (s *Surface) Name() string {
	return s.name
}

// State returns the current lifecycle state.
func (s *Surface) State() State {
	return s.state
}

// Governor exposes the frame-timing governor for periodic reporting.
func (s *Surface) Governor() *timing.Governor {
	return s.gov
}

// Configure records compositor-assigned dimensions. The first configure
// moves Created to Configured and schedules the first render; later ones
// only update the size and invalidate the layout cache.
func (s *Surface) Configure(width, height uint32) {
	if s.state == StateDestroyed {
		return
	}
	if width == 0 || height == 0 {
		width = uint32(s.out.Width)
		height = uint32(s.out.Height)
	}
	if s.state == StateCreated {
		s.width, s.height = width, height
		s.state = StateConfigured
		s.frameDue = true
		s.log.Debug().Uint32("width", width).Uint32("height", height).Msg("surface configured")
		return
	}
	if width != s.width || height != s.height {
		s.width, s.height = width, height
		s.resizePending = true
		s.cache.Invalidate()
		s.log.Debug().Uint32("width", width).Uint32("height", height).Msg("surface resized")
	}
}

// FrameDue marks that the compositor delivered a frame callback. Wired to
// the backend's frame event; the event loop renders between dispatches.
func (s *Surface) FrameDue() {
	s.frameDue = true
}

// RenderIfDue runs one render cycle when a frame callback has fired (or
// the first render is pending). Returns without touching GL when nothing
// is due.
func (s *Surface) RenderIfDue() {
	if !s.frameDue || s.state == StateDestroyed || s.state == StateCreated {
		return
	}
	s.frameDue = false
	if !s.active {
		return
	}
	s.render()
}

func (s *Surface) render() {
	/* one idle cycle after a failure before re-acquisition */
	if s.backoff {
		s.backoff = false
		s.scheduleNext()
		return
	}

	if s.handle == nil || s.state == StateConfigured || s.state == StateInactive {
		if err := s.initialize(); err != nil {
			s.fail("initialize", err)
			return
		}
	}

	if s.gov.ShouldSkip() {
		s.scheduleNext()
		return
	}

	start := time.Now()
	if err := s.backend.MakeCurrent(); err != nil {
		s.fail("make current", err)
		return
	}
	if s.resizePending {
		s.backend.ResizeGL(s.width, s.height)
		s.resizePending = false
	}

	sw, sh, ok := s.handle.Dimensions()
	if !ok {
		sw, sh = s.width, s.height
	}
	rect := s.cache.Get(layout.Key{SW: sw, SH: sh, DW: s.width, DH: s.height, Mode: s.cfg.Layout})

	s.backend.Clear(s.bg)
	s.backend.Viewport(rect)
	if err := s.handle.Render(int(s.width), int(s.height), 0); err != nil {
		s.fail("render", err)
		return
	}
	s.gov.RecordRender(time.Since(start))

	/* the callback must be registered before the swap commits */
	s.backend.RequestFrame()
	if err := s.backend.SwapBuffers(); err != nil {
		s.fail("swap", err)
		return
	}
	s.state = StateRendering
	s.lastErr = ""
}

// initialize performs the lazy first-render setup: GL window surface,
// shared decoder handle, decoder render context.
func (s *Surface) initialize() error {
	if !s.glCreated {
		if err := s.backend.CreateGL(s.width, s.height); err != nil {
			return err
		}
		s.glCreated = true
	}
	if err := s.backend.MakeCurrent(); err != nil {
		return err
	}
	if s.handle == nil {
		key, err := s.cfg.Key()
		if err != nil {
			return err
		}
		h, err := s.acquire(key, s.cfg, s.out)
		if err != nil {
			return err
		}
		if err := h.InitRenderContext(s.backend.GetProcAddress); err != nil {
			h.Release()
			return err
		}
		s.handle = h
	}
	s.state = StateInitialized
	s.cache.Invalidate()
	return nil
}

// fail logs a recoverable render-path error, releases the decoder and
// demotes the surface to Inactive for one render cycle. The surface stays
// alive; GetStatus reports the error until a render succeeds.
func (s *Surface) fail(stage string, err error) {
	s.log.Warn().Err(err).
		Str("stage", stage).
		Str("source", s.cfg.Source.Location()).
		Msg("surface error, backing off one cycle")
	s.lastErr = err.Error()
	s.releaseHandle()
	s.state = StateInactive
	s.backoff = true
	s.scheduleNext()
}

// scheduleNext arms the next frame callback without drawing.
func (s *Surface) scheduleNext() {
	s.backend.RequestFrame()
	s.backend.Commit()
}

func (s *Surface) releaseHandle() {
	if s.handle != nil {
		s.handle.Release()
		s.handle = nil
	}
}

// SetActive deactivates or reactivates the surface. Deactivation releases
// the decoder handle (destroying the decoder if this was the last
// consumer) but keeps the lightweight GL surface; reactivation re-acquires
// lazily on the next render.
func (s *Surface) SetActive(active bool) {
	if s.state == StateDestroyed || s.active == active {
		return
	}
	s.active = active
	if !active {
		s.releaseHandle()
		if s.state != StateCreated && s.state != StateConfigured {
			s.state = StateInactive
		}
		return
	}
	s.kick()
}

// kick schedules a render for a surface that may have gone idle.
func (s *Surface) kick() {
	if s.state == StateCreated || s.state == StateDestroyed {
		return
	}
	s.frameDue = true
	s.scheduleNext()
}

// ApplyConfig installs a new effective configuration, re-acquiring the
// decoder only when the source key changed. Everything else is applied in
// place.
func (s *Surface) ApplyConfig(cfg config.Effective, bg config.Color) {
	if s.state == StateDestroyed {
		return
	}
	oldKey, oldErr := s.cfg.Key()
	newKey, newErr := cfg.Key()

	s.bg = bg
	prev := s.cfg
	s.cfg = cfg
	s.gov.SetMaxFPS(cfg.MaxFPS)

	if newErr != nil || oldErr != nil || oldKey != newKey {
		/* old handle dropped now; the next render acquires the new one,
		 * possibly destroying the previous decoder */
		s.releaseHandle()
		if s.state == StateInitialized || s.state == StateRendering {
			s.state = StateInactive
		}
		s.cache.Invalidate()
		s.kick()
		return
	}

	if prev.Layout != cfg.Layout {
		s.cache.Invalidate()
	}
	if s.handle != nil {
		if prev.Volume != cfg.Volume {
			if err := s.handle.SetVolume(cfg.Volume); err != nil {
				s.log.Warn().Err(err).Msg("set volume failed")
			}
		}
		if prev.Params.Rate != cfg.Params.Rate {
			if err := s.handle.SetRate(cfg.Params.Rate); err != nil {
				s.log.Warn().Err(err).Msg("set rate failed")
			}
		}
		if prev.Params.Mute != cfg.Params.Mute {
			if err := s.handle.SetMuted(cfg.Params.Mute); err != nil {
				s.log.Warn().Err(err).Msg("set mute failed")
			}
		}
	}
	s.kick()
}

// Config returns the surface's current effective configuration.
func (s *Surface) Config() config.Effective {
	return s.cfg
}

// Handle returns the current decoder handle, nil while uninitialized or
// inactive.
func (s *Surface) Handle() DecoderHandle {
	return s.handle
}

// SetLayout switches the layout mode and invalidates the cached viewport.
func (s *Surface) SetLayout(mode layout.Mode) {
	if s.cfg.Layout == mode {
		return
	}
	s.cfg.Layout = mode
	s.cache.Invalidate()
	s.kick()
}

// SwitchSource replaces the source, dropping the old handle. The next
// render acquires against the registry, reusing an existing decoder when
// the key matches one already live.
func (s *Surface) SwitchSource(src source.Source) error {
	if err := src.Validate(); err != nil {
		return err
	}
	cfg := s.cfg
	cfg.Source = src
	s.releaseHandle()
	if s.state == StateInitialized || s.state == StateRendering {
		s.state = StateInactive
	}
	s.cfg = cfg
	s.cache.Invalidate()
	s.lastErr = ""
	s.kick()
	return nil
}

// withHandle runs fn on the decoder handle, failing when the surface has
// none (not yet initialized, deactivated, or backing off after an error).
func (s *Surface) withHandle(fn func(DecoderHandle) error) error {
	if s.handle == nil {
		return errdefs.New(errdefs.Decoder, "output %s has no active decoder", s.name)
	}
	return fn(s.handle)
}

// SetPaused pauses or resumes playback on the shared decoder.
func (s *Surface) SetPaused(paused bool) error {
	return s.withHandle(func(h DecoderHandle) error { return h.SetPaused(paused) })
}

// Seek sets the playback position; the decoder's own response for
// non-seekable sources is surfaced unchanged.
func (s *Surface) Seek(seconds float64) error {
	return s.withHandle(func(h DecoderHandle) error { return h.Seek(seconds) })
}

// SetVolume updates the effective volume and applies it when a decoder is
// live.
func (s *Surface) SetVolume(volume float64) error {
	s.cfg.Volume = volume
	if s.handle == nil {
		return nil
	}
	return s.handle.SetVolume(volume)
}

// SetMuted updates the mute flag and applies it when a decoder is live.
func (s *Surface) SetMuted(muted bool) error {
	s.cfg.Params.Mute = muted
	if s.handle == nil {
		return nil
	}
	return s.handle.SetMuted(muted)
}

// SetRate updates the playback rate and applies it when a decoder is live.
func (s *Surface) SetRate(rate float64) error {
	s.cfg.Params.Rate = rate
	if s.handle == nil {
		return nil
	}
	return s.handle.SetRate(rate)
}

// Status builds the control-channel record for this surface.
func (s *Surface) Status() control.OutputStatus {
	st := control.OutputStatus{
		Name:      s.name,
		Width:     s.width,
		Height:    s.height,
		Scale:     s.out.Scale,
		Source:    s.cfg.Source,
		Layout:    s.cfg.Layout,
		MaxFPS:    s.cfg.MaxFPS,
		Renderer:  s.gov.Snapshot(),
		LastError: s.lastErr,
	}
	if s.handle != nil {
		st.Decoder = control.DecoderStatus{
			Consumers:     s.handle.Consumers(),
			DecodedFrames: s.handle.Frames(),
		}
	}
	return st
}

// Destroy releases everything: decoder handle first, then the window and
// GL resources. Terminal.
func (s *Surface) Destroy() {
	if s.state == StateDestroyed {
		return
	}
	s.releaseHandle()
	s.backend.Destroy()
	s.state = StateDestroyed
	s.log.Debug().Msg("surface destroyed")
}
