// Package output ties the compositor's output lifecycle to surfaces: it
// waits for each output's mode and connector name, creates a background
// surface per output, tears surfaces down on hot-unplug and fans control
// mutations out to the matching surfaces.
package output

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/YangYuS8/wayvid/internal/config"
	"github.com/YangYuS8/wayvid/internal/control"
	"github.com/YangYuS8/wayvid/internal/decode"
	"github.com/YangYuS8/wayvid/internal/egl"
	"github.com/YangYuS8/wayvid/internal/errdefs"
	"github.com/YangYuS8/wayvid/internal/surface"
	"github.com/YangYuS8/wayvid/internal/wl"
)

// Manager owns every per-output surface. Main-thread only.
type Manager struct {
	disp    *wl.Display
	egld    *egl.Display
	cfg     *config.File
	bg      config.Color
	acquire surface.AcquireFunc

	surfaces map[uint32]*surface.Surface /* by wl registry name */

	log zerolog.Logger
}

// NewManager wires output callbacks on the display. Surfaces appear once
// Startup ran and whenever outputs hot-plug afterwards.
func NewManager(disp *wl.Display, egld *egl.Display, cfg *config.File,
	acquire surface.AcquireFunc, log zerolog.Logger) *Manager {

	m := &Manager{
		disp:     disp,
		egld:     egld,
		cfg:      cfg,
		bg:       backgroundColor(cfg, log),
		acquire:  acquire,
		surfaces: make(map[uint32]*surface.Surface),
		log:      log,
	}
	disp.OnOutputReady = m.onOutputReady
	disp.OnOutputRemoved = m.onOutputRemoved
	return m
}

func backgroundColor(cfg *config.File, log zerolog.Logger) config.Color {
	c, err := config.ParseColor(cfg.Background)
	if err != nil {
		log.Warn().Str("background", cfg.Background).Msg("invalid background color, using black")
		return config.Color{0, 0, 0, 1}
	}
	return c
}

// Startup completes output discovery: one round-trip for modes and
// connector names, then surface creation for everything present.
func (m *Manager) Startup() error {
	return m.disp.SyncOutputs()
}

// onOutputReady creates the surface once the connector name is frozen.
func (m *Manager) onOutputReady(o *wl.Output) {
	if _, ok := m.surfaces[o.RegistryName]; ok {
		return
	}
	eff := m.cfg.Resolve(o.Name)
	if eff.Source.Type == "" {
		m.log.Warn().Str("output", o.Name).Msg("no source configured for output")
	}

	wls, err := m.disp.CreateLayerSurface(o, "wayvid")
	if err != nil {
		/* an unusable output is skipped, the rest keep running */
		m.log.Warn().Err(err).Str("output", o.Name).Msg("cannot create layer surface, skipping output")
		return
	}

	info := decode.DefaultOutputInfo(o.Name, uint32(o.Width), uint32(o.Height), o.Scale)
	s := surface.New(info, eff, m.bg, surface.NewWaylandBackend(wls, m.egld), m.acquire, m.log)

	name := o.RegistryName
	wls.OnConfigure = s.Configure
	wls.OnFrame = s.FrameDue
	wls.OnClosed = func() { m.destroySurface(name) }
	m.surfaces[name] = s

	m.log.Info().
		Str("output", o.Name).
		Int32("width", o.Width).
		Int32("height", o.Height).
		Str("source", eff.Source.Location()).
		Msg("surface created")
}

func (m *Manager) onOutputRemoved(o *wl.Output) {
	m.log.Info().Str("output", o.Name).Msg("output removed")
	m.destroySurface(o.RegistryName)
}

func (m *Manager) destroySurface(registryName uint32) {
	s, ok := m.surfaces[registryName]
	if !ok {
		return
	}
	delete(m.surfaces, registryName)
	s.Destroy()
}

// RenderDue runs one render cycle on every surface whose frame callback
// fired since the last pass.
func (m *Manager) RenderDue() {
	for _, s := range m.surfaces {
		s.RenderIfDue()
	}
}

// ForEach applies fn to every surface the target selects. Naming an
// unknown output is an error.
func (m *Manager) ForEach(target control.Target, fn func(*surface.Surface) error) error {
	matched := false
	for _, s := range m.surfaces {
		if !target.Matches(s.Name()) {
			continue
		}
		matched = true
		if err := fn(s); err != nil {
			return err
		}
	}
	if !matched && target.Output != nil {
		return errdefs.New(errdefs.Protocol, "no such output: %s", *target.Output)
	}
	return nil
}

// Status snapshots every surface for the control channel, ordered by name.
func (m *Manager) Status() []control.OutputStatus {
	out := make([]control.OutputStatus, 0, len(m.surfaces))
	for _, s := range m.surfaces {
		out = append(out, s.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reload installs a freshly-loaded configuration. Surfaces whose effective
// source key changed re-acquire their decoder; the rest apply changed
// fields in place.
func (m *Manager) Reload(cfg *config.File) {
	m.cfg = cfg
	m.bg = backgroundColor(cfg, m.log)
	for _, s := range m.surfaces {
		s.ApplyConfig(cfg.Resolve(s.Name()), m.bg)
	}
	m.log.Info().Int("surfaces", len(m.surfaces)).Msg("configuration reloaded")
}

// LogStats emits the periodic per-surface frame statistics.
func (m *Manager) LogStats() {
	for _, s := range m.surfaces {
		s.Governor().LogReport()
	}
}

// Shutdown destroys every surface, dropping decoder handles and thereby
// decoders as refcounts hit zero.
func (m *Manager) Shutdown() {
	for name, s := range m.surfaces {
		delete(m.surfaces, name)
		s.Destroy()
	}
}
