// Package app is the top-level driver: it owns the startup sequence, the
// single-threaded event loop multiplexing the Wayland connection, the
// control channel and the stats timer, and the graceful shutdown path.
package app

import (
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/YangYuS8/wayvid/internal/config"
	"github.com/YangYuS8/wayvid/internal/control"
	"github.com/YangYuS8/wayvid/internal/decode"
	"github.com/YangYuS8/wayvid/internal/egl"
	"github.com/YangYuS8/wayvid/internal/mpvdec"
	"github.com/YangYuS8/wayvid/internal/output"
	"github.com/YangYuS8/wayvid/internal/source"
	"github.com/YangYuS8/wayvid/internal/surface"
	"github.com/YangYuS8/wayvid/internal/wl"
)

// Exit codes per the control contract.
const (
	ExitOK      = 0
	ExitStartup = 1 /* no wayland, missing layer-shell, unreadable config */
	ExitRuntime = 2 /* compositor connection lost after startup */
)

const statsInterval = 10 * time.Second

// Options configures one daemon run.
type Options struct {
	ConfigPath string
	SocketPath string
	Watch      bool
	Log        zerolog.Logger
}

type app struct {
	opts Options
	log  zerolog.Logger

	cfg  *config.File
	disp *wl.Display
	egld *egl.Display
	reg  *decode.Registry
	mgr  *output.Manager
	srv  *control.Server

	wakeR, wakeW int
	reloadFlag   atomic.Bool
	quitFlag     atomic.Bool
	quit         bool
}

// Run starts the daemon and blocks until shutdown, returning the process
// exit code.
func Run(opts Options) int {
	a := &app{opts: opts, log: opts.Log}

	if code := a.startup(); code != ExitOK {
		a.teardown()
		return code
	}
	defer a.teardown()

	return a.loop()
}

func (a *app) startup() int {
	var err error
	a.cfg, err = config.Load(a.opts.ConfigPath, a.log)
	if err != nil {
		a.log.Error().Err(err).Msg("cannot load configuration")
		return ExitStartup
	}

	a.disp, err = wl.Connect(a.log)
	if err != nil {
		a.log.Error().Err(err).Msg("cannot set up wayland")
		return ExitStartup
	}

	a.egld, err = egl.NewDisplay(a.disp.Native())
	if err != nil {
		a.log.Error().Err(err).Msg("cannot initialize EGL")
		return ExitStartup
	}

	a.reg = decode.NewRegistry(mpvdec.New, a.log)
	a.mgr = output.NewManager(a.disp, a.egld, a.cfg, a.acquireHandle, a.log)

	var pipeFds [2]int
	if err := unix.Pipe2(pipeFds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		a.log.Error().Err(err).Msg("cannot create wake pipe")
		return ExitStartup
	}
	a.wakeR, a.wakeW = pipeFds[0], pipeFds[1]

	sockPath := a.opts.SocketPath
	if sockPath == "" {
		sockPath = a.cfg.Socket
	}
	a.srv, err = control.Listen(control.SocketPath(sockPath), a.wake, a.log)
	if err != nil {
		a.log.Error().Err(err).Msg("cannot open control channel")
		return ExitStartup
	}

	a.watchSignals()
	if a.opts.Watch {
		if err := a.watchConfig(); err != nil {
			a.log.Warn().Err(err).Msg("config watch unavailable")
		}
	}

	if err := a.mgr.Startup(); err != nil {
		a.log.Error().Err(err).Msg("output discovery failed")
		return ExitStartup
	}
	a.log.Info().Int("outputs", len(a.disp.Outputs())).Msg("wayvid started")
	return ExitOK
}

// acquireHandle adapts the registry to the surface package's handle
// interface.
func (a *app) acquireHandle(key source.Key, cfg config.Effective, out decode.OutputInfo) (surface.DecoderHandle, error) {
	h, err := a.reg.Acquire(key, cfg, out)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (a *app) wake() {
	_, _ = unix.Write(a.wakeW, []byte{1})
}

func (a *app) drainWake() {
	var buf [64]byte
	for {
		if _, err := unix.Read(a.wakeR, buf[:]); err != nil {
			return
		}
	}
}

func (a *app) watchSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-ch
		a.log.Info().Str("signal", sig.String()).Msg("shutting down")
		a.quitFlag.Store(true)
		a.wake()
	}()
}

// watchConfig arms fsnotify on the config file's directory (editors replace
// the file, so watching the path itself would go stale) and requests a
// reload on changes.
func (a *app) watchConfig() error {
	if a.opts.ConfigPath == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	target := filepath.Clean(a.opts.ConfigPath)
	if err := w.Add(filepath.Dir(target)); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					a.reloadFlag.Store(true)
					a.wake()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				a.log.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()
	return nil
}

func (a *app) loop() int {
	lastStats := time.Now()

	for !a.quit {
		if a.quitFlag.Load() {
			a.quit = true
			break
		}

		/* control commands take effect between dispatches, never inside
		 * a frame render */
		a.drainCommands()
		if a.reloadFlag.Swap(false) {
			a.doReload()
		}

		a.mgr.RenderDue()

		if time.Since(lastStats) >= statsInterval {
			a.mgr.LogStats()
			lastStats = time.Now()
		}

		if code := a.poll(); code != ExitOK {
			return code
		}
	}

	a.log.Info().Msg("event loop finished")
	return ExitOK
}

// poll flushes outgoing requests and blocks on the multiplexer: Wayland fd,
// wake pipe, or the coarse stats timeout.
func (a *app) poll() int {
	for !a.disp.PrepareRead() {
		if err := a.disp.DispatchPending(); err != nil {
			a.log.Error().Err(err).Msg("wayland dispatch failed")
			return ExitRuntime
		}
	}
	a.disp.Flush()

	fds := []unix.PollFd{
		{Fd: int32(a.disp.Fd()), Events: unix.POLLIN},
		{Fd: int32(a.wakeR), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(fds, int(statsInterval.Milliseconds()))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			a.disp.CancelRead()
			a.log.Error().Err(err).Msg("poll failed")
			return ExitRuntime
		}
		break
	}

	if fds[0].Revents&(unix.POLLERR|unix.POLLHUP) != 0 {
		a.disp.CancelRead()
		a.log.Error().Msg("compositor connection lost")
		return ExitRuntime
	}
	if fds[0].Revents&unix.POLLIN != 0 {
		if err := a.disp.ReadEvents(); err != nil {
			a.log.Error().Err(err).Msg("wayland read failed")
			return ExitRuntime
		}
	} else {
		a.disp.CancelRead()
	}
	if fds[1].Revents&unix.POLLIN != 0 {
		a.drainWake()
	}

	if err := a.disp.DispatchPending(); err != nil {
		a.log.Error().Err(err).Msg("wayland dispatch failed")
		return ExitRuntime
	}
	return ExitOK
}

func (a *app) doReload() {
	cfg, err := config.Load(a.opts.ConfigPath, a.log)
	if err != nil {
		a.log.Warn().Err(err).Msg("reload failed, keeping previous configuration")
		return
	}
	a.cfg = cfg
	a.mgr.Reload(cfg)
}

func (a *app) teardown() {
	if a.mgr != nil {
		a.mgr.LogStats()
		a.mgr.Shutdown()
	}
	if a.srv != nil {
		a.srv.Close()
	}
	if a.wakeR != 0 {
		_ = unix.Close(a.wakeR)
		_ = unix.Close(a.wakeW)
	}
	if a.egld != nil {
		a.egld.Terminate()
	}
	if a.disp != nil {
		a.disp.Disconnect()
	}
	a.log.Info().Msg("shutdown complete")
}
