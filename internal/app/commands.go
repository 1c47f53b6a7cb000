package app

import (
	"encoding/json"
	"strings"

	"github.com/YangYuS8/wayvid/internal/control"
	"github.com/YangYuS8/wayvid/internal/layout"
	"github.com/YangYuS8/wayvid/internal/surface"
)

// drainCommands applies every queued control request. Runs between event
// dispatches so commands never interleave with a frame render.
func (a *app) drainCommands() {
	for {
		select {
		case p := <-a.srv.Pending():
			p.Reply(a.dispatch(p.Req))
		default:
			return
		}
	}
}

func decodeParams[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}

// dispatch executes one control request. Protocol errors come back as
// in-band failures; the daemon itself never goes down over a request.
func (a *app) dispatch(req control.Request) (resp control.Response) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Any("panic", r).Str("command", string(req.Command)).Msg("command handler panicked")
			resp = control.Fail("internal error handling %s", req.Command)
		}
	}()

	switch req.Command {
	case control.CmdPause, control.CmdResume:
		params, err := decodeParams[control.Target](req.Params)
		if err != nil {
			return control.Fail("bad params: %v", err)
		}
		paused := req.Command == control.CmdPause
		return a.eachActive(params, func(s *surface.Surface) error { return s.SetPaused(paused) })

	case control.CmdSeek:
		params, err := decodeParams[control.SeekParams](req.Params)
		if err != nil {
			return control.Fail("bad params: %v", err)
		}
		return a.eachActive(params.Target, func(s *surface.Surface) error { return s.Seek(params.TimeSeconds) })

	case control.CmdSwitchSource:
		params, err := decodeParams[control.SwitchSourceParams](req.Params)
		if err != nil {
			return control.Fail("bad params: %v", err)
		}
		return a.each(params.Target, func(s *surface.Surface) error { return s.SwitchSource(params.Source) })

	case control.CmdSetVolume:
		params, err := decodeParams[control.VolumeParams](req.Params)
		if err != nil {
			return control.Fail("bad params: %v", err)
		}
		if params.Volume < 0 || params.Volume > 1 {
			return control.Fail("volume %g out of range [0,1]", params.Volume)
		}
		return a.each(params.Target, func(s *surface.Surface) error { return s.SetVolume(params.Volume) })

	case control.CmdSetMute:
		params, err := decodeParams[control.MuteParams](req.Params)
		if err != nil {
			return control.Fail("bad params: %v", err)
		}
		return a.each(params.Target, func(s *surface.Surface) error { return s.SetMuted(params.Mute) })

	case control.CmdSetRate:
		params, err := decodeParams[control.RateParams](req.Params)
		if err != nil {
			return control.Fail("bad params: %v", err)
		}
		if params.Rate < 0.1 || params.Rate > 10 {
			return control.Fail("rate %g out of range [0.1,10]", params.Rate)
		}
		return a.each(params.Target, func(s *surface.Surface) error { return s.SetRate(params.Rate) })

	case control.CmdSetLayout:
		params, err := decodeParams[control.LayoutParams](req.Params)
		if err != nil {
			return control.Fail("bad params: %v", err)
		}
		mode := layout.Mode(strings.ToLower(string(params.Layout)))
		if !mode.Valid() {
			return control.Fail("unknown layout %q", params.Layout)
		}
		return a.each(params.Target, func(s *surface.Surface) error {
			s.SetLayout(mode)
			return nil
		})

	case control.CmdGetStatus:
		return control.OK(a.mgr.Status())

	case control.CmdReload:
		a.doReload()
		return control.OK(nil)

	case control.CmdQuit:
		a.quit = true
		return control.OK(nil)

	default:
		return control.Fail("unknown command %q", req.Command)
	}
}

// each applies fn across the targeted surfaces.
func (a *app) each(target control.Target, fn func(*surface.Surface) error) control.Response {
	if err := a.mgr.ForEach(target, fn); err != nil {
		return control.Fail("%v", err)
	}
	return control.OK(nil)
}

// eachActive is each for commands that need a live decoder (pause, seek).
// Broadcasts skip idle surfaces; naming an idle output explicitly is an
// error the caller sees.
func (a *app) eachActive(target control.Target, fn func(*surface.Surface) error) control.Response {
	return a.each(target, func(s *surface.Surface) error {
		if target.Output == nil && s.Handle() == nil {
			return nil
		}
		return fn(s)
	})
}
