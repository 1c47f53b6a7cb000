// Package control implements the local control channel: a unix stream
// socket speaking newline-framed JSON requests and responses. The server
// never touches Wayland, GL or decoders; it queues commands for the main
// loop and relays the responses.
package control

import (
	"encoding/json"
	"fmt"

	"github.com/YangYuS8/wayvid/internal/layout"
	"github.com/YangYuS8/wayvid/internal/source"
	"github.com/YangYuS8/wayvid/internal/timing"
)

// Command tags a control request.
type Command string

const (
	CmdPause        Command = "Pause"
	CmdResume       Command = "Resume"
	CmdSeek         Command = "Seek"
	CmdSwitchSource Command = "SwitchSource"
	CmdSetVolume    Command = "SetVolume"
	CmdSetMute      Command = "SetMute"
	CmdSetRate      Command = "SetRate"
	CmdSetLayout    Command = "SetLayout"
	CmdGetStatus    Command = "GetStatus"
	CmdReload       Command = "Reload"
	CmdQuit         Command = "Quit"
)

// Request is one wire request. Params stays raw until the command handler
// knows which shape to decode.
type Request struct {
	Command Command         `json:"command"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is the wire response for every command.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// OK builds a success response carrying data (nil for commands with no
// payload).
func OK(data any) Response {
	if data == nil {
		return Response{Success: true}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Fail("encode response: %v", err)
	}
	return Response{Success: true, Data: raw}
}

// Fail builds an error response.
func Fail(format string, args ...any) Response {
	return Response{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Target selects which outputs a command applies to. A nil Output means all.
type Target struct {
	Output *string `json:"output"`
}

// Matches reports whether the target includes the named output.
func (t Target) Matches(name string) bool {
	return t.Output == nil || *t.Output == name
}

// SeekParams positions playback.
type SeekParams struct {
	Target
	TimeSeconds float64 `json:"time_seconds"`
}

// SwitchSourceParams replaces the source on matching outputs.
type SwitchSourceParams struct {
	Target
	Source source.Source `json:"source"`
}

// VolumeParams adjusts volume.
type VolumeParams struct {
	Target
	Volume float64 `json:"volume"`
}

// MuteParams toggles mute.
type MuteParams struct {
	Target
	Mute bool `json:"mute"`
}

// RateParams adjusts playback rate.
type RateParams struct {
	Target
	Rate float64 `json:"rate"`
}

// LayoutParams changes the layout mode.
type LayoutParams struct {
	Target
	Layout layout.Mode `json:"layout"`
}

// DecoderStatus summarizes the shared decoder behind one output.
type DecoderStatus struct {
	Consumers     int    `json:"consumers"`
	DecodedFrames uint64 `json:"decoded_frames"`
}

// OutputStatus is one record in the GetStatus response.
type OutputStatus struct {
	Name      string        `json:"name"`
	Width     uint32        `json:"width"`
	Height    uint32        `json:"height"`
	Scale     int32         `json:"scale"`
	Source    source.Source `json:"source"`
	Layout    layout.Mode   `json:"layout"`
	MaxFPS    int           `json:"max_fps"`
	Renderer  timing.Stats  `json:"renderer"`
	LastError string        `json:"last_error,omitempty"`
	Decoder   DecoderStatus `json:"decoder"`
}
