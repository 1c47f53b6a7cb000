// wayvidctl speaks the daemon's control protocol: one subcommand per
// command, targeting all outputs or a single connector via --output.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/spf13/cobra"

	"github.com/YangYuS8/wayvid/internal/config"
	"github.com/YangYuS8/wayvid/internal/control"
	"github.com/YangYuS8/wayvid/internal/source"
)

var (
	socketPath string
	outputName string
	seqFPS     float64
)

func target() control.Target {
	if outputName == "" {
		return control.Target{}
	}
	return control.Target{Output: &outputName}
}

// call connects (with a short retry in case the daemon is mid-startup),
// runs one request, and fails the command on an error response.
func call(cmd control.Command, params any) (control.Response, error) {
	env, _ := config.LoadEnv()
	path := socketPath
	if path == "" {
		path = env.Socket
	}
	path = control.SocketPath(path)

	var c *control.Client
	err := retry.Do(func() error {
		var derr error
		c, derr = control.Dial(path)
		return derr
	}, retry.Attempts(3), retry.Delay(200*time.Millisecond), retry.LastErrorOnly(true))
	if err != nil {
		return control.Response{}, err
	}
	defer c.Close()

	resp, err := c.Do(cmd, params)
	if err != nil {
		return control.Response{}, err
	}
	if !resp.Success {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}

func simple(use, short string, cmd control.Command) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := call(cmd, target())
			return err
		},
	}
}

// parseSource maps a command-line location onto a source identifier.
func parseSource(arg string) source.Source {
	switch {
	case arg == "-":
		return source.Source{Type: source.TypePipe}
	case strings.HasPrefix(arg, "rtsp://"):
		return source.Source{Type: source.TypeRTSP, URL: arg}
	case strings.Contains(arg, "://"):
		return source.Source{Type: source.TypeURL, URL: arg}
	case strings.ContainsAny(arg, "*?"):
		return source.Source{Type: source.TypeSequence, Path: arg, FPS: seqFPS}
	default:
		return source.Source{Type: source.TypeFile, Path: arg}
	}
}

func main() {
	root := &cobra.Command{
		Use:           "wayvidctl",
		Short:         "Control a running wayvid daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&socketPath, "socket", "", "control socket path")
	root.PersistentFlags().StringVarP(&outputName, "output", "o", "", "target a single output (default: all)")

	root.AddCommand(simple("pause", "Pause playback", control.CmdPause))
	root.AddCommand(simple("resume", "Resume playback", control.CmdResume))
	root.AddCommand(simple("reload", "Re-read the configuration file", control.CmdReload))
	root.AddCommand(simple("quit", "Shut the daemon down", control.CmdQuit))

	seek := &cobra.Command{
		Use:   "seek <seconds>",
		Short: "Seek to an absolute position",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			t, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid position %q", args[0])
			}
			_, err = call(control.CmdSeek, control.SeekParams{Target: target(), TimeSeconds: t})
			return err
		},
	}
	root.AddCommand(seek)

	sw := &cobra.Command{
		Use:   "switch <file|url|rtsp://...|glob|->",
		Short: "Switch the playing source",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			_, err := call(control.CmdSwitchSource, control.SwitchSourceParams{
				Target: target(),
				Source: parseSource(args[0]),
			})
			return err
		},
	}
	sw.Flags().Float64Var(&seqFPS, "fps", 25, "frame rate for image-sequence sources")
	root.AddCommand(sw)

	volume := &cobra.Command{
		Use:   "volume <0..1>",
		Short: "Set playback volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid volume %q", args[0])
			}
			_, err = call(control.CmdSetVolume, control.VolumeParams{Target: target(), Volume: v})
			return err
		},
	}
	root.AddCommand(volume)

	mute := &cobra.Command{
		Use:   "mute <on|off>",
		Short: "Mute or unmute audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			m, err := strconv.ParseBool(map[string]string{"on": "true", "off": "false"}[args[0]])
			if err != nil {
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
			_, err = call(control.CmdSetMute, control.MuteParams{Target: target(), Mute: m})
			return err
		},
	}
	root.AddCommand(mute)

	rate := &cobra.Command{
		Use:   "rate <0.1..10>",
		Short: "Set playback rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			r, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid rate %q", args[0])
			}
			_, err = call(control.CmdSetRate, control.RateParams{Target: target(), Rate: r})
			return err
		},
	}
	root.AddCommand(rate)

	lay := &cobra.Command{
		Use:   "layout <fill|contain|stretch|cover|centre>",
		Short: "Set the layout mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			_, err := call(control.CmdSetLayout, map[string]any{
				"output": target().Output,
				"layout": args[0],
			})
			return err
		},
	}
	root.AddCommand(lay)

	status := &cobra.Command{
		Use:   "status",
		Short: "Show per-output playback status",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			resp, err := call(control.CmdGetStatus, nil)
			if err != nil {
				return err
			}
			var outputs []control.OutputStatus
			if err := json.Unmarshal(resp.Data, &outputs); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}
			printStatus(outputs)
			return nil
		},
	}
	root.AddCommand(status)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wayvidctl: %v\n", err)
		os.Exit(1)
	}
}

func printStatus(outputs []control.OutputStatus) {
	if len(outputs) == 0 {
		fmt.Println("no outputs")
		return
	}
	for _, o := range outputs {
		fmt.Printf("%s  %dx%d@%dx  %s  layout=%s\n",
			o.Name, o.Width, o.Height, o.Scale, o.Source.Location(), o.Layout)
		fmt.Printf("  rendered=%d skipped=%d load=%.2f consumers=%d frames=%d",
			o.Renderer.Rendered, o.Renderer.Skipped, o.Renderer.Load,
			o.Decoder.Consumers, o.Decoder.DecodedFrames)
		if o.Renderer.SkipMode {
			fmt.Printf(" [skip mode]")
		}
		fmt.Println()
		if o.LastError != "" {
			fmt.Printf("  last error: %s\n", o.LastError)
		}
	}
}
