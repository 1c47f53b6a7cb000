package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/YangYuS8/wayvid/internal/app"
	"github.com/YangYuS8/wayvid/internal/config"
)

func main() {
	var (
		configPath string
		socketPath string
		logLevel   string
		watch      bool
	)

	root := &cobra.Command{
		Use:           "wayvid",
		Short:         "Dynamic video wallpaper daemon for wlroots compositors",
		Long:          "wayvid renders video wallpapers onto layer-shell background surfaces,\nsharing one decoder between outputs that play the same source.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.LoadEnv()
			if err != nil {
				return err
			}
			if configPath == "" {
				configPath = env.Config
			}
			if socketPath == "" {
				socketPath = env.Socket
			}
			if !cmd.Flags().Changed("log-level") && env.LogLevel != "" {
				logLevel = env.LogLevel
			}

			log := newLogger(logLevel)
			os.Exit(app.Run(app.Options{
				ConfigPath: configPath,
				SocketPath: socketPath,
				Watch:      watch,
				Log:        log,
			}))
			return nil
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "configuration file (YAML)")
	root.Flags().StringVar(&socketPath, "socket", "", "control socket path (default $XDG_RUNTIME_DIR/wayvid.sock)")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	root.Flags().BoolVar(&watch, "watch", false, "reload automatically when the config file changes")

	if err := root.Execute(); err != nil {
		newLogger("info").Error().Err(err).Msg("startup failed")
		os.Exit(app.ExitStartup)
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(lvl).
		With().Timestamp().Logger()
}
