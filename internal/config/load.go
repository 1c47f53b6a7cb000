package config

import (
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/YangYuS8/wayvid/internal/errdefs"
)

// Env carries the environment overrides recognized by both binaries.
type Env struct {
	Config   string `envconfig:"WAYVID_CONFIG"`
	Socket   string `envconfig:"WAYVID_SOCKET"`
	LogLevel string `envconfig:"WAYVID_LOG_LEVEL"`
}

// LoadEnv reads the WAYVID_* environment variables.
func LoadEnv() (Env, error) {
	var e Env
	if err := envconfig.Process("", &e); err != nil {
		return Env{}, errdefs.Wrap(errdefs.Config, err, "environment")
	}
	return e, nil
}

// Load parses the YAML configuration at path on top of the defaults and
// validates it. An empty path returns the validated defaults.
func Load(path string, log zerolog.Logger) (*File, error) {
	f := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errdefs.Wrap(errdefs.Config, err, "read %s", path)
		}
		if err := yaml.Unmarshal(raw, f); err != nil {
			return nil, errdefs.Wrap(errdefs.Config, err, "parse %s", path)
		}
	}
	if err := f.ValidateAndClamp(log); err != nil {
		return nil, err
	}
	return f, nil
}
