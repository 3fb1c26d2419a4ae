// Package config loads the host application's configuration file: frame
// pacing, logging and the Lua scripts to load at startup. Callback
// configuration is deliberately not persisted; scripts re-register their
// callbacks on every start.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Config errors.
var (
	// ErrInvalidConfig indicates the configuration file is not valid JSON.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds the host application settings.
type Config struct {
	// TargetFPS caps the frame rate; zero disables the limiter.
	TargetFPS float64

	// VSync reports an external sync mechanism, disabling the limiter.
	VSync bool

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// Scripts are Lua files loaded at startup.
	Scripts []string
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		TargetFPS: 60,
		LogLevel:  "info",
	}
}

// Load reads a JSON configuration file, filling absent fields from
// Default. A missing file is not an error: Load returns Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if !gjson.ValidBytes(data) {
		return cfg, fmt.Errorf("%w: %s is not valid JSON", ErrInvalidConfig, path)
	}

	if v := gjson.GetBytes(data, "fps"); v.Exists() {
		cfg.TargetFPS = v.Float()
	}
	if v := gjson.GetBytes(data, "vsync"); v.Exists() {
		cfg.VSync = v.Bool()
	}
	if v := gjson.GetBytes(data, "log_level"); v.Exists() {
		cfg.LogLevel = v.String()
	}
	if v := gjson.GetBytes(data, "scripts"); v.IsArray() {
		for _, s := range v.Array() {
			cfg.Scripts = append(cfg.Scripts, s.String())
		}
	}

	if cfg.TargetFPS < 0 {
		return cfg, fmt.Errorf("%w: fps must not be negative", ErrInvalidConfig)
	}

	return cfg, nil
}

// WriteFile writes the configuration as JSON, creating or replacing the
// file at path.
func (c Config) WriteFile(path string) error {
	data := []byte("{}")

	var err error
	if data, err = sjson.SetBytes(data, "fps", c.TargetFPS); err != nil {
		return err
	}
	if data, err = sjson.SetBytes(data, "vsync", c.VSync); err != nil {
		return err
	}
	if data, err = sjson.SetBytes(data, "log_level", c.LogLevel); err != nil {
		return err
	}
	scripts := c.Scripts
	if scripts == nil {
		scripts = []string{}
	}
	if data, err = sjson.SetBytes(data, "scripts", scripts); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
