// Package config holds runtime tuning for the instruction VM and default
// device selection, with an optional TOML overlay on top of the defaults.
package config

import (
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// VMConfig tunes the instruction virtual machine.
type VMConfig struct {
	// Workers is the number of executor goroutines.
	Workers int `toml:"workers"`
	// SubmitQueueDepth is the in-flight instruction watermark above which
	// the executor logs a backlog warning. Submission itself never blocks.
	SubmitQueueDepth int `toml:"submit_queue_depth"`
}

// Config is the full runtime configuration.
type Config struct {
	VM            VMConfig `toml:"vm"`
	DefaultDevice string   `toml:"default_device"`
	ProcessRank   int      `toml:"process_rank"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		VM: VMConfig{
			Workers:          runtime.NumCPU(),
			SubmitQueueDepth: 256,
		},
		DefaultDevice: "cpu",
		ProcessRank:   0,
	}
}

// Load reads a TOML file and overlays the defined keys onto Default().
func Load(path string) (Config, error) {
	cfg := Default()

	var raw Config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, errors.Wrapf(err, "load runtime config %s", path)
	}

	if meta.IsDefined("vm", "workers") {
		cfg.VM.Workers = raw.VM.Workers
	}
	if meta.IsDefined("vm", "submit_queue_depth") {
		cfg.VM.SubmitQueueDepth = raw.VM.SubmitQueueDepth
	}
	if meta.IsDefined("default_device") {
		cfg.DefaultDevice = strings.ToLower(strings.TrimSpace(raw.DefaultDevice))
	}
	if meta.IsDefined("process_rank") {
		cfg.ProcessRank = raw.ProcessRank
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot run.
func (c Config) Validate() error {
	if c.VM.Workers < 1 {
		return errors.Errorf("vm.workers must be >= 1, got %d", c.VM.Workers)
	}
	if c.VM.SubmitQueueDepth < 1 {
		return errors.Errorf("vm.submit_queue_depth must be >= 1, got %d", c.VM.SubmitQueueDepth)
	}
	if c.ProcessRank < 0 {
		return errors.Errorf("process_rank must be >= 0, got %d", c.ProcessRank)
	}
	switch c.DefaultDevice {
	case "cpu", "cuda", "vulkan", "metal", "webgpu":
	default:
		return errors.Errorf("unknown default_device %q", c.DefaultDevice)
	}
	return nil
}
