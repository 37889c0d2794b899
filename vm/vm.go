// Copyright 2026 Eddy ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package vm provides the public API of the Eddy instruction executor.
//
// The executor runs every storage-touching operation asynchronously.
// Instructions that share a storage token retire in issue order;
// independent instructions run concurrently across the worker pool.
package vm

import (
	"sync"

	"github.com/eddy-ml/eddy/internal/alloc"
	"github.com/eddy-ml/eddy/internal/config"
	"github.com/eddy-ml/eddy/internal/device"
	"github.com/eddy-ml/eddy/internal/vm"
)

// VM is the asynchronous instruction executor.
type VM = vm.VM

// Token orders all instructions touching one storage.
type Token = vm.Token

// Buffer is a backing memory region on some device.
type Buffer = vm.Buffer

// Instruction is one unit of executor work.
type Instruction = vm.Instruction

// ExecutionFailure wraps the error of a failed instruction.
type ExecutionFailure = vm.ExecutionFailure

// Option configures an executor.
type Option = vm.Option

// ErrShutdown is returned by operations on a stopped executor.
var ErrShutdown = vm.ErrShutdown

// Config is the runtime configuration.
type Config = config.Config

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads a TOML configuration file, overlaying it on the
// defaults.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// New builds a standalone executor. Most callers use Default instead.
func New(cfg Config, opts ...Option) *VM {
	opts = append([]Option{vm.WithAllocatorResolver(alloc.Resolver())}, opts...)
	return vm.New(cfg.VM, opts...)
}

var (
	defaultMu  sync.Mutex
	defaultVM  *VM
	defaultCfg = config.Default()
)

// Init applies the configuration and replaces the process-wide default
// executor. Calling Init while instructions are in flight on the previous
// default drains them first.
func Init(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := device.SetProcessRank(cfg.ProcessRank); err != nil {
		return err
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultVM != nil {
		defaultVM.Shutdown()
	}
	defaultCfg = cfg
	defaultVM = New(cfg)
	return nil
}

// Default returns the process-wide executor, creating it from the default
// configuration on first use.
func Default() *VM {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultVM == nil {
		defaultVM = New(defaultCfg)
	}
	return defaultVM
}

// DefaultDevice returns ordinal 0 of the device type named by the active
// configuration.
func DefaultDevice() *device.Device {
	defaultMu.Lock()
	name := defaultCfg.DefaultDevice
	defaultMu.Unlock()

	typ := device.CPU
	switch name {
	case "cuda":
		typ = device.CUDA
	case "vulkan":
		typ = device.Vulkan
	case "metal":
		typ = device.Metal
	case "webgpu":
		typ = device.WebGPU
	}
	return device.MustNew(typ, 0)
}

// Shutdown drains and stops the process-wide executor. A later Default
// call starts a fresh one.
func Shutdown() {
	defaultMu.Lock()
	v := defaultVM
	defaultVM = nil
	defaultMu.Unlock()
	if v != nil {
		v.Shutdown()
	}
}
