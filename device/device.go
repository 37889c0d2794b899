// Copyright 2026 Eddy ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package device provides the public device and placement API of the Eddy
// runtime.
//
// Devices and placements are interned: requesting the same device type and
// ordinal, or the same ordered device list, always returns the identical
// pointer, so equality is pointer comparison.
package device

import (
	"github.com/eddy-ml/eddy/internal/device"
)

// Type identifies a device backend.
type Type = device.Type

// Device type constants.
const (
	CPU    Type = device.CPU
	CUDA   Type = device.CUDA
	Vulkan Type = device.Vulkan
	Metal  Type = device.Metal
	WebGPU Type = device.WebGPU
)

// Device is an interned (type, ordinal) pair.
type Device = device.Device

// Placement is an interned, ordered list of devices; each position is one
// participant slot.
type Placement = device.Placement

// New returns the canonical Device for the given type and ordinal.
func New(typ Type, ordinal int) (*Device, error) {
	return device.New(typ, ordinal)
}

// MustNew is New, panicking on error.
func MustNew(typ Type, ordinal int) *Device {
	return device.MustNew(typ, ordinal)
}

// NewPlacement returns the canonical Placement for the given device list.
func NewPlacement(devs []*Device) (*Placement, error) {
	return device.NewPlacement(devs)
}

// MustNewPlacement is NewPlacement, panicking on error.
func MustNewPlacement(devs []*Device) *Placement {
	return device.MustNewPlacement(devs)
}

// SetProcessRank sets this process's participant rank.
func SetProcessRank(rank int) error {
	return device.SetProcessRank(rank)
}

// ProcessRank returns this process's participant rank.
func ProcessRank() int {
	return device.ProcessRank()
}
