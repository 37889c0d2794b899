// Package device provides canonical device identities and the ordered
// device lists ("placements") used by distributed tensors.
//
// Devices and placements are interned: constructing the same identity twice
// returns the same pointer, so pointer comparison is value comparison. The
// caches are process-wide and explicitly managed (no finalizers).
package device

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Type identifies the kind of compute unit and its memory kind.
type Type int

// Supported device types.
const (
	CPU Type = iota
	CUDA
	Vulkan
	Metal
	WebGPU
)

// String returns a human-readable device type name.
func (t Type) String() string {
	switch t {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case Vulkan:
		return "Vulkan"
	case Metal:
		return "Metal"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// Device is a canonical, interned identity of a single compute unit.
// Two devices are the same device iff they are the same pointer.
type Device struct {
	typ     Type
	ordinal int
}

// Type returns the device type.
func (d *Device) Type() Type {
	return d.typ
}

// Ordinal returns the device index within its type (e.g. GPU 1).
func (d *Device) Ordinal() int {
	return d.ordinal
}

// String returns "TYPE:ordinal", e.g. "CPU:0".
func (d *Device) String() string {
	return fmt.Sprintf("%s:%d", d.typ, d.ordinal)
}

type deviceKey struct {
	typ     Type
	ordinal int
}

var (
	registryMu sync.Mutex
	devices    = map[deviceKey]*Device{}
)

// New returns the canonical Device for the given type and ordinal,
// creating and caching it on first use.
func New(typ Type, ordinal int) (*Device, error) {
	if ordinal < 0 {
		return nil, errors.Errorf("device ordinal must be >= 0, got %d", ordinal)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	key := deviceKey{typ: typ, ordinal: ordinal}
	if d, ok := devices[key]; ok {
		return d, nil
	}
	d := &Device{typ: typ, ordinal: ordinal}
	devices[key] = d
	return d, nil
}

// MustNew is New, panicking on an invalid identity. Intended for
// package-level defaults and tests.
func MustNew(typ Type, ordinal int) *Device {
	d, err := New(typ, ordinal)
	if err != nil {
		panic(err)
	}
	return d
}

// ResetRegistry drops all interned devices and placements and resets the
// process rank. Only tests should call this.
func ResetRegistry() {
	registryMu.Lock()
	devices = map[deviceKey]*Device{}
	registryMu.Unlock()

	placementMu.Lock()
	placements = map[string]*Placement{}
	placementMu.Unlock()

	rankMu.Lock()
	processRank = 0
	rankMu.Unlock()
}
