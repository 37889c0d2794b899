package device

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Placement is an interned, ordered list of device slots participating in a
// distributed tensor. Slot order is significant: slot i belongs to
// participant i. Two placements with the same device list are the same
// pointer.
type Placement struct {
	devices []*Device
	key     string
}

var (
	placementMu sync.Mutex
	placements  = map[string]*Placement{}
)

// NewPlacement returns the canonical Placement for the given ordered device
// list. The list must be non-empty and free of duplicate slots.
func NewPlacement(devs []*Device) (*Placement, error) {
	if len(devs) == 0 {
		return nil, errors.New("placement requires at least one device slot")
	}
	seen := make(map[*Device]struct{}, len(devs))
	var sb strings.Builder
	for i, d := range devs {
		if d == nil {
			return nil, errors.Errorf("placement slot %d is nil", i)
		}
		if _, dup := seen[d]; dup {
			return nil, errors.Errorf("duplicate device %s in placement", d)
		}
		seen[d] = struct{}{}
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(d.String())
	}
	key := sb.String()

	placementMu.Lock()
	defer placementMu.Unlock()
	if p, ok := placements[key]; ok {
		return p, nil
	}
	p := &Placement{devices: append([]*Device(nil), devs...), key: key}
	placements[key] = p
	return p, nil
}

// MustNewPlacement is NewPlacement, panicking on an invalid device list.
func MustNewPlacement(devs []*Device) *Placement {
	p, err := NewPlacement(devs)
	if err != nil {
		panic(err)
	}
	return p
}

// Size returns the number of participant slots.
func (p *Placement) Size() int {
	return len(p.devices)
}

// Device returns the device bound to slot i.
func (p *Placement) Device(i int) *Device {
	return p.devices[i]
}

// Devices returns a copy of the ordered slot list.
func (p *Placement) Devices() []*Device {
	return append([]*Device(nil), p.devices...)
}

// SlotOf returns the slot index the given device occupies in this
// placement, or false when the device holds no slot.
func (p *Placement) SlotOf(d *Device) (int, bool) {
	for i, slot := range p.devices {
		if slot == d {
			return i, true
		}
	}
	return 0, false
}

// String returns the comma-joined slot list, e.g. "CPU:0,CPU:1".
func (p *Placement) String() string {
	return p.key
}

var (
	rankMu      sync.Mutex
	processRank int
)

// SetProcessRank declares which participant this process is. It stands in
// for the surrounding process/cluster context and defaults to rank 0.
func SetProcessRank(rank int) error {
	if rank < 0 {
		return errors.Errorf("process rank must be >= 0, got %d", rank)
	}
	rankMu.Lock()
	processRank = rank
	rankMu.Unlock()
	return nil
}

// ProcessRank returns the rank declared via SetProcessRank.
func ProcessRank() int {
	rankMu.Lock()
	defer rankMu.Unlock()
	return processRank
}

// CurrentSlot resolves this process's slot in the placement: the slot whose
// index equals the process rank. The second result is false when the rank is
// outside the placement, meaning this participant holds no data for tensors
// placed there.
func (p *Placement) CurrentSlot() (int, bool) {
	rank := ProcessRank()
	if rank >= len(p.devices) {
		return 0, false
	}
	return rank, true
}
