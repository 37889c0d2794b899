// Package sbp implements distribution directives and the bidirectional
// logical ⇄ physical shape translation for distributed tensors.
//
// A directive is an ordered list of per-axis rules over a placement. Each
// rule is one of Split(axis), Broadcast, or PartialSum:
//
//   - Split(axis): participants hold disjoint shards of the named axis.
//   - Broadcast: every participant holds the full value.
//   - PartialSum: every participant holds a full-shape partial contribution;
//     the true value is the sum across participants. The shape is unaffected,
//     only the value semantics differ.
//
// Directives are interned, so equal rule lists compare as identical pointers.
package sbp

import (
	"fmt"
	"strings"
	"sync"

	"github.com/eddy-ml/eddy/internal/device"
	"github.com/pkg/errors"
)

// RuleKind discriminates the per-axis distribution rules.
type RuleKind int

// The three distribution rule kinds.
const (
	SplitKind RuleKind = iota
	BroadcastKind
	PartialSumKind
)

// Rule is one per-axis distribution rule. Axis is meaningful only for
// SplitKind.
type Rule struct {
	Kind RuleKind
	Axis int
}

// Split returns a rule sharding the given tensor axis across participants.
func Split(axis int) Rule {
	return Rule{Kind: SplitKind, Axis: axis}
}

// Broadcast returns the full-replication rule.
func Broadcast() Rule {
	return Rule{Kind: BroadcastKind}
}

// PartialSum returns the partial-contribution rule.
func PartialSum() Rule {
	return Rule{Kind: PartialSumKind}
}

// String returns "S(axis)", "B" or "P".
func (r Rule) String() string {
	switch r.Kind {
	case SplitKind:
		return fmt.Sprintf("S(%d)", r.Axis)
	case BroadcastKind:
		return "B"
	case PartialSumKind:
		return "P"
	default:
		panic(fmt.Sprintf("unknown rule kind %d", r.Kind))
	}
}

// Directive is an interned, ordered list of distribution rules. Two
// directives with the same rule list are the same pointer.
type Directive struct {
	rules []Rule
	key   string
}

var (
	directiveMu sync.Mutex
	directives  = map[string]*Directive{}
)

// NewDirective returns the canonical Directive for the given rule list.
func NewDirective(rules ...Rule) (*Directive, error) {
	if len(rules) == 0 {
		return nil, errors.New("directive requires at least one rule")
	}
	parts := make([]string, len(rules))
	for i, r := range rules {
		if r.Kind == SplitKind && r.Axis < 0 {
			return nil, errors.Errorf("split axis must be >= 0, got %d", r.Axis)
		}
		parts[i] = r.String()
	}
	key := strings.Join(parts, ",")

	directiveMu.Lock()
	defer directiveMu.Unlock()
	if d, ok := directives[key]; ok {
		return d, nil
	}
	d := &Directive{rules: append([]Rule(nil), rules...), key: key}
	directives[key] = d
	return d, nil
}

// MustNewDirective is NewDirective, panicking on an invalid rule list.
func MustNewDirective(rules ...Rule) *Directive {
	d, err := NewDirective(rules...)
	if err != nil {
		panic(err)
	}
	return d
}

// Rules returns a copy of the ordered rule list.
func (d *Directive) Rules() []Rule {
	return append([]Rule(nil), d.rules...)
}

// String returns the comma-joined rule list, e.g. "S(0),B".
func (d *Directive) String() string {
	return d.key
}

// PlacementError reports a directive/placement/shape inconsistency.
type PlacementError struct {
	Reason string
}

func (e *PlacementError) Error() string {
	return "placement error: " + e.Reason
}

func placementErrorf(format string, args ...any) error {
	return &PlacementError{Reason: fmt.Sprintf(format, args...)}
}

// LogicalToPhysical computes the shard the participant at the given slot
// holds for a logical shape distributed under the directive.
//
// Remainder policy for Split(axis): extents divide by floor; the LAST slot
// absorbs the remainder. PhysicalToLogical applies the same policy, so the
// two directions round-trip exactly.
func LogicalToPhysical(logical []int, d *Directive, p *device.Placement, slot int) ([]int, error) {
	if d == nil || p == nil {
		return nil, placementErrorf("nil directive or placement")
	}
	if slot < 0 || slot >= p.Size() {
		return nil, placementErrorf("slot %d outside placement %s (size %d)", slot, p, p.Size())
	}
	physical := append([]int(nil), logical...)
	for _, r := range d.rules {
		switch r.Kind {
		case SplitKind:
			if r.Axis >= len(logical) {
				return nil, placementErrorf("split axis %d out of range for shape %v", r.Axis, logical)
			}
			extent := logical[r.Axis]
			n := p.Size()
			if extent < n {
				return nil, placementErrorf("cannot split extent %d across %d participants", extent, n)
			}
			base := extent / n
			if slot == n-1 {
				physical[r.Axis] = base + extent%n
			} else {
				physical[r.Axis] = base
			}
		case BroadcastKind, PartialSumKind:
			// Shape is unchanged for every participant.
		default:
			panic(fmt.Sprintf("unknown rule kind %d", r.Kind))
		}
	}
	return physical, nil
}

// InferLogical recovers the logical shape from one participant's physical
// shape, assuming even sharding: split-axis extents multiply by the
// placement size, other axes pass through. The inferred shape is verified
// by round-tripping through LogicalToPhysical for the same slot, which
// rejects degenerate shards such as zero extents on a split axis.
func InferLogical(physical []int, d *Directive, p *device.Placement, slot int) ([]int, error) {
	if d == nil || p == nil {
		return nil, placementErrorf("nil directive or placement")
	}
	if slot < 0 || slot >= p.Size() {
		return nil, placementErrorf("slot %d outside placement %s (size %d)", slot, p, p.Size())
	}
	logical := append([]int(nil), physical...)
	for _, r := range d.rules {
		if r.Kind != SplitKind {
			continue
		}
		if r.Axis >= len(physical) {
			return nil, placementErrorf("split axis %d out of range for shape %v", r.Axis, physical)
		}
		logical[r.Axis] = physical[r.Axis] * p.Size()
	}
	check, err := LogicalToPhysical(logical, d, p, slot)
	if err != nil {
		return nil, err
	}
	for axis := range check {
		if check[axis] != physical[axis] {
			return nil, placementErrorf(
				"physical shape %v at slot %d does not correspond to an even shard of a logical shape under %s",
				physical, slot, d)
		}
	}
	return logical, nil
}

// PhysicalToLogical recovers the logical shape from the per-participant
// physical shapes, in slot order. It sums shard extents along split axes,
// and asserts that broadcast and partial-sum participants report a uniform
// shape, which it returns unchanged.
func PhysicalToLogical(physicals [][]int, d *Directive, p *device.Placement) ([]int, error) {
	if d == nil || p == nil {
		return nil, placementErrorf("nil directive or placement")
	}
	if len(physicals) != p.Size() {
		return nil, placementErrorf("got %d physical shapes for placement of size %d", len(physicals), p.Size())
	}
	rank := len(physicals[0])
	for i, s := range physicals {
		if len(s) != rank {
			return nil, placementErrorf("participant %d shape %v has rank %d, want %d", i, s, len(s), rank)
		}
	}

	logical := append([]int(nil), physicals[0]...)
	splitAxes := map[int]bool{}
	for _, r := range d.rules {
		if r.Kind == SplitKind {
			if r.Axis >= rank {
				return nil, placementErrorf("split axis %d out of range for rank %d", r.Axis, rank)
			}
			splitAxes[r.Axis] = true
		}
	}

	for axis := 0; axis < rank; axis++ {
		if splitAxes[axis] {
			total := 0
			for _, s := range physicals {
				total += s[axis]
			}
			logical[axis] = total
			continue
		}
		// Non-split axes must agree across all participants.
		for i, s := range physicals {
			if s[axis] != physicals[0][axis] {
				return nil, placementErrorf(
					"participant %d extent %d on axis %d disagrees with participant 0 extent %d",
					i, s[axis], axis, physicals[0][axis])
			}
		}
	}
	return logical, nil
}
