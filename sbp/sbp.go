// Copyright 2026 Eddy ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package sbp provides the public distribution-directive API of the Eddy
// runtime: Split, Broadcast and PartialSum rules and the logical ⇄
// physical shape translation they induce over a placement.
package sbp

import (
	"github.com/eddy-ml/eddy/internal/device"
	"github.com/eddy-ml/eddy/internal/sbp"
)

// RuleKind discriminates the per-axis distribution rules.
type RuleKind = sbp.RuleKind

// Rule kind constants.
const (
	SplitKind      RuleKind = sbp.SplitKind
	BroadcastKind  RuleKind = sbp.BroadcastKind
	PartialSumKind RuleKind = sbp.PartialSumKind
)

// Rule is one per-axis distribution rule.
type Rule = sbp.Rule

// Directive is an interned, ordered rule list.
type Directive = sbp.Directive

// PlacementError reports a directive/placement/shape inconsistency.
type PlacementError = sbp.PlacementError

// Split returns a rule sharding the given tensor axis across participants.
func Split(axis int) Rule {
	return sbp.Split(axis)
}

// Broadcast returns the full-replication rule.
func Broadcast() Rule {
	return sbp.Broadcast()
}

// PartialSum returns the partial-contribution rule.
func PartialSum() Rule {
	return sbp.PartialSum()
}

// NewDirective returns the canonical Directive for the given rule list.
func NewDirective(rules ...Rule) (*Directive, error) {
	return sbp.NewDirective(rules...)
}

// MustNewDirective is NewDirective, panicking on an invalid rule list.
func MustNewDirective(rules ...Rule) *Directive {
	return sbp.MustNewDirective(rules...)
}

// LogicalToPhysical computes the shard held by the participant at the
// given slot for a logical shape distributed under the directive.
func LogicalToPhysical(logical []int, d *Directive, p *device.Placement, slot int) ([]int, error) {
	return sbp.LogicalToPhysical(logical, d, p, slot)
}

// PhysicalToLogical recovers the logical shape from the per-participant
// physical shapes, in slot order.
func PhysicalToLogical(physicals [][]int, d *Directive, p *device.Placement) ([]int, error) {
	return sbp.PhysicalToLogical(physicals, d, p)
}

// InferLogical recovers the logical shape from one participant's physical
// shape, assuming even sharding.
func InferLogical(physical []int, d *Directive, p *device.Placement, slot int) ([]int, error) {
	return sbp.InferLogical(physical, d, p, slot)
}
