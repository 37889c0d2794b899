// Copyright 2026 Eddy ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API of the Eddy runtime.
//
// # Overview
//
// Eddy tensors come in three implementations:
//   - Local: an eager tensor bound to one device, with storage managed by
//     the instruction executor
//   - Lazy: a graph-construction-time tensor carrying metadata only
//   - Global: a distributed tensor spanning a device placement under a
//     distribution directive
//
// # Basic Usage
//
//	import (
//	    "github.com/eddy-ml/eddy/device"
//	    "github.com/eddy-ml/eddy/tensor"
//	)
//
//	func main() {
//	    dev := device.MustNew(device.CPU, 0)
//	    x, _ := tensor.NewLocal(tensor.Shape{2, 3}, tensor.Float32, dev)
//	    _ = x.Materialize()
//	    shape, _ := x.Shape()
//	    _ = shape
//	}
//
// # Storage Lifecycle
//
// A Local tensor's backing buffer is allocated and released through the
// instruction executor. Dropping the last reference enqueues a release
// instruction behind every pending read and write of the buffer, so memory
// is never reclaimed under an in-flight instruction. Detach produces a new
// tensor identity sharing the same storage.
//
// # Distributed Tensors
//
// A Global tensor pairs an interned logical descriptor (shape, dtype,
// directive, placement) with the local shard this participant holds, if
// any. See the sbp package for the directive algebra.
package tensor
