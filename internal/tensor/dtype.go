// Package tensor implements the execution core's tensor representation:
// immutable metadata, VM-managed storage, and the local and distributed
// tensor implementations built from them.
package tensor

import (
	"encoding/binary"

	"github.com/d4l3k/go-bfloat16"
	"github.com/eddy-ml/eddy/internal/parallel"
	"github.com/x448/float16"
)

// DataType is the runtime element type of a tensor.
type DataType int

// Supported data types. Invalid is the placeholder used by scaffolding
// metadata before a concrete dtype is assigned.
const (
	Invalid DataType = iota
	Float32
	Float64
	Float16
	BFloat16
	Int32
	Int64
	Uint8
	Bool
)

// Valid reports whether the dtype is concrete.
func (dt DataType) Valid() bool {
	return dt != Invalid
}

// Size returns the byte size of one element; zero for Invalid.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Float16, BFloat16:
		return 2
	case Uint8, Bool:
		return 1
	case Invalid:
		return 0
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Invalid:
		return "invalid"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Float16:
		return "float16"
	case BFloat16:
		return "bfloat16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

var convCfg = parallel.DefaultConfig()

// EncodeFloat16 packs float32 values into IEEE half-precision bytes,
// little-endian, fanning large inputs across goroutines.
func EncodeFloat16(src []float32) []byte {
	out := make([]byte, len(src)*2)
	_ = parallel.Chunks(len(src), convCfg, func(start, end int) error {
		for i := start; i < end; i++ {
			binary.LittleEndian.PutUint16(out[i*2:], float16.Fromfloat32(src[i]).Bits())
		}
		return nil
	})
	return out
}

// DecodeFloat16 unpacks IEEE half-precision bytes into float32 values.
func DecodeFloat16(src []byte) []float32 {
	n := len(src) / 2
	out := make([]float32, n)
	_ = parallel.Chunks(n, convCfg, func(start, end int) error {
		for i := start; i < end; i++ {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(src[i*2:])).Float32()
		}
		return nil
	})
	return out
}

// EncodeBFloat16 packs float32 values into bfloat16 bytes.
func EncodeBFloat16(src []float32) []byte {
	return bfloat16.EncodeFloat32(src)
}

// DecodeBFloat16 unpacks bfloat16 bytes into float32 values.
func DecodeBFloat16(src []byte) []float32 {
	return bfloat16.DecodeFloat32(src)
}
