package vm

import (
	"fmt"
	"sync/atomic"

	"github.com/eddy-ml/eddy/internal/device"
	"github.com/google/uuid"
)

// Opcode discriminates the closed set of instruction kinds the VM executes.
type Opcode int

// Instruction opcodes.
const (
	// OpKernel runs a named compute kernel over operand buffers. The kernel
	// itself is supplied by the operator layer through a KernelExecutor.
	OpKernel Opcode = iota
	// OpAllocBuffer materializes a backing buffer on a device.
	OpAllocBuffer
	// OpReleaseBuffer returns a buffer to its allocator. Enqueued behind all
	// instructions already ordered on the buffer's token, so reclamation is
	// deferred, never preemptive.
	OpReleaseBuffer
	// OpSyncShape orders behind pending writes on a token; completing it
	// means the shape recorded in the buffer's metadata is observable.
	OpSyncShape
	// OpAccessBuffer invokes a caller-supplied callback with the buffer once
	// every earlier instruction on the token has retired.
	OpAccessBuffer
)

// String returns the opcode mnemonic.
func (op Opcode) String() string {
	switch op {
	case OpKernel:
		return "kernel"
	case OpAllocBuffer:
		return "alloc"
	case OpReleaseBuffer:
		return "release"
	case OpSyncShape:
		return "sync-shape"
	case OpAccessBuffer:
		return "access"
	default:
		panic(fmt.Sprintf("unknown opcode %d", int(op)))
	}
}

// State is the lifecycle stage of an instruction.
type State int32

// Instruction states. Completed and Failed are terminal.
const (
	Issued State = iota
	Scheduled
	Executing
	Completed
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Issued:
		return "issued"
	case Scheduled:
		return "scheduled"
	case Executing:
		return "executing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		panic(fmt.Sprintf("unknown state %d", int(s)))
	}
}

// KernelPayload names a kernel and its operand buffers.
type KernelPayload struct {
	Name     string
	Operands []*Buffer
}

// AllocPayload requests a buffer on a device. Allocated is set by the
// executor before the instruction completes.
type AllocPayload struct {
	Device    *device.Device
	ByteSize  int
	Allocated *Buffer
}

// ReleasePayload is an explicit, inspectable release request: the buffer
// handle plus the device it lives on.
type ReleasePayload struct {
	Buffer *Buffer
	Device *device.Device
}

// AccessPayload invokes Access with the buffer under the token's ordering.
type AccessPayload struct {
	Buffer   *Buffer
	ReadOnly bool
	Access   func(*Buffer)
}

// Instruction is one unit of asynchronous work. Exactly one payload field is
// non-nil, matching the opcode. Once enqueued an instruction is owned by the
// VM, not by any tensor.
type Instruction struct {
	ID     uuid.UUID
	opcode Opcode
	tokens []*Token

	Kernel  *KernelPayload
	Alloc   *AllocPayload
	Release *ReleasePayload
	Access  *AccessPayload

	// onDone is the optional completion notifier; err is non-nil for Failed.
	// Failure is reported here, never synchronously from Enqueue.
	onDone func(error)

	state atomic.Int32
	err   error
}

func newInstruction(op Opcode, tokens []*Token, onDone func(error)) *Instruction {
	return &Instruction{
		ID:     uuid.New(),
		opcode: op,
		tokens: tokens,
		onDone: onDone,
	}
}

// NewKernelInstruction builds an OpKernel instruction ordered on the given
// tokens.
func NewKernelInstruction(name string, operands []*Buffer, tokens []*Token, onDone func(error)) *Instruction {
	inst := newInstruction(OpKernel, tokens, onDone)
	inst.Kernel = &KernelPayload{Name: name, Operands: operands}
	return inst
}

// NewAllocInstruction builds an OpAllocBuffer instruction.
func NewAllocInstruction(dev *device.Device, byteSize int, tokens []*Token, onDone func(error)) *Instruction {
	inst := newInstruction(OpAllocBuffer, tokens, onDone)
	inst.Alloc = &AllocPayload{Device: dev, ByteSize: byteSize}
	return inst
}

// NewReleaseInstruction builds an OpReleaseBuffer instruction for the buffer
// on its owning device.
func NewReleaseInstruction(buf *Buffer, tokens []*Token, onDone func(error)) *Instruction {
	inst := newInstruction(OpReleaseBuffer, tokens, onDone)
	inst.Release = &ReleasePayload{Buffer: buf, Device: buf.Device}
	return inst
}

// NewSyncShapeInstruction builds an OpSyncShape instruction.
func NewSyncShapeInstruction(tokens []*Token, onDone func(error)) *Instruction {
	return newInstruction(OpSyncShape, tokens, onDone)
}

// NewAccessInstruction builds an OpAccessBuffer instruction.
func NewAccessInstruction(buf *Buffer, readOnly bool, access func(*Buffer), tokens []*Token, onDone func(error)) *Instruction {
	inst := newInstruction(OpAccessBuffer, tokens, onDone)
	inst.Access = &AccessPayload{Buffer: buf, ReadOnly: readOnly, Access: access}
	return inst
}

// Opcode returns the instruction's opcode.
func (in *Instruction) Opcode() Opcode {
	return in.opcode
}

// Tokens returns the dependency tokens the instruction is ordered on.
func (in *Instruction) Tokens() []*Token {
	return in.tokens
}

// State returns the instruction's current lifecycle stage.
func (in *Instruction) State() State {
	return State(in.state.Load())
}

// Err returns the execution failure, or nil. Meaningful once State is
// terminal.
func (in *Instruction) Err() error {
	if in.State() != Failed {
		return nil
	}
	return in.err
}

func (in *Instruction) setState(s State) {
	in.state.Store(int32(s))
}

// ExecutionFailure wraps the error an instruction produced while executing.
// It is fatal to the dependent computation; the VM never retries.
type ExecutionFailure struct {
	InstructionID uuid.UUID
	Opcode        Opcode
	Cause         error
}

func (e *ExecutionFailure) Error() string {
	return fmt.Sprintf("instruction %s (%s) failed: %v", e.InstructionID, e.Opcode, e.Cause)
}

// Unwrap exposes the underlying cause.
func (e *ExecutionFailure) Unwrap() error {
	return e.Cause
}
