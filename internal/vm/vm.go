// Package vm implements the asynchronous instruction virtual machine.
//
// Submission happens synchronously on whichever goroutine calls Enqueue;
// execution happens on the VM's worker pool. The only ordering guarantee is
// per dependency token: instructions sharing a token retire strictly in
// issue order. There is no cancellation: once enqueued, an instruction runs
// to completion or failure. A failed instruction does not poison its token;
// instructions queued behind it still run.
package vm

import (
	"sync"

	"github.com/eddy-ml/eddy/internal/config"
	"github.com/eddy-ml/eddy/internal/device"
	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrShutdown is returned by Enqueue after Shutdown has been called.
var ErrShutdown = errors.New("vm: shut down")

// LockReleaser runs inner with any externally held host lock released, so a
// blocked caller can never starve the executor behind its own lock. The
// embedding environment supplies the real implementation.
type LockReleaser func(inner func())

// Option configures a VM at construction time.
type Option func(*VM)

// WithKernelExecutor supplies the operator layer's kernel capability.
func WithKernelExecutor(k KernelExecutor) Option {
	return func(v *VM) { v.kernels = k }
}

// WithAllocatorResolver supplies the device → allocator mapping used by
// alloc and release instructions.
func WithAllocatorResolver(r AllocatorResolver) Option {
	return func(v *VM) { v.resolve = r }
}

// WithLockReleaser supplies the host's scoped lock-release primitive, used
// only while BlockAndQuery waits.
func WithLockReleaser(lr LockReleaser) Option {
	return func(v *VM) { v.releaseLock = lr }
}

// WithInstructionObserver installs a callback invoked once per instruction
// when it reaches a terminal state, before the completion notifier fires.
// The callback runs on an executor goroutine and must not block.
func WithInstructionObserver(fn func(*Instruction)) Option {
	return func(v *VM) { v.observe = fn }
}

// VM is the instruction virtual machine.
type VM struct {
	mu       sync.Mutex
	ready    *linkedlistqueue.Queue // instructions runnable right now
	hasReady *sync.Cond             // workers wait here
	retired  *sync.Cond             // BlockAndQuery/Drain wait here
	inflight int                    // enqueued, not yet terminal
	backlog  int                    // inflight watermark that triggers a warning
	running  bool
	wg       sync.WaitGroup

	kernels     KernelExecutor
	resolve     AllocatorResolver
	releaseLock LockReleaser
	observe     func(*Instruction)
}

// New starts a VM with cfg.Workers executor goroutines.
func New(cfg config.VMConfig, opts ...Option) *VM {
	v := &VM{
		ready:       linkedlistqueue.New(),
		backlog:     cfg.SubmitQueueDepth,
		running:     true,
		releaseLock: func(inner func()) { inner() },
	}
	v.hasReady = sync.NewCond(&v.mu)
	v.retired = sync.NewCond(&v.mu)
	for _, opt := range opts {
		opt(v)
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	v.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go v.worker()
	}
	return v
}

// Enqueue submits an instruction and returns immediately. The only
// synchronous error is ErrShutdown; execution failures are delivered
// through the instruction's completion notifier.
func (v *VM) Enqueue(inst *Instruction) error {
	if inst == nil {
		return errors.New("vm: nil instruction")
	}
	v.mu.Lock()
	if !v.running {
		v.mu.Unlock()
		return ErrShutdown
	}
	v.inflight++
	if v.backlog > 0 && v.inflight > v.backlog {
		klog.V(1).Infof("vm: %d instructions in flight, above the configured depth %d", v.inflight, v.backlog)
	}
	// Appending to every token under one lock keeps queue orders mutually
	// consistent, which rules out head-of-line deadlocks between
	// multi-token instructions.
	for _, tok := range inst.tokens {
		tok.pending.Enqueue(inst)
	}
	v.maybeScheduleLocked(inst)
	// Wake BlockAndQuery callers whose predicate may depend on freshly
	// submitted work.
	v.retired.Broadcast()
	v.mu.Unlock()

	klog.V(2).Infof("vm: issued %s %s", inst.opcode, inst.ID)
	return nil
}

// maybeScheduleLocked moves inst to the ready queue if it is at the head of
// every token it references. Caller holds v.mu.
func (v *VM) maybeScheduleLocked(inst *Instruction) {
	if inst.State() != Issued {
		return
	}
	for _, tok := range inst.tokens {
		if tok.head() != inst {
			return
		}
	}
	inst.setState(Scheduled)
	v.ready.Enqueue(inst)
	v.hasReady.Signal()
}

func (v *VM) worker() {
	defer v.wg.Done()
	v.mu.Lock()
	for {
		for v.ready.Empty() && v.running {
			v.hasReady.Wait()
		}
		next, ok := v.ready.Dequeue()
		if !ok {
			if !v.running {
				v.mu.Unlock()
				return
			}
			// Spurious wakeup; another worker took the instruction.
			continue
		}
		inst := next.(*Instruction)
		v.mu.Unlock()

		v.execute(inst)

		v.mu.Lock()
		v.retireLocked(inst)
	}
}

// execute runs one instruction to a terminal state and fires its notifier.
// Runs without v.mu held.
func (v *VM) execute(inst *Instruction) {
	inst.setState(Executing)
	klog.V(2).Infof("vm: executing %s %s", inst.opcode, inst.ID)

	var err error
	switch inst.opcode {
	case OpKernel:
		if v.kernels == nil {
			err = errors.Errorf("no kernel executor installed for kernel %q", inst.Kernel.Name)
		} else {
			err = v.kernels.ExecuteKernel(inst.Kernel.Name, inst.Kernel.Operands)
		}
	case OpAllocBuffer:
		var alloc Allocator
		alloc, err = v.allocatorFor(inst.Alloc.Device)
		if err == nil {
			inst.Alloc.Allocated, err = alloc.Allocate(inst.Alloc.Device, inst.Alloc.ByteSize)
		}
	case OpReleaseBuffer:
		var alloc Allocator
		alloc, err = v.allocatorFor(inst.Release.Device)
		if err == nil {
			err = alloc.Release(inst.Release.Buffer)
		}
	case OpSyncShape:
		// Ordering behind earlier writes is the entire effect.
	case OpAccessBuffer:
		inst.Access.Access(inst.Access.Buffer)
	default:
		panic("vm: unknown opcode " + inst.opcode.String())
	}

	if err != nil {
		inst.err = &ExecutionFailure{InstructionID: inst.ID, Opcode: inst.opcode, Cause: err}
		inst.setState(Failed)
		klog.V(1).Infof("vm: %s %s failed: %v", inst.opcode, inst.ID, err)
	} else {
		inst.setState(Completed)
		klog.V(2).Infof("vm: completed %s %s", inst.opcode, inst.ID)
	}
	if v.observe != nil {
		v.observe(inst)
	}
	if inst.onDone != nil {
		inst.onDone(inst.Err())
	}
}

func (v *VM) allocatorFor(dev *device.Device) (Allocator, error) {
	if v.resolve == nil {
		return nil, errors.New("no allocator resolver installed")
	}
	return v.resolve(dev)
}

// retireLocked pops inst from its token queues and schedules any successor
// that became runnable. Caller holds v.mu.
func (v *VM) retireLocked(inst *Instruction) {
	for _, tok := range inst.tokens {
		if tok.head() != inst {
			panic("vm: retired instruction is not at the head of its token")
		}
		tok.pop()
	}
	for _, tok := range inst.tokens {
		if next := tok.head(); next != nil {
			v.maybeScheduleLocked(next)
		}
	}
	v.inflight--
	v.retired.Broadcast()
}

// BlockAndQuery waits until pred returns true. The token names the storage
// whose pending work the predicate depends on; it is carried for tracing
// and may be nil. BlockAndQuery first releases the host's external lock
// (see WithLockReleaser) so the executor can make progress, then re-checks
// pred after every retired or newly submitted instruction. It returns
// ErrShutdown if the VM stops and drains while pred is still false.
func (v *VM) BlockAndQuery(tok *Token, pred func() bool) error {
	if tok != nil {
		klog.V(3).Infof("vm: blocking on token %s", tok.ID())
	}
	var err error
	v.releaseLock(func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		for !pred() {
			if !v.running && v.inflight == 0 {
				err = ErrShutdown
				return
			}
			v.retired.Wait()
		}
	})
	return err
}

// Drain blocks until every enqueued instruction has reached a terminal
// state.
func (v *VM) Drain() {
	v.mu.Lock()
	for v.inflight > 0 {
		v.retired.Wait()
	}
	v.mu.Unlock()
}

// Shutdown stops accepting work, waits for all queued instructions to
// finish, and joins the worker pool. There is no cancellation.
func (v *VM) Shutdown() {
	v.mu.Lock()
	if !v.running {
		v.mu.Unlock()
		return
	}
	v.running = false
	v.mu.Unlock()

	v.Drain()

	v.mu.Lock()
	v.hasReady.Broadcast()
	v.retired.Broadcast()
	v.mu.Unlock()
	v.wg.Wait()
}
