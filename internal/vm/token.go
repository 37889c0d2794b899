package vm

import (
	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/google/uuid"
)

// Token is a per-storage dependency handle. All instructions that read or
// write a storage are ordered on its token: they execute strictly in issue
// order, while instructions on disjoint tokens may run concurrently.
//
// The pending queue is guarded by the owning VM's mutex; a token must only
// be used with the VM it was created for.
type Token struct {
	id      uuid.UUID
	pending *linkedlistqueue.Queue
}

// NewToken creates a fresh dependency token.
func NewToken() *Token {
	return &Token{
		id:      uuid.New(),
		pending: linkedlistqueue.New(),
	}
}

// ID returns the token's unique identity.
func (t *Token) ID() uuid.UUID {
	return t.id
}

// head returns the instruction at the front of the pending queue, or nil.
// Caller holds the VM mutex.
func (t *Token) head() *Instruction {
	v, ok := t.pending.Peek()
	if !ok {
		return nil
	}
	return v.(*Instruction)
}

// pop removes the instruction at the front of the pending queue.
// Caller holds the VM mutex.
func (t *Token) pop() {
	t.pending.Dequeue()
}
