package tensor

import (
	"sync"
	"sync/atomic"

	"github.com/eddy-ml/eddy/internal/vm"
)

// Storage owns one backing buffer. It is shared between an original tensor
// and any detached views; the buffer lives as long as the longest holder.
// Dropping the last reference invokes the release hook exactly once, which
// by convention enqueues a release instruction on the storage's token
// rather than freeing memory in place, so the buffer stays valid for every
// instruction already queued against it.
type Storage struct {
	buffer *vm.Buffer
	token  *vm.Token

	refs        atomic.Int32
	releaseOnce sync.Once

	mu       sync.Mutex
	releaser func(*vm.Buffer)
}

// NewStorage wraps a buffer and its dependency token with one owner.
func NewStorage(buffer *vm.Buffer, token *vm.Token) *Storage {
	s := &Storage{buffer: buffer, token: token}
	s.refs.Store(1)
	return s
}

// Buffer returns the backing buffer handle.
func (s *Storage) Buffer() *vm.Buffer {
	return s.buffer
}

// Token returns the dependency token ordering all instructions that touch
// the buffer.
func (s *Storage) Token() *vm.Token {
	return s.token
}

// SetReleaser installs the hook invoked when the last owner releases the
// storage.
func (s *Storage) SetReleaser(hook func(*vm.Buffer)) {
	s.mu.Lock()
	s.releaser = hook
	s.mu.Unlock()
}

// Retain adds an owner; Detach uses this when sharing storage.
func (s *Storage) Retain() {
	s.refs.Add(1)
}

// Release drops one owner. The hook fires exactly once, when the count
// reaches zero.
func (s *Storage) Release() {
	if s.refs.Add(-1) > 0 {
		return
	}
	s.releaseOnce.Do(func() {
		s.mu.Lock()
		hook := s.releaser
		s.mu.Unlock()
		if hook != nil {
			hook(s.buffer)
		}
	})
}

// Shared reports whether more than one owner currently holds the storage.
func (s *Storage) Shared() bool {
	return s.refs.Load() > 1
}
