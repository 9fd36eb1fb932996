package cryptox

import (
	"sync"

	"github.com/inkwellapp/inkwell/internal/common"
)

// Session is the single in-memory holder of the master key. It is created
// once and shared by handle between the lock state machine and the entry
// store, so clearing it in one place clears it everywhere. The key exists
// here only while the session is unlocked and is wiped in place on Clear,
// zeroing every alias of the underlying buffer.
type Session struct {
	mu  sync.RWMutex
	key []byte
}

// NewSession returns an empty (locked) session.
func NewSession() *Session {
	return &Session{}
}

// Import makes key the active master key. The session takes ownership of
// the slice; callers must not retain or reuse it. Any previously imported
// key is wiped first.
func (s *Session) Import(key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	common.WipeByteArray(s.key)
	s.key = key
}

// Key returns the resident master key, or common.ErrNoMasterKey while
// locked. The returned slice is the shared buffer: it must not be mutated
// and becomes zeroed after Clear.
func (s *Session) Key() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.key) == 0 {
		return nil, common.ErrNoMasterKey
	}
	return s.key, nil
}

// Active reports whether a master key is resident.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.key) > 0
}

// Clear wipes the key bytes in place and drops the reference. Every
// component holding the shared buffer sees zeros afterwards.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	common.WipeByteArray(s.key)
	s.key = nil
}
