// Package session owns the Session Store: the gateway's only shared
// mutable state, behind a single map mutex plus per-session locking
// for long operations.
package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mantonx/streamgate/internal/strategy"
	"github.com/mantonx/streamgate/internal/transcoder"
)

// ErrInvalidID is returned when a caller-supplied session ID cannot be
// safely joined to the HLS root as a single path component.
var ErrInvalidID = errors.New("session: invalid id")

// ValidateID rejects any ID containing a path separator, a parent
// reference, or that is empty — the store's security contract against
// path traversal via a hostile session ID.
func ValidateID(id string) error {
	if id == "" {
		return ErrInvalidID
	}
	if strings.ContainsAny(id, "/\\") {
		return ErrInvalidID
	}
	if id == "." || id == ".." {
		return ErrInvalidID
	}
	return nil
}

// Session is one client's streaming session: its working directory,
// current transcoder handle (if any), current source URL, heartbeat,
// and sticky fallback flag.
type Session struct {
	mu sync.Mutex

	ID             string
	Dir            string
	SourceURL      string
	Handle         *transcoder.Handle
	Mode           strategy.Mode
	LastHeartbeat  time.Time
	ForceTranscode bool
}

// Lock acquires the session's own lock. Callers must Unlock.
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// IsActive reports whether a transcoder process is currently assigned
// to this session and still running — a handle whose process has
// already completed or died is not active, even though the pointer is
// still set until the caller clears it. Caller must hold the session
// lock.
func (s *Session) IsActive() bool {
	if s.Handle == nil {
		return false
	}
	switch s.Handle.State() {
	case transcoder.StateSpawned, transcoder.StateReady:
		return true
	default:
		return false
	}
}

// Store is the in-memory session table. A single mutex protects the
// map itself; per-session mutation is protected by each Session's own
// lock, acquired after the map lookup so long operations (spawn,
// readiness wait, kill) never block unrelated sessions.
type Store struct {
	hlsRoot string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore constructs a Store rooted at hlsRoot. It does not perform
// startup hygiene; call ResetRoot for that.
func NewStore(hlsRoot string) *Store {
	return &Store{hlsRoot: hlsRoot, sessions: make(map[string]*Session)}
}

// ResetRoot removes and recreates the HLS root directory. Call once at
// process start: prior sessions from an earlier process do not survive
// a restart.
func ResetRoot(hlsRoot string) error {
	if err := os.RemoveAll(hlsRoot); err != nil {
		return err
	}
	return os.MkdirAll(hlsRoot, 0o755)
}

// SessionDir returns the filesystem directory owned by session id,
// without validating or creating it.
func (st *Store) SessionDir(id string) string {
	return filepath.Join(st.hlsRoot, id)
}

// GetOrCreate returns the existing session for id, or constructs and
// registers a new one (creating its directory) if none exists. Returns
// ErrInvalidID without touching the map or filesystem if id is unsafe.
func (st *Store) GetOrCreate(id string) (*Session, bool, error) {
	if err := ValidateID(id); err != nil {
		return nil, false, err
	}

	st.mu.Lock()
	if s, ok := st.sessions[id]; ok {
		st.mu.Unlock()
		return s, false, nil
	}
	dir := st.SessionDir(id)
	s := &Session{ID: id, Dir: dir, LastHeartbeat: time.Now()}
	st.sessions[id] = s
	st.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		st.mu.Lock()
		delete(st.sessions, id)
		st.mu.Unlock()
		return nil, false, err
	}
	return s, true, nil
}

// Lookup returns the session for id, if present.
func (st *Store) Lookup(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Touch updates id's heartbeat to now, reporting whether the session
// exists.
func (st *Store) Touch(id string) bool {
	s, ok := st.Lookup(id)
	if !ok {
		return false
	}
	s.Lock()
	defer s.Unlock()
	now := time.Now()
	if now.After(s.LastHeartbeat) {
		s.LastHeartbeat = now
	}
	return true
}

// ForEach invokes fn with a snapshot of the current sessions. Used by
// the Eviction Loop; fn must not itself call back into Store methods
// that take the map mutex from inside this callback.
func (st *Store) ForEach(fn func(*Session)) {
	st.mu.Lock()
	snapshot := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		snapshot = append(snapshot, s)
	}
	st.mu.Unlock()

	for _, s := range snapshot {
		fn(s)
	}
}

// Remove kills any running transcoder, removes the session directory,
// and drops the map entry. Safe to call on an id with no session.
func (st *Store) Remove(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
	}
	st.mu.Unlock()
	if !ok {
		return
	}

	s.Lock()
	handle := s.Handle
	s.Handle = nil
	dir := s.Dir
	s.Unlock()

	if handle != nil {
		_ = handle.Kill()
	}
	_ = os.RemoveAll(dir)
}

// Count returns the number of currently tracked sessions, for /stats.
func (st *Store) Count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
