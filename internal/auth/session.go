// Package auth holds the local side of the access-code session: the bearer
// token issued by the server, persisted so every client process of the same
// user shares it.
package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adamavenir/coverchat/internal/types"
)

const sessionFileName = "session.json"

// Source supplies the current session and accepts the expiry signal.
type Source interface {
	Current() *types.Session
	Expire()
}

// FileSource keeps the session in a JSON file inside the data dir.
type FileSource struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	current *types.Session
	loaded  bool
}

// NewFileSource returns a source backed by dataDir/session.json.
func NewFileSource(dataDir string) *FileSource {
	return &FileSource{
		path: filepath.Join(dataDir, sessionFileName),
		now:  time.Now,
	}
}

// Path returns the session file location.
func (s *FileSource) Path() string {
	return s.path
}

// Load rereads the session file. A missing, unreadable or expired session
// loads as nil.
func (s *FileSource) Load() (*types.Session, error) {
	var session types.Session
	ok, err := readJSON(s.path, &session)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var current *types.Session
	if ok && session.Valid(s.now()) {
		current = &session
	}
	s.mu.Lock()
	s.current = current
	s.loaded = true
	s.mu.Unlock()
	return clone(current), nil
}

// Current returns the cached session, loading it on first use.
func (s *FileSource) Current() *types.Session {
	s.mu.Lock()
	loaded := s.loaded
	current := s.current
	s.mu.Unlock()
	if !loaded {
		current, _ = s.Load()
		return current
	}
	if !current.Valid(s.now()) {
		return nil
	}
	return clone(current)
}

// Token returns the bearer token or "".
func (s *FileSource) Token() string {
	if current := s.Current(); current != nil {
		return current.Token
	}
	return ""
}

// Save persists a new session.
func (s *FileSource) Save(session types.Session) error {
	if err := writeJSONAtomic(s.path, session); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	s.mu.Lock()
	s.current = clone(&session)
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Clear removes the session (logout).
func (s *FileSource) Clear() error {
	s.mu.Lock()
	s.current = nil
	s.loaded = true
	s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Expire drops a session the server rejected.
func (s *FileSource) Expire() {
	_ = s.Clear()
}

func clone(session *types.Session) *types.Session {
	if session == nil {
		return nil
	}
	copied := *session
	return &copied
}

var _ Source = (*FileSource)(nil)
