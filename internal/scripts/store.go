// Package scripts implements the load-script-by-reference capability.
//
// The creator registers option source under a generated "blob:" reference
// and ships only the reference in the init frame. The context resolves the
// reference through the same store (in process) or through a copy of it
// sent with the spawn request (remote host).
package scripts

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/jsworker/internal/shared/id"
)

var (
	ErrNotFound   = errors.New("script reference not found")
	ErrInvalidRef = errors.New("invalid script reference")
)

// Loader resolves a script reference to its source.
type Loader interface {
	Load(ref string) (string, error)
}

// Store holds option scripts by reference.
type Store struct {
	mu      sync.RWMutex
	scripts map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{scripts: make(map[string]string)}
}

// FromSnapshot rebuilds a store from a Snapshot, validating every reference.
func FromSnapshot(snapshot map[string]string) (*Store, error) {
	s := NewStore()
	for ref, src := range snapshot {
		if err := s.Add(ref, src); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register stores src under a fresh reference.
func (s *Store) Register(src string) string {
	ref := id.NewScriptRef().String()

	s.mu.Lock()
	s.scripts[ref] = src
	s.mu.Unlock()

	return ref
}

// Add stores src under an existing reference.
func (s *Store) Add(ref, src string) error {
	if !id.IsScriptRef(ref) {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}

	s.mu.Lock()
	s.scripts[ref] = src
	s.mu.Unlock()
	return nil
}

// Load returns the source registered under ref.
func (s *Store) Load(ref string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.scripts[ref]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return src, nil
}

// Revoke forgets ref.
func (s *Store) Revoke(ref string) {
	s.mu.Lock()
	delete(s.scripts, ref)
	s.mu.Unlock()
}

// Snapshot copies the store contents.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.scripts))
	for ref, src := range s.scripts {
		out[ref] = src
	}
	return out
}
