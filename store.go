package authclient

import (
	"context"
	"sync"
)

// MemoryCredentialStore is a process-local CredentialStore. It is the default
// for tests and for ephemeral sessions that should not survive a restart.
type MemoryCredentialStore struct {
	mu   sync.RWMutex
	cred *Credential
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)

// NewMemoryCredentialStore returns an empty in-memory store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

func (s *MemoryCredentialStore) Get(_ context.Context) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.Clone(), nil
}

func (s *MemoryCredentialStore) Set(_ context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred.Clone()
	return nil
}

func (s *MemoryCredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	return nil
}
