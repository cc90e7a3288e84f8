// Package memstore provides in-memory fallbacks for the persistence ports.
// It backs the credential slot when no encryption key is configured: the
// session works normally but nothing survives a restart.
package memstore

import (
	"context"
	"sync"

	"github.com/hytools/jarsync/internal/domain/model"
)

// CredentialStore holds the single credential slot in process memory.
type CredentialStore struct {
	mu   sync.Mutex
	cred *model.Credential
}

// NewCredentialStore creates an empty in-memory credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

// Save replaces the stored credential.
func (s *CredentialStore) Save(_ context.Context, cred model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = &cred
	return nil
}

// Load returns the stored credential, or (nil, nil) when the slot is empty.
func (s *CredentialStore) Load(_ context.Context) (*model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil, nil
	}
	cred := *s.cred
	return &cred, nil
}

// Delete clears the slot. Deleting an empty slot is a no-op.
func (s *CredentialStore) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	return nil
}
