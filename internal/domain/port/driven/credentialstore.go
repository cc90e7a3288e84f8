package driven

import (
	"context"
	"errors"

	"github.com/hytools/jarsync/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// JARSYNC_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set JARSYNC_SECRET_KEY")

// CredentialStore defines the driven port for the single persisted
// credential slot. The adapter layer is responsible for encryption at rest;
// this interface operates on plaintext values at the domain boundary.
type CredentialStore interface {
	// Save stores or replaces the credential record. The write is atomic:
	// concurrent readers observe either the prior record or the new one,
	// never a partial update.
	Save(ctx context.Context, cred model.Credential) error

	// Load retrieves the stored credential. Returns (nil, nil) when no
	// credential has been persisted.
	Load(ctx context.Context) (*model.Credential, error)

	// Delete removes the stored credential. Deleting when nothing is stored
	// is not an error.
	Delete(ctx context.Context) error
}
