// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/jk100/archiv-admin/internal/model"
)

// CredentialRepository keeps credential records in named slots. A slot holds one record that
// is overwritten wholesale on Save and removed wholesale on Delete.
type CredentialRepository interface {
	// Load returns the record in slot, or errs.ErrNotFound when the slot is empty.
	Load(ctx context.Context, slot string) (model.Credentials, error)
	// Save replaces the record in slot.
	Save(ctx context.Context, slot string, c model.Credentials) error
	// Delete empties slot. Deleting an empty slot is not an error.
	Delete(ctx context.Context, slot string) error
}
