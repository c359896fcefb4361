// Package file stores credential records as JSON files in a private directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jk100/archiv-admin/internal/errs"
	"github.com/jk100/archiv-admin/internal/model"
)

// CredentialRepo implements repository.CredentialRepository with one file per slot.
type CredentialRepo struct{ dir string }

// NewCredentialRepo constructs a repository rooted at dir (created on first Save).
func NewCredentialRepo(dir string) *CredentialRepo { return &CredentialRepo{dir: dir} }

// Path returns the file backing slot.
func (r *CredentialRepo) Path(slot string) string {
	return filepath.Join(r.dir, slot+".json")
}

// Load reads the record of slot.
func (r *CredentialRepo) Load(_ context.Context, slot string) (model.Credentials, error) {
	b, err := os.ReadFile(r.Path(slot))
	if errors.Is(err, fs.ErrNotExist) {
		return model.Credentials{}, errs.ErrNotFound
	}
	if err != nil {
		return model.Credentials{}, err
	}
	var c model.Credentials
	if err := json.Unmarshal(b, &c); err != nil {
		return model.Credentials{}, fmt.Errorf("decode %s: %w", slot, err)
	}
	if c.AccessToken == "" {
		return model.Credentials{}, errs.ErrNotFound
	}
	return c, nil
}

// Save writes the record through a temp file and rename so readers never see a partial record.
func (r *CredentialRepo) Save(_ context.Context, slot string, c model.Credentials) error {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(r.dir, slot+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), r.Path(slot))
}

// Delete removes the file of slot.
func (r *CredentialRepo) Delete(_ context.Context, slot string) error {
	err := os.Remove(r.Path(slot))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
