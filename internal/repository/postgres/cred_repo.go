package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jk100/archiv-admin/internal/errs"
	"github.com/jk100/archiv-admin/internal/model"
)

// CredentialRepo implements repository.CredentialRepository on the credential_slots table.
type CredentialRepo struct{ db *DB }

// NewCredentialRepo constructs a credential repository.
func NewCredentialRepo(db *DB) *CredentialRepo { return &CredentialRepo{db: db} }

// Load selects the record of slot.
func (r *CredentialRepo) Load(ctx context.Context, slot string) (model.Credentials, error) {
	const q = `SELECT payload FROM credential_slots WHERE name=$1`
	var payload []byte
	if err := r.db.Pool.QueryRow(ctx, q, slot).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Credentials{}, errs.ErrNotFound
		}
		return model.Credentials{}, err
	}
	var c model.Credentials
	if err := json.Unmarshal(payload, &c); err != nil {
		return model.Credentials{}, fmt.Errorf("decode %s: %w", slot, err)
	}
	return c, nil
}

// Save upserts the record of slot.
func (r *CredentialRepo) Save(ctx context.Context, slot string, c model.Credentials) error {
	const q = `
INSERT INTO credential_slots (name, payload, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name)
DO UPDATE SET payload=EXCLUDED.payload, updated_at=now()`
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, q, slot, payload)
	return err
}

// Delete removes the row of slot.
func (r *CredentialRepo) Delete(ctx context.Context, slot string) error {
	const q = `DELETE FROM credential_slots WHERE name=$1`
	_, err := r.db.Pool.Exec(ctx, q, slot)
	return err
}
