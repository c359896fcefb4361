package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/jk100/archiv-admin/internal/errs"
	"github.com/jk100/archiv-admin/internal/model"
	"github.com/jk100/archiv-admin/internal/repository"
)

var _ repository.CredentialRepository = (*CredentialRepo)(nil)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestCredentialRepo_Load(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCredentialRepo(db)
	ctx := context.Background()

	want := model.Credentials{AccessToken: "A", RefreshToken: "R", ExpiresAt: 42}
	payload, err := json.Marshal(want)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT payload FROM credential_slots WHERE name=\$1`).
		WithArgs("directus-data").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))
	got, err := r.Load(ctx, "directus-data")
	require.NoError(t, err)
	require.Equal(t, want, got)

	mock.ExpectQuery(`SELECT payload FROM credential_slots WHERE name=\$1`).
		WithArgs("directus-data").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Load(ctx, "directus-data")
	require.ErrorIs(t, err, errs.ErrNotFound)

	boom := errors.New("conn reset")
	mock.ExpectQuery(`SELECT payload FROM credential_slots WHERE name=\$1`).
		WithArgs("directus-data").
		WillReturnError(boom)
	_, err = r.Load(ctx, "directus-data")
	require.ErrorIs(t, err, boom)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepo_Save(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCredentialRepo(db)

	c := model.Credentials{AccessToken: "A", ExpiresAt: 1}
	payload, err := json.Marshal(c)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO credential_slots \(name, payload, updated_at\) VALUES \(\$1, \$2, now\(\)\) ON CONFLICT \(name\) DO UPDATE SET payload=EXCLUDED.payload, updated_at=now\(\)`).
		WithArgs("directus-data", payload).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Save(context.Background(), "directus-data", c))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCredentialRepo(db)

	mock.ExpectExec(`DELETE FROM credential_slots WHERE name=\$1`).
		WithArgs("directus-data").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.NoError(t, r.Delete(context.Background(), "directus-data"))
	require.NoError(t, mock.ExpectationsWereMet())
}
