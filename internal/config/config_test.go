package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvDirectusURL, EnvAdminRoleID, EnvStoreDir, EnvDSN, EnvAddr, EnvAllowedOrigins, EnvAppEnv} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Empty(t, c.DirectusURL)
	require.Equal(t, DefaultAddr, c.Addr)
	require.Equal(t, DefaultStoreDir(), c.StoreDir)
	require.Nil(t, c.AllowedOrigins)
	require.False(t, c.Production)
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	clearEnv(t)

	f := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(f, []byte(
		"DIRECTUS_URL=https://cms.example.org/\n"+
			"DIRECTUS_ADMIN_ROLE_ID=3f1f4c3e-2b7a-4f43-9d0e-6b0f1c2a7e11\n"+
			"ARCHIV_ADDR=:9000\n",
	), 0o600))
	t.Setenv(EnvAddr, ":7000")
	t.Setenv(EnvAllowedOrigins, "http://a, ,http://b")

	c := Load(f)
	require.Equal(t, "https://cms.example.org/", c.DirectusURL)
	require.Equal(t, "3f1f4c3e-2b7a-4f43-9d0e-6b0f1c2a7e11", c.AdminRoleID)
	require.Equal(t, ":7000", c.Addr)
	require.Equal(t, []string{"http://a", "http://b"}, c.AllowedOrigins)
}

func TestLoad_ProductionSkipsEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAppEnv, "production")

	f := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(f, []byte("ARCHIV_DSN=postgres://x\n"), 0o600))

	c := Load(f)
	require.True(t, c.Production)
	require.Empty(t, c.DSN)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	require.ErrorIs(t, Config{}.Validate(log), ErrNoBackend)
	require.Error(t, Config{DirectusURL: "cms.example.org"}.Validate(log))
	require.Error(t, Config{DirectusURL: "ftp://cms"}.Validate(log))
	require.NoError(t, Config{DirectusURL: "http://localhost:8055"}.Validate(log))
}

func TestValidate_WarnsOnNonUUIDRole(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	require.NoError(t, Config{DirectusURL: "https://cms", AdminRoleID: "admin"}.Validate(zap.New(core)))
	require.Equal(t, 1, logs.FilterMessage("administrator role is not a uuid").Len())

	core, logs = observer.New(zap.WarnLevel)
	require.NoError(t, Config{DirectusURL: "https://cms", AdminRoleID: "3f1f4c3e-2b7a-4f43-9d0e-6b0f1c2a7e11"}.Validate(zap.New(core)))
	require.Zero(t, logs.Len())
}
