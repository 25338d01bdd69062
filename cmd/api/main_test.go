package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFileKeepsRealEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CARDEXCHANGE_SET=file\nCARDEXCHANGE_UNSET=file\n"), 0o600))

	t.Setenv("CARDEXCHANGE_SET", "real")
	t.Cleanup(func() { os.Unsetenv("CARDEXCHANGE_UNSET") })

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "real", os.Getenv("CARDEXCHANGE_SET"))
	assert.Equal(t, "file", os.Getenv("CARDEXCHANGE_UNSET"))
}

func TestLoadEnvFileMissingIsFine(t *testing.T) {
	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "absent.env")))
}
