package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyprobe/internal/adapters/venues"
	"keyprobe/pkg/errors"
)

func writeKeyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keys.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadGroupsByVenueAndKeyName(t *testing.T) {
	path := writeKeyFile(t, `
binance:
  read_only_1:
    key_id: bk1
    secret: bs1
  read_write_1:
    key_id: bk2
    secret: bs2
okx:
  read_write_1:
    key_id: ok1
    secret: os1
    passphrase: pass
    simulated: true
`)

	entries, err := Load(path)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "binance", entries[0].Venue)
	assert.Equal(t, "read_only_1", entries[0].KeyName)
	assert.Equal(t, "bk1", entries[0].KeyID)

	okx := entries[2]
	assert.Equal(t, "okx", okx.Venue)
	assert.Equal(t, "pass", okx.Passphrase)
	assert.True(t, okx.Simulated)

	cred := okx.Credential()
	assert.Equal(t, venues.VenueOKX, cred.Venue)
	assert.False(t, cred.ReadOnly())
	assert.True(t, entries[0].Credential().ReadOnly())
}

func TestLoadRejectsIncompleteEntry(t *testing.T) {
	path := writeKeyFile(t, `
binance:
  read_only_1:
    key_id: bk1
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestFilter(t *testing.T) {
	entries := []Entry{
		{Venue: "binance", KeyName: "read_only_1"},
		{Venue: "okx", KeyName: "read_write_1"},
	}

	assert.Len(t, Filter(entries, ""), 2)
	filtered := Filter(entries, "okx")
	require.Len(t, filtered, 1)
	assert.Equal(t, "okx", filtered[0].Venue)
}
