package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]BlobStore {
	t.Helper()
	fsStore, err := NewFSStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "blobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]BlobStore{"fs": fsStore, "sqlite": sq}
}

func TestStoreLoadDelete(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.Load("missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, st.Store("session-1", []byte("v1")))
			got, err := st.Load("session-1")
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), got)

			// Overwrite replaces.
			require.NoError(t, st.Store("session-1", []byte("v2")))
			got, err = st.Load("session-1")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)

			require.NoError(t, st.Delete("session-1"))
			_, err = st.Load("session-1")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting a missing key is not an error.
			assert.NoError(t, st.Delete("session-1"))
		})
	}
}

func TestFSStoreKeySanitized(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blobs")
	st, err := NewFSStore(dir)
	require.NoError(t, err)

	require.NoError(t, st.Store("../escape/attempt", []byte("x")))
	got, err := st.Load("../escape/attempt")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
	// The blob stayed inside the store directory.
	assert.Equal(t, dir, filepath.Dir(st.path("../escape/attempt")))
}
