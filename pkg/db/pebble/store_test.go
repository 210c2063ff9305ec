package pebble

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStorePutGetDelete(t *testing.T) {
	store, err := NewKVStore()
	require.NoError(t, err)
	defer store.Close()

	key := []byte("\x01attempt")
	require.NoError(t, store.Put(key, []byte("pending")))
	require.NoError(t, store.Put(key, []byte("confirmed")))

	got, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("confirmed"), got)

	// returned slices are copies
	got[0] = 'X'
	again, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("confirmed"), again)

	require.NoError(t, store.Delete(key))
	_, err = store.Get(key)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, store.Delete([]byte("never written")))
}

func TestKVStoreClosed(t *testing.T) {
	store, err := NewKVStore()
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.NoError(t, store.Close())

	_, err = store.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.Put([]byte("k"), []byte("v")), ErrClosed)
	assert.ErrorIs(t, store.Delete([]byte("k")), ErrClosed)
}

func TestOpenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Put([]byte("k"), []byte("v")))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	v, err := store.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}
