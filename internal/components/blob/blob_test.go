package blob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilesystemStore(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get("alice")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put("alice", []byte("one")))
	require.NoError(t, store.Put("alice", []byte("two")))
	require.NoError(t, store.Put("../bob", []byte("escaped")))

	value, err := store.Get("alice")
	require.NoError(t, err)
	require.Equal(t, "two", string(value))

	value, err = store.Get("../bob")
	require.NoError(t, err)
	require.Equal(t, "escaped", string(value))
}
