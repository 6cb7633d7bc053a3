package secret

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBox(t *testing.T) {
	_, err := NewBox("")
	require.ErrorIs(t, err, ErrNoKey)

	box, err := NewBox("correct horse battery staple")
	require.NoError(t, err)

	first, err := box.Seal("hunter2")
	require.NoError(t, err)
	second, err := box.Seal("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, first, second, "every seal uses a fresh nonce")

	for _, sealed := range []string{first, second} {
		plain, err := box.Open(sealed)
		require.NoError(t, err)
		require.Equal(t, "hunter2", plain)
	}

	empty, err := box.Seal("")
	require.NoError(t, err)
	require.Equal(t, "", empty)

	other, err := NewBox("another key")
	require.NoError(t, err)
	_, err = other.Open(first)
	require.Error(t, err)

	_, err = box.Open("bm90IHNlYWxlZA==")
	require.Error(t, err)
}
