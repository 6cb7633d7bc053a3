package lock

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLease(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".im.lock")

	lease := New(path)
	ok, err := lease.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), string(contents))

	// acquiring again from the same process is allowed
	ok, err = lease.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lease.Release())
	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLeaseHeldByOtherProcess(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".im.lock")

	// the parent of the test binary is alive for as long as the test runs
	other := os.Getppid()
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(other)), 0644))

	lease := New(path)
	ok, err := lease.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// someone else's lease is left alone
	require.NoError(t, lease.Release())
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestLeaseStale(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".im.lock")

	testcases := []string{"", "garbage", "2147483646"}
	for _, contents := range testcases {
		require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
		ok, err := New(path).Acquire(ctx)
		require.NoError(t, err, contents)
		require.True(t, ok, contents)
	}
}
