package file

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rewire-app/rewire-client/internal/storage"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := New(path)
	require.NoError(t, err)
	return s, path
}

func TestNew_EmptyPath(t *testing.T) {
	t.Parallel()

	_, err := New("")
	require.Error(t, err)
}

func TestGet_MissingKey_ReturnsNotFound(t *testing.T) {
	t.Parallel()

	s, _ := newStore(t)

	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSetGetDelete_RoundTrip(t *testing.T) {
	t.Parallel()

	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, storage.KeyAccessToken, "tok-1"))

	v, err := s.Get(ctx, storage.KeyAccessToken)
	require.NoError(t, err)
	require.Equal(t, "tok-1", v)

	require.NoError(t, s.Delete(ctx, storage.KeyAccessToken))

	_, err = s.Get(ctx, storage.KeyAccessToken)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDelete_MissingKey_NoError(t *testing.T) {
	t.Parallel()

	s, _ := newStore(t)
	require.NoError(t, s.Delete(context.Background(), "missing"))
}

func TestPersistence_AcrossReopen(t *testing.T) {
	t.Parallel()

	s, path := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, storage.KeyUser, `{"email":"a@b.com"}`))
	require.NoError(t, s.Set(ctx, storage.KeyRefreshToken, "refresh-1"))

	reopened, err := New(path)
	require.NoError(t, err)

	v, err := reopened.Get(ctx, storage.KeyUser)
	require.NoError(t, err)
	require.Equal(t, `{"email":"a@b.com"}`, v)

	v, err = reopened.Get(ctx, storage.KeyRefreshToken)
	require.NoError(t, err)
	require.Equal(t, "refresh-1", v)
}

func TestNew_CorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{not-json"), 0o600))

	_, err := New(path)
	require.Error(t, err)
}

func TestFileMode_IsPrivate(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("unix file modes only")
	}

	s, path := newStore(t)
	require.NoError(t, s.Set(context.Background(), storage.KeyAccessToken, "tok"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
