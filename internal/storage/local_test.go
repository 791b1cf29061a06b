package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lostfound/apiserver/config"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	l, err := NewLocalStorage(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	require.NoError(t, l.EnsureBucket(context.Background()))
	return l
}

func TestLocalPutGetDelete(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	payload := []byte("not really a png")
	require.NoError(t, l.Put(ctx, "abc.png", bytes.NewReader(payload), int64(len(payload)), "image/png"))

	rc, err := l.Get(ctx, "abc.png")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, payload, got)

	require.NoError(t, l.Delete(ctx, "abc.png"))
	_, err = l.Get(ctx, "abc.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalDeleteMissingIsNoop(t *testing.T) {
	l := newLocal(t)
	assert.NoError(t, l.Delete(context.Background(), "ghost.jpg"))
}

func TestLocalShortWriteLeavesNothing(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	err := l.Put(ctx, "short.png", bytes.NewReader([]byte("abc")), 10, "image/png")
	require.Error(t, err)

	entries, err := os.ReadDir(l.Bucket())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	for _, key := range []string{"", "..", "../etc/passwd", "a/b.png", ".hidden"} {
		t.Run(key, func(t *testing.T) {
			assert.Error(t, l.Put(ctx, key, bytes.NewReader(nil), 0, ""))
			_, err := l.Get(ctx, key)
			assert.Error(t, err)
			assert.Error(t, l.Delete(ctx, key))
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "uploads")

	s, err := NewFromConfig(ctx, config.AssetsConfig{Backend: "local", UploadsDir: dir})
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, dir, s.Bucket())
	assert.NoError(t, s.Close())

	_, err = NewFromConfig(ctx, config.AssetsConfig{Backend: "ftp"})
	assert.Error(t, err)

	_, err = NewFromConfig(ctx, config.AssetsConfig{Backend: "minio"})
	assert.Error(t, err)
}
