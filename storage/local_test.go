package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir()}, discardLogger())
	require.NoError(t, err)
	return s
}

func TestLocalStorage_PutGet(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	require.NoError(t, s.Put(ctx, "inbox/7/attachments/report.pdf", strings.NewReader("pdf bytes"), PutOptions{}))

	rc, info, err := s.Get(ctx, "inbox/7/attachments/report.pdf")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))
	assert.Equal(t, int64(9), info.Size)
	assert.Equal(t, "application/pdf", info.ContentType)
}

func TestLocalStorage_PutExistingKey(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	require.NoError(t, s.Put(ctx, "a.txt", strings.NewReader("one"), PutOptions{}))

	err := s.Put(ctx, "a.txt", strings.NewReader("two"), PutOptions{})
	assert.True(t, IsKeyExists(err))

	require.NoError(t, s.Put(ctx, "a.txt", strings.NewReader("three"), PutOptions{Overwrite: true}))
	rc, _, err := s.Get(ctx, "a.txt")
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "three", string(data))
}

func TestLocalStorage_PutTooLarge(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	err := s.Put(ctx, "big.bin", strings.NewReader("0123456789"), PutOptions{MaxSize: 4})
	assert.True(t, IsTooLarge(err))

	exists, err := s.Exists(ctx, "big.bin")
	require.NoError(t, err)
	assert.False(t, exists, "oversized file should be removed")
}

func TestLocalStorage_InvalidKeys(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	for _, key := range []string{"", ".", "../escape.txt", "a/../../escape.txt", "/etc/passwd"} {
		t.Run(key, func(t *testing.T) {
			err := s.Put(ctx, key, strings.NewReader("x"), PutOptions{})
			assert.True(t, IsInvalidKey(err), "Put(%q) error = %v", key, err)
		})
	}
}

func TestLocalStorage_GetMissing(t *testing.T) {
	_, _, err := newLocal(t).Get(context.Background(), "nope.txt")
	assert.True(t, IsNotFound(err))

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Get", se.Op)
	assert.Equal(t, "nope.txt", se.Key)
}

func TestLocalStorage_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	require.NoError(t, s.Put(ctx, "x.txt", strings.NewReader("x"), PutOptions{}))
	require.NoError(t, s.Delete(ctx, "x.txt"))
	require.NoError(t, s.Delete(ctx, "x.txt"))

	exists, err := s.Exists(ctx, "x.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_URL(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()

	withBase, err := NewLocalStorage(LocalConfig{BasePath: base, BaseURL: "http://localhost:8080/files/"}, discardLogger())
	require.NoError(t, err)
	u, err := withBase.URL(ctx, "a/b.png", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/a/b.png", u)

	plain, err := NewLocalStorage(LocalConfig{BasePath: base}, discardLogger())
	require.NoError(t, err)
	u, err = plain.URL(ctx, "a/b.png", 0)
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(base, "a", "b.png")), u)
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newLocal(t).Put(ctx, "a.txt", strings.NewReader("x"), PutOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewLocalStorage_RequiresBasePath(t *testing.T) {
	_, err := NewLocalStorage(LocalConfig{}, discardLogger())
	assert.Error(t, err)
}
