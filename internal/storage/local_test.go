package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := NewKey("tenant-a", "reviews", "Invoice.PDF", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(key, "tenant-a/reviews/2026/01/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	require.NoError(t, s.Put(ctx, key, strings.NewReader("signed"), "application/pdf"))
	assert.True(t, s.Exists(key))

	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "signed", string(data))

	require.NoError(t, s.Delete(ctx, key))
	assert.False(t, s.Exists(key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting twice is fine
	assert.NoError(t, s.Delete(ctx, key))
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../outside.txt", "/etc/passwd", "", "a/../../b"} {
		err := s.Put(context.Background(), key, strings.NewReader("x"), "text/plain")
		assert.Error(t, err, key)
	}
}
