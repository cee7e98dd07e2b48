package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetAndGetValue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SetValue(ctx, "key", `{"a":1}`))

	value, err := s.GetValue(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, value)
}

func TestSetValueReplacesExisting(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SetValue(ctx, "key", "first"))
	require.NoError(t, s.SetValue(ctx, "key", "second"))

	value, err := s.GetValue(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "second", value)
}

func TestGetValueMissingKey(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetValue(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestDeleteValue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SetValue(ctx, "key", "value"))
	require.NoError(t, s.DeleteValue(ctx, "key"))

	_, err := s.GetValue(ctx, "key")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	assert.NoError(t, s.DeleteValue(ctx, "key"), "deleting an absent key is not an error")
}

func TestOpenCreatesSchemaIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.SetValue(context.Background(), "key", "value"))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	value, err := second.GetValue(context.Background(), "key")
	require.NoError(t, err)
	assert.Equal(t, "value", value)
}
