package proofs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreSaveAndLoad(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("bank transfer receipt 2026-08-12")
	ref, err := store.Save(ctx, data)
	require.NoError(t, err)
	require.Len(t, ref, 64)
	require.True(t, store.Exists(ctx, ref))

	loaded, err := store.Load(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, data, loaded)

	// Content addressing makes re-uploads idempotent.
	again, err := store.Save(ctx, data)
	require.NoError(t, err)
	require.Equal(t, ref, again)
}

func TestStoreRejectsEmpty(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestStoreLoadUnknownRef(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "not-a-ref")
	require.ErrorIs(t, err, ErrNotFound)
	require.False(t, store.Exists(context.Background(), "deadbeef"))
}
