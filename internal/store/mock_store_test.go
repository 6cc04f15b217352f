// ABOUTME: Unit tests for MemoryConfigStore so it behaves like the file and SQLite backends
// ABOUTME: Covers missing documents, copy semantics and injected save failures

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryConfigStore_LoadMissing(t *testing.T) {
	m := NewMemoryConfigStore()
	_, err := m.Load(context.Background(), DocumentDialogs)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryConfigStore_CopiesData(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryConfigStore()

	data := []byte(`{"a":1}`)
	require.NoError(t, m.Save(ctx, "doc", data))
	data[0] = 'X'

	got, err := m.Load(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	got[0] = 'Y'
	again, err := m.Load(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(again))
	assert.Equal(t, 1, m.Saves())
}

func TestMemoryConfigStore_SaveErr(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryConfigStore()
	m.Put("doc", []byte("old"))

	boom := errors.New("disk full")
	m.SaveErr = boom
	assert.ErrorIs(t, m.Save(ctx, "doc", []byte("new")), boom)

	got, err := m.Load(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
	assert.Equal(t, 0, m.Saves())
}
