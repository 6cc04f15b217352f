// ABOUTME: Tests for the PhoneBook contact store
// ABOUTME: Covers persistence, corrupt documents and rollback on save failure

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhoneBook_SetAndReload(t *testing.T) {
	backend := NewMemoryConfigStore()
	ctx := context.Background()

	pb := NewPhoneBook(ctx, backend, nil)
	_, ok := pb.Get("u-1")
	assert.False(t, ok)

	require.NoError(t, pb.Set(ctx, "u-1", Contact{Phone: "+79990001122", FirstName: "Anna"}))

	reloaded := NewPhoneBook(ctx, backend, nil)
	c, ok := reloaded.Get("u-1")
	require.True(t, ok)
	assert.Equal(t, "+79990001122", c.Phone)
	assert.Equal(t, "Anna", c.FirstName)
	assert.False(t, c.SavedAt.IsZero())
}

func TestPhoneBook_RequiresPhone(t *testing.T) {
	pb := NewPhoneBook(context.Background(), NewMemoryConfigStore(), nil)
	assert.Error(t, pb.Set(context.Background(), "u-1", Contact{FirstName: "Anna"}))
}

func TestPhoneBook_CorruptDocument(t *testing.T) {
	backend := NewMemoryConfigStore()
	backend.Put(DocumentPhones, []byte("[1,2"))

	pb := NewPhoneBook(context.Background(), backend, nil)
	_, ok := pb.Get("u-1")
	assert.False(t, ok)
	require.NoError(t, pb.Set(context.Background(), "u-1", Contact{Phone: "+7"}))
}

func TestPhoneBook_SaveFailureRollsBack(t *testing.T) {
	backend := NewMemoryConfigStore()
	ctx := context.Background()
	pb := NewPhoneBook(ctx, backend, nil)
	require.NoError(t, pb.Set(ctx, "u-1", Contact{Phone: "+1"}))

	backend.SaveErr = errors.New("read-only")
	assert.Error(t, pb.Set(ctx, "u-1", Contact{Phone: "+2"}))
	assert.Error(t, pb.Set(ctx, "u-2", Contact{Phone: "+3"}))

	c, ok := pb.Get("u-1")
	require.True(t, ok)
	assert.Equal(t, "+1", c.Phone)
	_, ok = pb.Get("u-2")
	assert.False(t, ok)
}
