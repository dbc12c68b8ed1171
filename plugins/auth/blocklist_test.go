package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/taskhub/plugins/storage/memstore"
)

func TestNewBlocklist(t *testing.T) {
	store := memstore.New()
	bl := NewBlocklist(store)
	assert.NotNil(t, bl)
}

func TestBlocklist_Block(t *testing.T) {
	ctx := t.Context()
	bl := NewBlocklist(memstore.New())

	err := bl.Block(ctx, "token123")
	require.NoError(t, err)

	blocked, err := bl.IsBlocked(ctx, "token123")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestBlocklist_Block_Idempotent(t *testing.T) {
	ctx := t.Context()
	bl := NewBlocklist(memstore.New())

	require.NoError(t, bl.Block(ctx, "token123"))

	// Blocking the same token again is a no-op.
	require.NoError(t, bl.Block(ctx, "token123"))

	blocked, err := bl.IsBlocked(ctx, "token123")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestBlocklist_IsBlocked_NotBlocked(t *testing.T) {
	bl := NewBlocklist(memstore.New())

	blocked, err := bl.IsBlocked(t.Context(), "nonexistent-token")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestIsBlocked_WithContext(t *testing.T) {
	bl := NewBlocklist(memstore.New())

	err := bl.Block(t.Context(), "token123")
	require.NoError(t, err)

	ctx := ContextWithBlocklist(t.Context(), bl)
	blocked, err := IsBlocked(ctx, "token123")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = IsBlocked(ctx, "token456")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestIsBlocked_NoBlocklistInContext(t *testing.T) {
	// Should return false when no blocklist is present.
	blocked, err := IsBlocked(t.Context(), "any-token")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestMaybeBlock(t *testing.T) {
	bl := NewBlocklist(memstore.New())
	ctx := ContextWithBlocklist(t.Context(), bl)

	err := MaybeBlock(ctx, "token789")
	require.NoError(t, err)

	blocked, err := bl.IsBlocked(ctx, "token789")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestMaybeBlock_NoBlocklistInContext(t *testing.T) {
	// Should not error when no blocklist is present.
	err := MaybeBlock(t.Context(), "any-token")
	require.NoError(t, err)
}

func TestBlockedToken_PK(t *testing.T) {
	bt := &BlockedToken{Key: "test-key-123"}
	assert.Equal(t, "test-key-123", bt.PK())
}
