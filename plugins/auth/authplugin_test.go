package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/taskhub"
	"github.com/dpup/taskhub/logging"
	"github.com/dpup/taskhub/plugins/eventbus"
	"github.com/dpup/taskhub/plugins/eventbus/membus"
	"github.com/dpup/taskhub/plugins/storage"
	"github.com/dpup/taskhub/plugins/storage/memstore"
)

func TestPlugin(t *testing.T) {
	p := Plugin(
		WithSigningKey("test-signing-key"),
		WithExpiration(24*time.Hour),
	)
	require.NotNil(t, p)
	assert.Equal(t, PluginName, p.Name())
	assert.Equal(t, "test-signing-key", p.jwtSigningKey)
	assert.Equal(t, 24*time.Hour, p.jwtExpiration)
	assert.Len(t, p.identityExtractors, 2) // default extractors
}

func TestWithBlocklist(t *testing.T) {
	bl := NewBlocklist(memstore.New())
	p := Plugin(
		WithBlocklist(bl),
		WithExpiration(24*time.Hour),
	)
	assert.Equal(t, bl, p.blocklist)
}

func TestRandomSigningKey(t *testing.T) {
	key1 := randomSigningKey()
	key2 := randomSigningKey()

	// Keys should be hex-encoded (32 bytes = 64 hex chars)
	assert.Len(t, key1, 64)
	assert.Len(t, key2, 64)

	// Keys should be different (random)
	assert.NotEqual(t, key1, key2)
}

func TestAuthPluginOptDeps(t *testing.T) {
	p := Plugin(WithExpiration(24 * time.Hour))
	deps := p.OptDeps()
	assert.Contains(t, deps, storage.PluginName)
	assert.Contains(t, deps, eventbus.PluginName)
}

func TestAuthPluginInit(t *testing.T) {
	t.Run("WithoutStorage", func(t *testing.T) {
		p := Plugin(WithExpiration(24 * time.Hour))
		registry := &taskhub.Registry{}

		err := p.Init(t.Context(), registry)
		require.NoError(t, err)
		assert.Nil(t, p.blocklist) // No blocklist without storage
	})

	t.Run("WithStorage", func(t *testing.T) {
		p := Plugin(WithExpiration(24 * time.Hour))
		registry := &taskhub.Registry{}
		registry.Register(storage.Plugin(memstore.New()))

		// Need logger in context for Init
		ctx := logging.With(t.Context(), logging.NewDevLogger())
		err := p.Init(ctx, registry)
		require.NoError(t, err)
		assert.NotNil(t, p.blocklist) // Blocklist should be auto-created
	})

	t.Run("WithExistingBlocklist", func(t *testing.T) {
		bl := NewBlocklist(memstore.New())
		p := Plugin(
			WithBlocklist(bl),
			WithExpiration(24*time.Hour),
		)
		registry := &taskhub.Registry{}
		registry.Register(storage.Plugin(memstore.New()))

		ctx := logging.With(t.Context(), logging.NewDevLogger())
		err := p.Init(ctx, registry)
		require.NoError(t, err)
		assert.Equal(t, bl, p.blocklist) // Should keep existing blocklist
	})

	t.Run("WithEventBus", func(t *testing.T) {
		p := Plugin(WithExpiration(24 * time.Hour))
		registry := &taskhub.Registry{}
		registry.Register(eventbus.Plugin(membus.New(t.Context())))

		err := p.Init(t.Context(), registry)
		require.NoError(t, err)
		assert.NotNil(t, p.bus)
	})
}

func TestAuthPluginInjectors(t *testing.T) {
	p := Plugin(
		WithSigningKey("test-key"),
		WithExpiration(24*time.Hour),
	)
	injectors := p.Injectors()
	assert.GreaterOrEqual(t, len(injectors), 4)

	ctx := taskhub.NewContext(t.Context(), injectors...)
	assert.Equal(t, []byte("test-key"), signingKeyFromContext(ctx))
	assert.Equal(t, 24*time.Hour, expirationFromContext(ctx))

	extractors, ok := ctx.Value(identityExtractorsKey{}).([]IdentityExtractor)
	require.True(t, ok)
	assert.Len(t, extractors, 2)
}

func TestAddLoginHandler(t *testing.T) {
	p := Plugin(WithExpiration(24 * time.Hour))

	handler := func(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
		return &LoginResponse{}, nil
	}

	p.AddLoginHandler("test-provider", handler)
	assert.NotNil(t, p.authService.handlers)
	assert.Contains(t, p.authService.handlers, "test-provider")
}

func TestAddIdentityExtractor(t *testing.T) {
	p := Plugin(WithExpiration(24 * time.Hour))
	initialCount := len(p.identityExtractors)

	extractor := func(ctx context.Context) (Identity, error) {
		return Identity{}, ErrNotFound
	}

	p.AddIdentityExtractor(extractor)
	assert.Len(t, p.identityExtractors, initialCount+1)
}

func TestInjectBlocklist(t *testing.T) {
	t.Run("WithBlocklist", func(t *testing.T) {
		bl := NewBlocklist(memstore.New())
		p := Plugin(
			WithBlocklist(bl),
			WithExpiration(24*time.Hour),
		)

		ctx := p.injectBlocklist(t.Context())

		extracted, ok := ctx.Value(blocklistKey{}).(Blocklist)
		require.True(t, ok)
		assert.Equal(t, bl, extracted)
	})

	t.Run("WithoutBlocklist", func(t *testing.T) {
		p := Plugin(WithExpiration(24 * time.Hour))
		ctx := p.injectBlocklist(t.Context())

		// Should return context unchanged
		_, ok := ctx.Value(blocklistKey{}).(Blocklist)
		assert.False(t, ok)
	})
}
