package google

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/taskhub"
	"github.com/dpup/taskhub/logging"
	"github.com/dpup/taskhub/plugins/auth"
	"github.com/dpup/taskhub/plugins/storage"
	"github.com/dpup/taskhub/plugins/storage/memstore"
)

func TestPlugin(t *testing.T) {
	p := Plugin(WithClient("custom-id", "custom-secret"))
	require.NotNil(t, p)
	assert.Equal(t, PluginName, p.Name())
	assert.Equal(t, "custom-id", p.flow.ClientID)
	assert.Equal(t, "custom-secret", p.flow.ClientSecret)
}

func TestGooglePlugin_Deps(t *testing.T) {
	p := Plugin()
	deps := p.Deps()
	assert.Contains(t, deps, auth.PluginName)
	assert.Contains(t, deps, storage.PluginName)
}

func TestGooglePlugin_Init(t *testing.T) {
	tests := []struct {
		name          string
		id, secret    string
		expectedError string
	}{
		{"missing client id", "", "secret", "google: config missing client id"},
		{"missing client secret", "id", "", "google: config missing client secret"},
		{"successful initialization", "test-id", "test-secret", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := &taskhub.Registry{}
			registry.Register(
				storage.Plugin(memstore.New()),
				auth.Plugin(auth.WithSigningKey("k"), auth.WithExpiration(time.Hour)),
			)
			p := Plugin(WithClient(tt.id, tt.secret))
			registry.Register(p)

			err := registry.Init(logging.With(t.Context(), logging.NewNopLogger()))
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, p.flow.Resolver)
			}
		})
	}
}
