package taskhub

import (
	"context"
	"time"

	"github.com/dpup/taskhub/internal/config"
	"github.com/dpup/taskhub/serverutil"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Filename of the standard configuration file.
const ConfigFile = "taskhub.yaml"

// ConfigKeyInfo contains metadata about a known configuration key.
// This is re-exported from internal/config for public API use.
type ConfigKeyInfo = config.ConfigKeyInfo

// ConfigInjector is a function that injects configuration into a context.
type ConfigInjector func(context.Context) context.Context

// Config is a global koanf instance used to access application level
// configuration options.
//
// Config is loaded in the following order (later sources override earlier):
// 1. Built-in defaults
// 2. Auto-discovered taskhub.yaml
// 3. Environment variables with TH__ prefix
// 4. Additional sources loaded via LoadConfigFile() or LoadConfigDefaults()
//
// Environment variable transformation:
//   - TH__AUTH__SIGNING_KEY → auth.signingKey
//   - TH__AUTH__TELEGRAM__BOT_TOKEN → auth.telegram.botToken
var Config = koanf.New(".")

func init() {
	registerCoreConfigKeys()

	// Look for a taskhub.yaml file in the current directory or any parent.
	if cfg := config.SearchForConfig(ConfigFile, "."); cfg != "" {
		if err := Config.Load(file.Provider(cfg), yaml.Parser()); err != nil {
			panic("error loading config: " + err.Error())
		}
	}

	// Load environment variables with the prefix TH__.
	if err := Config.Load(env.Provider("TH__", ".", config.TransformEnv), nil); err != nil {
		panic("error loading env config: " + err.Error())
	}
}

// RegisterConfigKey registers a known configuration key with metadata.
// This should be called by core code and plugins to document expected config
// keys.
//
// Example:
//
//	taskhub.RegisterConfigKey(taskhub.ConfigKeyInfo{
//	    Key:         "auth.signingKey",
//	    Description: "JWT signing key for identity tokens",
//	    Type:        "string",
//	})
func RegisterConfigKey(info ConfigKeyInfo) {
	config.RegisterConfigKey(info)
}

// RegisterConfigKeys registers multiple configuration keys at once.
func RegisterConfigKeys(infos ...ConfigKeyInfo) {
	config.RegisterConfigKeys(infos...)
}

// LoadConfigFile loads additional configuration from a YAML file into the
// global Config instance.
func LoadConfigFile(path string) {
	if err := Config.Load(file.Provider(path), yaml.Parser()); err != nil {
		panic("error loading config file '" + path + "': " + err.Error())
	}
}

// LoadConfigDefaults loads default configuration values into the global
// Config instance. Call this before initializing plugins to provide
// application-specific defaults that can be overridden by files or env vars.
func LoadConfigDefaults(defaults map[string]interface{}) {
	if err := Config.Load(confmap.Provider(defaults, "."), nil); err != nil {
		panic("error loading config defaults: " + err.Error())
	}
}

// ValidateConfig checks all loaded configuration keys against the registry
// and returns a human readable warning for unknown or deprecated keys.
// Returns the empty string if everything checks out.
func ValidateConfig() string {
	config.EnsureDefaultsLoaded(Config)
	return config.FormatValidationWarnings(config.ValidateConfigKeys(Config))
}

// Configuration Access Functions
//
// These functions provide a clean API for accessing configuration values.
// They delegate to the underlying Config instance. Registered defaults are
// applied on first read. Defaults can't be applied during package init,
// plugins register their keys in their own init functions, which may run
// after this package's.

// ConfigString returns the string value for the given key.
func ConfigString(key string) string {
	config.EnsureDefaultsLoaded(Config)
	return Config.String(key)
}

// ConfigInt returns the int value for the given key.
func ConfigInt(key string) int {
	config.EnsureDefaultsLoaded(Config)
	return Config.Int(key)
}

// ConfigBool returns the bool value for the given key.
func ConfigBool(key string) bool {
	config.EnsureDefaultsLoaded(Config)
	return Config.Bool(key)
}

// ConfigDuration returns the duration value for the given key.
// Duration strings like "5m", "1h", "30s" are parsed automatically.
func ConfigDuration(key string) time.Duration {
	config.EnsureDefaultsLoaded(Config)
	return Config.Duration(key)
}

// ConfigMustDuration returns the duration value for the given key.
// It panics if the key doesn't exist or the value cannot be parsed.
func ConfigMustDuration(key string) time.Duration {
	config.EnsureDefaultsLoaded(Config)
	return Config.MustDuration(key)
}

// ConfigBytes returns the byte slice value for the given key.
func ConfigBytes(key string) []byte {
	config.EnsureDefaultsLoaded(Config)
	return Config.Bytes(key)
}

// ConfigExists checks if the given key exists in the configuration.
func ConfigExists(key string) bool {
	config.EnsureDefaultsLoaded(Config)
	return Config.Exists(key)
}

// NewContext returns a context carrying the externally visible address and
// request scoped configuration from the given injectors. Request handling
// code should derive per-request contexts from this.
func NewContext(ctx context.Context, injectors ...ConfigInjector) context.Context {
	ctx = serverutil.WithAddress(ctx, ConfigString("address"))
	for _, injector := range injectors {
		ctx = injector(ctx)
	}
	return ctx
}

// registerCoreConfigKeys registers core configuration keys with their
// defaults. Called from init() before any config loading happens.
func registerCoreConfigKeys() {
	config.RegisterConfigKeys(
		ConfigKeyInfo{
			Key:         "name",
			Description: "User-facing name that identifies the service",
			Type:        "string",
			Default:     "Taskhub",
		},
		ConfigKeyInfo{
			Key:         "address",
			Description: "External address for the service (used in URL construction)",
			Type:        "string",
			Default:     "http://localhost:8000",
		},
	)
}
