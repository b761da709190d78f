package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/mocks"
	"github.com/GauravPawar101/Validate-me/pkg/file"
)

func envOf(values map[string]string) LookupEnv {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// TestLoadHubConfig_Defaults tests that an empty filename yields a valid default config.
func TestLoadHubConfig_Defaults(t *testing.T) {
	cfg, err := LoadHubConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, "X-Account-ID", cfg.HTTP.AccountHeader)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, constants.DefaultFetchTimeout, cfg.Validation.FetchTimeout)
	assert.Equal(t, constants.DefaultTaskTimeout, cfg.Validation.TaskTimeout)
	assert.Equal(t, constants.DefaultMaxTaskAttempts, cfg.Validation.MaxAttempts)
	assert.Equal(t, constants.PolicyAny2xx, cfg.Validation.Policy)
	assert.NoError(t, cfg.Validate())
}

// TestLoadHubConfig_File tests YAML parsing including durations.
func TestLoadHubConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
http:
  address: ":9000"
validation:
  policy: strict200
  task_timeout: 45s
  reward_per_validation: 0.0001
scheduler:
  enabled: true
  dispatch_interval: 2m
mqtt:
  enabled: true
  broker: tcp://localhost:1883
  qos: 1
`), 0o600))

	cfg, err := LoadHubConfig(path, file.NewFileService())
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9000", cfg.HTTP.Address)
	assert.Equal(t, constants.PolicyStrict200, cfg.Validation.Policy)
	assert.Equal(t, 45*time.Second, cfg.Validation.TaskTimeout)
	assert.Equal(t, 0.0001, cfg.Validation.RewardPerValidation)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.DispatchInterval)
	assert.Equal(t, "validate-me/ticks", cfg.MQTT.Topic)
	assert.NoError(t, cfg.Validate())
}

// TestLoadHubConfig_ReadError tests that a read failure is wrapped.
func TestLoadHubConfig_ReadError(t *testing.T) {
	fileOps := new(mocks.MockFileOperations)
	fileOps.On("ReadYamlFile", "hub.yaml", mock.Anything).Return(os.ErrNotExist)

	_, err := LoadHubConfig("hub.yaml", fileOps)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	fileOps.AssertExpectations(t)
}

// TestHubConfig_ApplyEnv tests the DATABASE_URL and broker overrides.
func TestHubConfig_ApplyEnv(t *testing.T) {
	cfg, err := LoadHubConfig("", nil)
	require.NoError(t, err)

	cfg.ApplyEnv(envOf(map[string]string{
		"DATABASE_URL": "postgres://hub@localhost/validate?sslmode=disable",
		"MQTT_BROKER":  "tcp://broker:1883",
	}))
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://hub@localhost/validate?sslmode=disable", cfg.Storage.DSN)
	assert.True(t, cfg.MQTT.Enabled)
	assert.NoError(t, cfg.Validate())
}

// TestHubConfig_Validate tests rejected settings.
func TestHubConfig_Validate(t *testing.T) {
	cases := map[string]func(c *HubConfig){
		"log level":  func(c *HubConfig) { c.LogLevel = "loud" },
		"driver":     func(c *HubConfig) { c.Storage.Driver = "sqlite" },
		"dsn":        func(c *HubConfig) { c.Storage.Driver = "postgres" },
		"policy":     func(c *HubConfig) { c.Validation.Policy = "3xx" },
		"constraint": func(c *HubConfig) { c.Validation.ProtocolConstraint = "not a range" },
		"reward":     func(c *HubConfig) { c.Validation.RewardPerValidation = -1 },
		"broker":     func(c *HubConfig) { c.MQTT.Enabled = true },
		"qos":        func(c *HubConfig) { c.MQTT.QOS = 3 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadHubConfig("", nil)
			require.NoError(t, err)
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// TestValidatorConfig_Env tests the environment contract of the validator binary.
func TestValidatorConfig_Env(t *testing.T) {
	cfg, err := LoadValidatorConfig("", nil)
	require.NoError(t, err)
	assert.Error(t, cfg.Validate(), "a key is required")

	cfg.ApplyEnv(envOf(map[string]string{
		"PRIVATE_KEY":   "  4NwwCq5bBXmXRBN2q7iuCB5JD8wXiVxtTNMVV3gBBsS4  ",
		"WS_SERVER_URL": "wss://hub.example.com/ws",
		"VALIDATOR_IP":  "198.51.100.4",
	}))
	assert.Equal(t, "4NwwCq5bBXmXRBN2q7iuCB5JD8wXiVxtTNMVV3gBBsS4", cfg.Identity.PrivateKey)
	assert.Equal(t, "wss://hub.example.com/ws", cfg.Hub.URL)
	assert.Equal(t, "198.51.100.4", cfg.Identity.AddressHint)
	assert.Equal(t, constants.DefaultCooldownWindow, cfg.Probe.CooldownWindow)
	assert.NoError(t, cfg.Validate())

	cfg.Hub.URL = "http://hub.example.com"
	assert.Error(t, cfg.Validate())

	cfg.Hub.URL = "ws://hub.example.com/ws"
	cfg.Probe.Timeout = time.Minute
	assert.Error(t, cfg.Validate())
}

// TestLoadConfig_Examples tests that the shipped example configs load and validate.
func TestLoadConfig_Examples(t *testing.T) {
	hubCfg, err := LoadHubConfig(filepath.Join("..", "..", "configs", "hub.yaml"), file.NewFileService())
	require.NoError(t, err)
	assert.NoError(t, hubCfg.Validate())
	assert.True(t, hubCfg.Scheduler.FallbackDirect)

	validatorCfg, err := LoadValidatorConfig(filepath.Join("..", "..", "configs", "validator.yaml"), file.NewFileService())
	require.NoError(t, err)
	validatorCfg.ApplyEnv(envOf(map[string]string{"PRIVATE_KEY": "key"}))
	assert.NoError(t, validatorCfg.Validate())
	assert.Equal(t, 60*time.Second, validatorCfg.Probe.CooldownWindow)
}
