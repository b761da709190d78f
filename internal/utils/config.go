package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/pkg/file"
)

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// HubConfig represents the structure of the hub configuration file.
type HubConfig struct {
	LogLevel string `yaml:"log_level"` // zerolog level name

	HTTP struct {
		Address         string        `yaml:"address"`          // Listen address of the HTTP API
		ReadTimeout     time.Duration `yaml:"read_timeout"`     // Request read timeout
		WriteTimeout    time.Duration `yaml:"write_timeout"`    // Response write timeout
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Grace period for in-flight requests
		AccountHeader   string        `yaml:"account_header"`   // Header carrying the authenticated account id
	} `yaml:"http"`

	Storage struct {
		Driver string `yaml:"driver"` // "memory" or "postgres"
		DSN    string `yaml:"dsn"`    // PostgreSQL connection string
	} `yaml:"storage"`

	Validation struct {
		FetchTimeout        time.Duration `yaml:"fetch_timeout"`         // Hard timeout of a direct probe
		Policy              string        `yaml:"policy"`                // "2xx" or "strict200"
		TaskTimeout         time.Duration `yaml:"task_timeout"`          // Age after which an in-flight task is abandoned
		MaxAttempts         int           `yaml:"max_attempts"`          // Dispatch attempts per task
		ProtocolConstraint  string        `yaml:"protocol_constraint"`   // Accepted validator protocol versions
		RewardPerValidation float64       `yaml:"reward_per_validation"` // Reward notice per accepted result, 0 disables
		PingInterval        time.Duration `yaml:"ping_interval"`         // Interval of hub pings, 0 disables
	} `yaml:"validation"`

	Scheduler struct {
		Enabled          bool          `yaml:"enabled"`           // Enable/disable periodic dispatch
		DispatchInterval time.Duration `yaml:"dispatch_interval"` // Interval between dispatch sweeps
		FallbackDirect   bool          `yaml:"fallback_direct"`   // Probe from the hub when no validator is connected
		Workers          int           `yaml:"workers"`           // Size of the direct probe worker pool
	} `yaml:"scheduler"`

	MQTT struct {
		Enabled       bool   `yaml:"enabled"`        // Enable/disable tick publishing
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate, empty for plain TCP
		Username      string `yaml:"username"`       // Broker username
		Password      string `yaml:"password"`       // Broker password
		Topic         string `yaml:"topic"`          // Topic prefix, ticks go to <topic>/<websiteId>
		QOS           int    `yaml:"qos"`            // MQTT QoS level for tick messages
		Retries       int    `yaml:"retries"`        // Publish retries before a tick event is dropped
		Source        string `yaml:"source"`         // Source name stamped on published events
	} `yaml:"mqtt"`
}

// ValidatorConfig represents the structure of the validator configuration file.
type ValidatorConfig struct {
	LogLevel string `yaml:"log_level"` // zerolog level name

	Hub struct {
		URL              string        `yaml:"url"`               // Websocket URL of the hub
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"` // Websocket handshake timeout
	} `yaml:"hub"`

	Identity struct {
		PrivateKey     string `yaml:"-"`                // Base58 secret key, environment only
		PrivateKeyFile string `yaml:"private_key_file"` // OpenSSH ed25519 key file
		IdentityFile   string `yaml:"identity_file"`    // Where the assigned validator id is kept
		AddressHint    string `yaml:"address_hint"`     // Address reported to the hub
	} `yaml:"identity"`

	Probe struct {
		Timeout        time.Duration `yaml:"timeout"`         // Hard fetch timeout
		Policy         string        `yaml:"policy"`          // "2xx" or "strict200"
		CooldownWindow time.Duration `yaml:"cooldown_window"` // Reuse window for repeated URLs
		UserAgent      string        `yaml:"user_agent"`      // User-Agent of probe requests
	} `yaml:"probe"`

	Heartbeat struct {
		Interval    time.Duration `yaml:"interval"`     // Interval between heartbeats
		CollectLoad bool          `yaml:"collect_load"` // Attach CPU and memory usage
	} `yaml:"heartbeat"`
}

// LoadHubConfig loads the hub configuration from filename, or defaults when filename is empty.
func LoadHubConfig(filename string, fileClient file.FileOperations) (*HubConfig, error) {
	var config HubConfig
	if filename != "" {
		if err := fileClient.ReadYamlFile(filename, &config); err != nil {
			return nil, fmt.Errorf("failed to read hub config: %w", err)
		}
	}
	config.applyDefaults()
	return &config, nil
}

func (c *HubConfig) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.HTTP.AccountHeader == "" {
		c.HTTP.AccountHeader = "X-Account-ID"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Validation.FetchTimeout <= 0 {
		c.Validation.FetchTimeout = constants.DefaultFetchTimeout
	}
	if c.Validation.Policy == "" {
		c.Validation.Policy = constants.PolicyAny2xx
	}
	if c.Validation.TaskTimeout <= 0 {
		c.Validation.TaskTimeout = constants.DefaultTaskTimeout
	}
	if c.Validation.MaxAttempts <= 0 {
		c.Validation.MaxAttempts = constants.DefaultMaxTaskAttempts
	}
	if c.Validation.ProtocolConstraint == "" {
		c.Validation.ProtocolConstraint = constants.DefaultProtocolConstraint
	}
	if c.Scheduler.DispatchInterval <= 0 {
		c.Scheduler.DispatchInterval = time.Minute
	}
	if c.Scheduler.Workers <= 0 {
		c.Scheduler.Workers = 4
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "validate-me-hub"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "validate-me/ticks"
	}
	if c.MQTT.Source == "" {
		c.MQTT.Source = "hub"
	}
}

// ApplyEnv overrides secrets and addresses from the environment.
func (c *HubConfig) ApplyEnv(lookup LookupEnv) {
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.Storage.Driver = "postgres"
		c.Storage.DSN = v
	}
	if v, ok := lookup("HUB_ADDRESS"); ok && v != "" {
		c.HTTP.Address = v
	}
	if v, ok := lookup("MQTT_BROKER"); ok && v != "" {
		c.MQTT.Enabled = true
		c.MQTT.Broker = v
	}
	if v, ok := lookup("MQTT_PASSWORD"); ok {
		c.MQTT.Password = v
	}
}

// Validate reports configuration errors that would fail at runtime.
func (c *HubConfig) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage driver postgres requires a dsn")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if err := validatePolicy(c.Validation.Policy); err != nil {
		return err
	}
	if _, err := semver.NewConstraint(c.Validation.ProtocolConstraint); err != nil {
		return fmt.Errorf("invalid protocol_constraint %q: %w", c.Validation.ProtocolConstraint, err)
	}
	if c.Validation.RewardPerValidation < 0 {
		return fmt.Errorf("reward_per_validation must not be negative")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt enabled without a broker")
	}
	if c.MQTT.QOS < 0 || c.MQTT.QOS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}
	return nil
}

// LoadValidatorConfig loads the validator configuration from filename, or defaults when filename is empty.
func LoadValidatorConfig(filename string, fileClient file.FileOperations) (*ValidatorConfig, error) {
	var config ValidatorConfig
	if filename != "" {
		if err := fileClient.ReadYamlFile(filename, &config); err != nil {
			return nil, fmt.Errorf("failed to read validator config: %w", err)
		}
	}
	config.applyDefaults()
	return &config, nil
}

func (c *ValidatorConfig) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Hub.URL == "" {
		c.Hub.URL = "ws://localhost:8080/ws"
	}
	if c.Hub.HandshakeTimeout <= 0 {
		c.Hub.HandshakeTimeout = 10 * time.Second
	}
	if c.Identity.AddressHint == "" {
		c.Identity.AddressHint = "localhost"
	}
	if c.Probe.Timeout <= 0 {
		c.Probe.Timeout = constants.DefaultFetchTimeout
	}
	if c.Probe.Policy == "" {
		c.Probe.Policy = constants.PolicyAny2xx
	}
	if c.Probe.CooldownWindow <= 0 {
		c.Probe.CooldownWindow = constants.DefaultCooldownWindow
	}
	if c.Heartbeat.Interval <= 0 {
		c.Heartbeat.Interval = constants.DefaultHeartbeatInterval
	}
}

// ApplyEnv overrides the key and addresses from the environment.
func (c *ValidatorConfig) ApplyEnv(lookup LookupEnv) {
	if v, ok := lookup("PRIVATE_KEY"); ok {
		c.Identity.PrivateKey = strings.TrimSpace(v)
	}
	if v, ok := lookup("PRIVATE_KEY_FILE"); ok && v != "" {
		c.Identity.PrivateKeyFile = v
	}
	if v, ok := lookup("WS_SERVER_URL"); ok && v != "" {
		c.Hub.URL = v
	}
	if v, ok := lookup("VALIDATOR_IP"); ok && v != "" {
		c.Identity.AddressHint = v
	}
}

// Validate reports configuration errors. A missing key is an error.
func (c *ValidatorConfig) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if c.Identity.PrivateKey == "" && c.Identity.PrivateKeyFile == "" {
		return fmt.Errorf("PRIVATE_KEY or PRIVATE_KEY_FILE must be set")
	}
	if !strings.HasPrefix(c.Hub.URL, "ws://") && !strings.HasPrefix(c.Hub.URL, "wss://") {
		return fmt.Errorf("hub url %q must use ws or wss", c.Hub.URL)
	}
	if c.Probe.Timeout >= c.Heartbeat.Interval {
		return fmt.Errorf("probe timeout %s must be shorter than heartbeat interval %s", c.Probe.Timeout, c.Heartbeat.Interval)
	}
	return validatePolicy(c.Probe.Policy)
}

func validatePolicy(policy string) error {
	switch policy {
	case constants.PolicyAny2xx, constants.PolicyStrict200:
		return nil
	default:
		return fmt.Errorf("unknown classification policy %q", policy)
	}
}
