// Package config loads the client and backend daemon configuration files,
// following the same viper+mapstructure precedence chain (environment
// variable > config file > built-in default) the teacher uses for its own
// daemon configuration. No command-line flags are bound into it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// BackendConfig is one entry in a client's configured backend list.
type BackendConfig struct {
	Name      string `mapstructure:"name" yaml:"name"`
	Address   string `mapstructure:"address" yaml:"address"`
	Transport string `mapstructure:"transport" yaml:"transport"` // "tcp" or "websocket"
	Token     string `mapstructure:"token" yaml:"token"`
}

// PoolOrderingPolicy controls how client.pool assigns GPU ordinals across
// connected backends.
type PoolOrderingPolicy string

const (
	PoolOrderingConfigOrder      PoolOrderingPolicy = "config_order"
	PoolOrderingRoundRobin       PoolOrderingPolicy = "round_robin"
	PoolOrderingLargestVRAMFirst PoolOrderingPolicy = "largest_vram_first"
)

// ClientConfig is the client daemon's full configuration.
type ClientConfig struct {
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
	Backends     []BackendConfig    `mapstructure:"backends" yaml:"backends"`
	PoolOrdering PoolOrderingPolicy `mapstructure:"pool_ordering" yaml:"pool_ordering"`
	IPCSocket    string             `mapstructure:"ipc_socket" yaml:"ipc_socket"`

	ReconnectInitialBackoff time.Duration `mapstructure:"reconnect_initial_backoff" yaml:"reconnect_initial_backoff"`
	ReconnectMaxBackoff     time.Duration `mapstructure:"reconnect_max_backoff" yaml:"reconnect_max_backoff"`
	HeartbeatInterval       time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	HeartbeatTimeout        time.Duration `mapstructure:"heartbeat_timeout" yaml:"heartbeat_timeout"`
}

// ServerConfig is the backend daemon's full configuration.
type ServerConfig struct {
	Logging   LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	BindAddr  string        `mapstructure:"bind_addr" yaml:"bind_addr"`
	Transport string        `mapstructure:"transport" yaml:"transport"` // "tcp" or "websocket"
	ServerID  uint16        `mapstructure:"server_id" yaml:"server_id"`
	MaxClients int          `mapstructure:"max_clients" yaml:"max_clients"`

	AcceptedTokens []string `mapstructure:"accepted_tokens" yaml:"accepted_tokens"`

	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownDrain   time.Duration `mapstructure:"shutdown_drain" yaml:"shutdown_drain"`
	AdminListenAddr string        `mapstructure:"admin_listen_addr" yaml:"admin_listen_addr"`

	SimulatedGPUs []SimulatedGPUConfig `mapstructure:"simulated_gpus" yaml:"simulated_gpus"`
}

// SimulatedGPUConfig seeds the simulated driver's advertised device list
// when no real CUDA/Vulkan driver is loadable (§4.16).
type SimulatedGPUConfig struct {
	DeviceName             string `mapstructure:"device_name" yaml:"device_name"`
	VRAMBytes               uint64 `mapstructure:"vram_bytes" yaml:"vram_bytes"`
	ComputeCapabilityMajor  uint32 `mapstructure:"compute_capability_major" yaml:"compute_capability_major"`
	ComputeCapabilityMinor  uint32 `mapstructure:"compute_capability_minor" yaml:"compute_capability_minor"`
	IsCudaCapable           bool   `mapstructure:"is_cuda_capable" yaml:"is_cuda_capable"`
	IsVulkanCapable         bool   `mapstructure:"is_vulkan_capable" yaml:"is_vulkan_capable"`
}

// LoggingConfig controls logger output, shared between both daemons.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the Prometheus /metrics endpoint.
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr  string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:9090"
	}
}

// ApplyClientDefaults fills in zero-valued fields of cfg with built-in
// defaults, mirroring the teacher's ApplyDefaults pass.
func ApplyClientDefaults(cfg *ClientConfig) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	if cfg.PoolOrdering == "" {
		cfg.PoolOrdering = PoolOrderingConfigOrder
	}
	if cfg.IPCSocket == "" {
		cfg.IPCSocket = defaultIPCSocketPath()
	}
	if cfg.ReconnectInitialBackoff == 0 {
		cfg.ReconnectInitialBackoff = time.Second
	}
	if cfg.ReconnectMaxBackoff == 0 {
		cfg.ReconnectMaxBackoff = 60 * time.Second
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 5 * time.Second
	}
	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = 10 * time.Second
	}
	for i := range cfg.Backends {
		if cfg.Backends[i].Transport == "" {
			cfg.Backends[i].Transport = "tcp"
		}
	}
}

// ApplyServerDefaults fills in zero-valued fields of cfg.
func ApplyServerDefaults(cfg *ServerConfig) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	if cfg.BindAddr == "" {
		cfg.BindAddr = "0.0.0.0:7443"
	}
	if cfg.Transport == "" {
		cfg.Transport = "tcp"
	}
	if cfg.MaxClients == 0 {
		cfg.MaxClients = 64
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.ShutdownDrain == 0 {
		cfg.ShutdownDrain = 10 * time.Second
	}
	if cfg.AdminListenAddr == "" {
		cfg.AdminListenAddr = "127.0.0.1:9091"
	}
}

// ValidateClient enforces the invariants a malformed config file must not
// be allowed to violate.
func ValidateClient(cfg *ClientConfig) error {
	if len(cfg.Backends) == 0 {
		return fmt.Errorf("config: at least one backend must be configured")
	}
	for _, b := range cfg.Backends {
		if b.Address == "" {
			return fmt.Errorf("config: backend %q has no address", b.Name)
		}
		if b.Transport != "tcp" && b.Transport != "websocket" {
			return fmt.Errorf("config: backend %q has invalid transport %q", b.Name, b.Transport)
		}
	}
	if cfg.ReconnectMaxBackoff < cfg.ReconnectInitialBackoff {
		return fmt.Errorf("config: reconnect_max_backoff must be >= reconnect_initial_backoff")
	}
	switch cfg.PoolOrdering {
	case PoolOrderingConfigOrder, PoolOrderingRoundRobin, PoolOrderingLargestVRAMFirst:
	default:
		return fmt.Errorf("config: invalid pool_ordering %q", cfg.PoolOrdering)
	}
	return nil
}

// ValidateServer enforces the invariants a malformed config file must not
// be allowed to violate.
func ValidateServer(cfg *ServerConfig) error {
	if cfg.Transport != "tcp" && cfg.Transport != "websocket" {
		return fmt.Errorf("config: invalid transport %q", cfg.Transport)
	}
	if cfg.MaxClients <= 0 {
		return fmt.Errorf("config: max_clients must be positive")
	}
	return nil
}

func defaultIPCSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "rgpu", "rgpu.sock")
	}
	return filepath.Join(os.TempDir(), "rgpu", "rgpu.sock")
}

// DefaultIPCSocketPath exposes the client daemon's default IPC socket
// path to callers outside this package, such as rgpu-verify, that need
// to reach a running daemon without loading a full config file.
func DefaultIPCSocketPath() string {
	return defaultIPCSocketPath()
}

func newViper(envPrefix, configPath string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}
	return v
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// LoadClient loads a ClientConfig from configPath (TOML or YAML),
// applying environment overrides (RGPU_CLIENT_*) and defaults, then
// validates the result.
func LoadClient(configPath string) (*ClientConfig, error) {
	v := newViper("RGPU_CLIENT", configPath)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read client config: %w", err)
		}
	}
	var cfg ClientConfig
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("config: decode client config: %w", err)
	}
	ApplyClientDefaults(&cfg)
	if err := ValidateClient(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadServer loads a ServerConfig from configPath (TOML or YAML),
// applying environment overrides (RGPU_SERVER_*) and defaults, then
// validates the result.
func LoadServer(configPath string) (*ServerConfig, error) {
	v := newViper("RGPU_SERVER", configPath)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read server config: %w", err)
		}
	}
	var cfg ServerConfig
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("config: decode server config: %w", err)
	}
	ApplyServerDefaults(&cfg)
	if err := ValidateServer(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
