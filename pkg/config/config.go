// Package config loads and validates configuration for the bounty middleware
// processes (API server, relayer, migration runner).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "15s" decode naturally.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// orDefault returns d, or fallback when d is unset.
func (d Duration) orDefault(fallback time.Duration) Duration {
	if d <= 0 {
		return Duration(fallback)
	}
	return d
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string   `yaml:"host" default:"0.0.0.0"`
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	IdleTimeout     Duration `yaml:"idle_timeout"`
	RequestTimeout  Duration `yaml:"request_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host" default:"localhost" validate:"required"`
	Port     int    `yaml:"port" default:"5432"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	Database string `yaml:"database" validate:"required"`
	SSLMode  string `yaml:"ssl_mode" default:"disable"`
}

// TokenConfig describes one supported escrow token contract.
type TokenConfig struct {
	Address  string `yaml:"address" validate:"required"`
	Decimals int    `yaml:"decimals" default:"6"`
}

// EscrowConfig contains escrow contract and chain client settings.
type EscrowConfig struct {
	RPCURL            string                 `yaml:"rpc_url" validate:"required"`
	ChainID           int64                  `yaml:"chain_id" validate:"required"`
	Contract          string                 `yaml:"contract" validate:"required"`
	RelayerPrivateKey string                 `yaml:"relayer_private_key"`
	GasLimit          uint64                 `yaml:"gas_limit" default:"300000"`
	MaxGasPrice       string                 `yaml:"max_gas_price"`
	CallTimeout       Duration               `yaml:"call_timeout"`
	Tokens            map[string]TokenConfig `yaml:"tokens" validate:"required,min=1"`
}

// GitHubConfig contains GitHub API and webhook settings.
type GitHubConfig struct {
	Token         string   `yaml:"token"`
	WebhookSecret string   `yaml:"webhook_secret"`
	APIBaseURL    string   `yaml:"api_base_url"`
	CallTimeout   Duration `yaml:"call_timeout"`
}

// AuthConfig contains session token settings.
type AuthConfig struct {
	JWTSecret string   `yaml:"jwt_secret"`
	TokenTTL  Duration `yaml:"token_ttl"`
}

// KeyManagementConfig tells the API server where to find the master key
// protecting custodial payer keys.
type KeyManagementConfig struct {
	MasterKeyEnv string `yaml:"master_key_env" default:"ESCROW_MASTER_KEY"`
}

// SweepConfig contains relayer sweep settings.
type SweepConfig struct {
	Interval          Duration `yaml:"interval"`
	ItemDelay         Duration `yaml:"item_delay"`
	BatchLimit        int      `yaml:"batch_limit" default:"50"`
	MaxVerifyAttempts int      `yaml:"max_verify_attempts" default:"5"`
}

// MonitoringConfig contains metrics exposure settings.
type MonitoringConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level" default:"info"`
	Format     string `yaml:"format" default:"json"`
	OutputPath string `yaml:"output_path" default:"stdout"`
}

// APIServerConfig is the configuration of the API server process.
type APIServerConfig struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Escrow        EscrowConfig        `yaml:"escrow"`
	GitHub        GitHubConfig        `yaml:"github"`
	Auth          AuthConfig          `yaml:"auth"`
	KeyManagement KeyManagementConfig `yaml:"key_management"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// RelayerConfig is the configuration of the relayer process.
type RelayerConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Escrow     EscrowConfig     `yaml:"escrow"`
	GitHub     GitHubConfig     `yaml:"github"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoadAPIServer loads the API server configuration from a YAML file.
// Secrets can be supplied (or overridden) through the environment.
func LoadAPIServer(configPath string) (*APIServerConfig, error) {
	var cfg APIServerConfig
	if err := load(configPath, &cfg); err != nil {
		return nil, err
	}

	overrideFromEnv(&cfg.GitHub.Token, "GITHUB_TOKEN")
	overrideFromEnv(&cfg.GitHub.WebhookSecret, "GITHUB_WEBHOOK_SECRET")
	overrideFromEnv(&cfg.Auth.JWTSecret, "JWT_SECRET")

	cfg.Server.normalize(8080)
	cfg.Escrow.normalize()
	cfg.GitHub.normalize()
	cfg.Auth.TokenTTL = cfg.Auth.TokenTTL.orDefault(24 * time.Hour)

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required (or set JWT_SECRET)")
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadRelayer loads the relayer configuration from a YAML file.
func LoadRelayer(configPath string) (*RelayerConfig, error) {
	var cfg RelayerConfig
	if err := load(configPath, &cfg); err != nil {
		return nil, err
	}

	overrideFromEnv(&cfg.GitHub.Token, "GITHUB_TOKEN")
	overrideFromEnv(&cfg.Escrow.RelayerPrivateKey, "RELAYER_PRIVATE_KEY")

	cfg.Server.normalize(9090)
	cfg.Escrow.normalize()
	cfg.GitHub.normalize()
	cfg.Sweep.Interval = cfg.Sweep.Interval.orDefault(time.Minute)
	cfg.Sweep.ItemDelay = cfg.Sweep.ItemDelay.orDefault(2 * time.Second)

	if cfg.Escrow.RelayerPrivateKey == "" {
		return nil, fmt.Errorf("escrow.relayer_private_key is required (or set RELAYER_PRIVATE_KEY)")
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func load(configPath string, cfg any) error {
	if err := defaults.Set(cfg); err != nil {
		return fmt.Errorf("apply config defaults: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func validate(cfg any) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func overrideFromEnv(target *string, envVar string) {
	if v := os.Getenv(envVar); v != "" {
		*target = v
	}
}

func (c *ServerConfig) normalize(defaultPort int) {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	c.ReadTimeout = c.ReadTimeout.orDefault(15 * time.Second)
	c.WriteTimeout = c.WriteTimeout.orDefault(15 * time.Second)
	c.IdleTimeout = c.IdleTimeout.orDefault(60 * time.Second)
	c.RequestTimeout = c.RequestTimeout.orDefault(60 * time.Second)
	c.ShutdownTimeout = c.ShutdownTimeout.orDefault(30 * time.Second)
}

func (c *EscrowConfig) normalize() {
	c.CallTimeout = c.CallTimeout.orDefault(90 * time.Second)
}

func (c *GitHubConfig) normalize() {
	c.CallTimeout = c.CallTimeout.orDefault(30 * time.Second)
}
