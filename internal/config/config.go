// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads and validates the hubbridge configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	bridgeerrors "github.com/hubbridge/hubbridge/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config represents the complete hubbridge configuration.
type Config struct {
	// Endpoint is the hub address to connect to (ws:// or wss://).
	// Environment: HUBBRIDGE_ENDPOINT
	Endpoint string `yaml:"endpoint"`

	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
	Connection ConnectionConfig `yaml:"connection"`
	Transport  TransportConfig  `yaml:"transport"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Audit      AuditConfig      `yaml:"audit"`
}

// AuthConfig configures how the bridge authenticates against the hub.
type AuthConfig struct {
	// Mode selects the token source: none, static, client_credentials,
	// or secrets.
	// Default: none
	Mode string `yaml:"mode"`

	// Token is the bearer token for static mode. Supports ${VAR} syntax
	// so the literal value can stay out of the config file.
	Token string `yaml:"token,omitempty"`

	// TokenURL is the OAuth2 token endpoint for client_credentials mode.
	TokenURL string `yaml:"token_url,omitempty"`

	// ClientID is the OAuth2 client ID for client_credentials mode.
	ClientID string `yaml:"client_id,omitempty"`

	// ClientSecret is the OAuth2 client secret. Must use ${VAR} syntax so
	// the secret is not stored in plaintext.
	ClientSecret string `yaml:"client_secret,omitempty"`

	// Scopes are the OAuth2 scopes for client_credentials mode.
	Scopes []string `yaml:"scopes,omitempty"`

	// SecretKey is the secret-store key holding the token for secrets mode.
	// Default: hub-token
	SecretKey string `yaml:"secret_key,omitempty"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	// Level is the log level (trace, debug, info, warn, error).
	Level string `yaml:"level"`

	// Format is the log format (text, json).
	Format string `yaml:"format"`

	// AddSource includes source file and line in log output.
	AddSource bool `yaml:"add_source"`
}

// ConnectionConfig configures the connection manager's timing.
type ConnectionConfig struct {
	// StartTimeout bounds a single connection attempt. Default: 30s
	StartTimeout time.Duration `yaml:"start_timeout,omitempty"`

	// RetryInterval is the pause between failed attempts. Default: 5s
	RetryInterval time.Duration `yaml:"retry_interval,omitempty"`

	// StopTimeout bounds a graceful disconnect. Default: 5s
	StopTimeout time.Duration `yaml:"stop_timeout,omitempty"`

	// DisposeTimeout bounds the wait for in-flight work during shutdown.
	// Default: 5s
	DisposeTimeout time.Duration `yaml:"dispose_timeout,omitempty"`
}

// TransportConfig configures the WebSocket transport.
type TransportConfig struct {
	// HandshakeTimeout bounds the dial plus hub handshake. Default: 10s
	HandshakeTimeout time.Duration `yaml:"handshake_timeout,omitempty"`

	// WriteTimeout bounds individual frame writes. Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`

	// PingInterval is the keepalive cadence. Default: 15s
	PingInterval time.Duration `yaml:"ping_interval,omitempty"`
}

// BridgeConfig configures the MCP surface exposed to assistants.
type BridgeConfig struct {
	// Name is the MCP server name advertised to clients. Default: hubbridge
	Name string `yaml:"name,omitempty"`

	// Tools declares the hub methods exposed as MCP tools.
	Tools []ToolConfig `yaml:"tools,omitempty"`

	// Allowed lists tool name patterns that may be exposed. Empty means
	// all tools are allowed. Supports glob patterns like "orders.*".
	Allowed []string `yaml:"allowed,omitempty"`

	// Blocked lists tool name patterns that are never exposed. Blocked
	// patterns take precedence over allowed ones.
	Blocked []string `yaml:"blocked,omitempty"`

	// Rate limits tool invocations.
	Rate RateConfig `yaml:"rate,omitempty"`
}

// ToolConfig declares one hub method exposed as an MCP tool.
type ToolConfig struct {
	// Name is the MCP tool name.
	Name string `yaml:"name"`

	// Description tells the assistant what the tool does.
	Description string `yaml:"description,omitempty"`

	// Method is the hub method the tool invokes.
	Method string `yaml:"method"`

	// ReadOnly marks tools without side effects.
	ReadOnly bool `yaml:"read_only,omitempty"`

	// Properties describes the tool's input schema.
	Properties map[string]PropertyConfig `yaml:"properties,omitempty"`

	// Required lists the property names that must be provided.
	Required []string `yaml:"required,omitempty"`

	// Transform is an optional jq expression applied to the hub result
	// before it is returned to the assistant.
	Transform string `yaml:"transform,omitempty"`
}

// PropertyConfig describes one tool input property.
type PropertyConfig struct {
	// Type is the JSON Schema type (string, number, boolean, object, array).
	Type string `yaml:"type"`

	// Description explains the property to the assistant.
	Description string `yaml:"description,omitempty"`
}

// RateConfig configures invocation rate limiting.
type RateConfig struct {
	// PerSecond is the sustained invocations-per-second limit.
	// Zero disables rate limiting.
	PerSecond float64 `yaml:"per_second,omitempty"`

	// Burst is the burst allowance. Default: ceil(PerSecond) when zero.
	Burst int `yaml:"burst,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled activates span export.
	Enabled bool `yaml:"enabled"`

	// Exporter selects the span exporter: otlp-grpc, otlp-http, console,
	// or none. Default: none
	Exporter string `yaml:"exporter,omitempty"`

	// Endpoint is the collector endpoint for OTLP exporters.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure disables TLS on the OTLP connection (development only).
	Insecure bool `yaml:"insecure,omitempty"`

	// ServiceName overrides the reported service name. Default: hubbridge
	ServiceName string `yaml:"service_name,omitempty"`
}

// MetricsConfig configures the Prometheus metrics listener.
type MetricsConfig struct {
	// Addr is the listen address for the /metrics endpoint (e.g.
	// "127.0.0.1:9464"). Empty disables the listener.
	// Environment: HUBBRIDGE_METRICS_ADDR
	Addr string `yaml:"addr,omitempty"`
}

// AuditConfig configures the SQLite invocation audit log.
type AuditConfig struct {
	// Enabled activates audit logging.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file. Default: <config dir>/audit.db
	// Environment: HUBBRIDGE_AUDIT_DB
	Path string `yaml:"path,omitempty"`

	// MaxAge prunes audit records older than this on startup.
	// Zero keeps everything.
	MaxAge time.Duration `yaml:"max_age,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Auth: AuthConfig{
			Mode:      "none",
			SecretKey: "hub-token",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Connection: ConnectionConfig{
			StartTimeout:   30 * time.Second,
			RetryInterval:  5 * time.Second,
			StopTimeout:    5 * time.Second,
			DisposeTimeout: 5 * time.Second,
		},
		Transport: TransportConfig{
			HandshakeTimeout: 10 * time.Second,
			WriteTimeout:     10 * time.Second,
			PingInterval:     15 * time.Second,
		},
		Bridge: BridgeConfig{
			Name: "hubbridge",
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			ServiceName: "hubbridge",
		},
	}
}

// Load reads the configuration from the given path, applies defaults,
// environment overrides, and ${VAR} expansion, and validates the result.
// An empty path loads defaults plus environment only.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &bridgeerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()
	cfg.expandSecrets()

	if err := cfg.Validate(); err != nil {
		return nil, &bridgeerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// loadFromFile reads and parses a YAML config file.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// applyDefaults fills in zero values with defaults. This allows minimal
// configs (for example just an endpoint) to work without specifying every
// field explicitly.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Auth.Mode == "" {
		c.Auth.Mode = defaults.Auth.Mode
	}
	if c.Auth.SecretKey == "" {
		c.Auth.SecretKey = defaults.Auth.SecretKey
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Connection.StartTimeout == 0 {
		c.Connection.StartTimeout = defaults.Connection.StartTimeout
	}
	if c.Connection.RetryInterval == 0 {
		c.Connection.RetryInterval = defaults.Connection.RetryInterval
	}
	if c.Connection.StopTimeout == 0 {
		c.Connection.StopTimeout = defaults.Connection.StopTimeout
	}
	if c.Connection.DisposeTimeout == 0 {
		c.Connection.DisposeTimeout = defaults.Connection.DisposeTimeout
	}
	if c.Transport.HandshakeTimeout == 0 {
		c.Transport.HandshakeTimeout = defaults.Transport.HandshakeTimeout
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = defaults.Transport.WriteTimeout
	}
	if c.Transport.PingInterval == 0 {
		c.Transport.PingInterval = defaults.Transport.PingInterval
	}
	if c.Bridge.Name == "" {
		c.Bridge.Name = defaults.Bridge.Name
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = defaults.Tracing.Exporter
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaults.Tracing.ServiceName
	}
}

// loadFromEnv applies environment variable overrides.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("HUBBRIDGE_ENDPOINT"); val != "" {
		c.Endpoint = val
	}
	if val := os.Getenv("HUBBRIDGE_TOKEN"); val != "" {
		c.Auth.Mode = "static"
		c.Auth.Token = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}
	if val := os.Getenv("HUBBRIDGE_METRICS_ADDR"); val != "" {
		c.Metrics.Addr = val
	}
	if val := os.Getenv("HUBBRIDGE_AUDIT_DB"); val != "" {
		c.Audit.Enabled = true
		c.Audit.Path = val
	}
	if val := os.Getenv("HUBBRIDGE_TRACE_EXPORTER"); val != "" {
		c.Tracing.Enabled = true
		c.Tracing.Exporter = strings.ToLower(val)
	}
	if val := os.Getenv("HUBBRIDGE_TRACE_ENDPOINT"); val != "" {
		c.Tracing.Endpoint = val
	}
}

// envVarPattern matches ${VAR_NAME} references in secret-bearing fields.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandSecrets resolves ${VAR} references in fields that may carry
// credentials. Unset variables expand to the empty string so validation
// catches them.
func (c *Config) expandSecrets() {
	c.Auth.Token = expandEnvRefs(c.Auth.Token)
	c.Auth.ClientID = expandEnvRefs(c.Auth.ClientID)
	c.Auth.ClientSecret = expandEnvRefs(c.Auth.ClientSecret)
}

// expandEnvRefs replaces ${VAR} references with environment values.
func expandEnvRefs(value string) string {
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

// HasEnvRef reports whether the value contains a ${VAR} reference.
func HasEnvRef(value string) bool {
	return envVarPattern.MatchString(value)
}
