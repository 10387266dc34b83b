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

package config

import (
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// validAuthModes are the accepted values for auth.mode.
var validAuthModes = map[string]bool{
	"none":               true,
	"static":             true,
	"client_credentials": true,
	"secrets":            true,
}

// validExporters are the accepted values for tracing.exporter.
var validExporters = map[string]bool{
	"otlp-grpc": true,
	"otlp-http": true,
	"console":   true,
	"none":      true,
}

// validPropertyTypes are the JSON Schema types accepted for tool properties.
var validPropertyTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"integer": true,
	"boolean": true,
	"object":  true,
	"array":   true,
}

// Validate checks the configuration for consistency. It returns the first
// problem found wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required (set it in the config file or HUBBRIDGE_ENDPOINT)", ErrInvalidConfig)
	}

	if err := c.validateAuth(); err != nil {
		return err
	}

	if !validExporters[c.Tracing.Exporter] {
		return fmt.Errorf("%w: tracing.exporter must be one of otlp-grpc, otlp-http, console, none; got %q",
			ErrInvalidConfig, c.Tracing.Exporter)
	}
	if c.Tracing.Enabled && strings.HasPrefix(c.Tracing.Exporter, "otlp") && c.Tracing.Endpoint == "" {
		return fmt.Errorf("%w: tracing.endpoint is required for exporter %q", ErrInvalidConfig, c.Tracing.Exporter)
	}

	if c.Bridge.Rate.PerSecond < 0 {
		return fmt.Errorf("%w: bridge.rate.per_second cannot be negative", ErrInvalidConfig)
	}
	if c.Bridge.Rate.Burst < 0 {
		return fmt.Errorf("%w: bridge.rate.burst cannot be negative", ErrInvalidConfig)
	}

	if err := c.validateTools(); err != nil {
		return err
	}

	if c.Audit.MaxAge < 0 {
		return fmt.Errorf("%w: audit.max_age cannot be negative", ErrInvalidConfig)
	}

	return nil
}

// validateAuth checks the auth section against its mode.
func (c *Config) validateAuth() error {
	if !validAuthModes[c.Auth.Mode] {
		return fmt.Errorf("%w: auth.mode must be one of none, static, client_credentials, secrets; got %q",
			ErrInvalidConfig, c.Auth.Mode)
	}

	switch c.Auth.Mode {
	case "static":
		if c.Auth.Token == "" {
			return fmt.Errorf("%w: auth.token is required for static mode (use ${VAR} to reference an environment variable)",
				ErrInvalidConfig)
		}
	case "client_credentials":
		if c.Auth.TokenURL == "" {
			return fmt.Errorf("%w: auth.token_url is required for client_credentials mode", ErrInvalidConfig)
		}
		if c.Auth.ClientID == "" {
			return fmt.Errorf("%w: auth.client_id is required for client_credentials mode", ErrInvalidConfig)
		}
		if c.Auth.ClientSecret == "" {
			return fmt.Errorf("%w: auth.client_secret is required for client_credentials mode", ErrInvalidConfig)
		}
	}

	return nil
}

// validateTools checks each declared bridge tool, including that any jq
// transform parses, so bad expressions fail at startup rather than on the
// first invocation.
func (c *Config) validateTools() error {
	seen := make(map[string]bool, len(c.Bridge.Tools))

	for i, tool := range c.Bridge.Tools {
		if tool.Name == "" {
			return fmt.Errorf("%w: bridge.tools[%d].name is required", ErrInvalidConfig, i)
		}
		if seen[tool.Name] {
			return fmt.Errorf("%w: bridge.tools has duplicate name %q", ErrInvalidConfig, tool.Name)
		}
		seen[tool.Name] = true

		if tool.Method == "" {
			return fmt.Errorf("%w: bridge.tools[%d] (%s): method is required", ErrInvalidConfig, i, tool.Name)
		}

		for name, prop := range tool.Properties {
			if !validPropertyTypes[prop.Type] {
				return fmt.Errorf("%w: bridge.tools[%d] (%s): property %q has invalid type %q",
					ErrInvalidConfig, i, tool.Name, name, prop.Type)
			}
		}

		for _, req := range tool.Required {
			if _, ok := tool.Properties[req]; !ok {
				return fmt.Errorf("%w: bridge.tools[%d] (%s): required property %q is not declared",
					ErrInvalidConfig, i, tool.Name, req)
			}
		}

		if tool.Transform != "" {
			if _, err := gojq.Parse(tool.Transform); err != nil {
				return fmt.Errorf("%w: bridge.tools[%d] (%s): invalid jq transform: %v",
					ErrInvalidConfig, i, tool.Name, err)
			}
		}
	}

	return nil
}
