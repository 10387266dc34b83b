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

// Package call implements the call command: invoke one hub method from
// the shell.
package call

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/spf13/cobra"

	"github.com/hubbridge/hubbridge/internal/auth"
	"github.com/hubbridge/hubbridge/internal/commands/shared"
	"github.com/hubbridge/hubbridge/internal/config"
	"github.com/hubbridge/hubbridge/internal/hub"
	"github.com/hubbridge/hubbridge/internal/hub/transport"
	"github.com/hubbridge/hubbridge/internal/log"
	"github.com/hubbridge/hubbridge/internal/secrets"
)

var (
	callEndpoint string
	callTimeout  time.Duration
	callExpect   string
)

// NewCommand creates the call command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call METHOD [JSON]",
		Short: "Invoke a hub method once and print the result",
		Long: `Connect to the hub, invoke a single method, print the JSON result,
and disconnect. The optional second argument is the JSON payload.

With --expect, the result is bound as 'result' in a boolean expression;
a false outcome exits with status 1. This makes call usable in health
checks and CI scripts.

Examples:
  hubbridge call orders.get '{"order_id": "42"}'
  hubbridge call system.ping
  hubbridge call orders.get '{"order_id": "42"}' --expect 'result.status == "shipped"'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runCall,
	}

	cmd.Flags().StringVar(&callEndpoint, "endpoint", "", "Hub endpoint URL (overrides config)")
	cmd.Flags().DurationVar(&callTimeout, "timeout", 30*time.Second, "Overall call timeout")
	cmd.Flags().StringVar(&callExpect, "expect", "", "Boolean expression the result must satisfy")

	return cmd
}

func runCall(cmd *cobra.Command, args []string) error {
	method := args[0]

	var payload any
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &payload); err != nil {
			return shared.NewConfigError("payload is not valid JSON", err)
		}
	}

	cfg, err := config.Load(shared.ResolveConfigPath())
	if err != nil {
		return shared.NewConfigError("invalid configuration", err)
	}
	if callEndpoint != "" {
		cfg.Endpoint = callEndpoint
	}

	logLevel := "error"
	if shared.GetVerbose() {
		logLevel = "debug"
	}
	logger := log.New(&log.Config{Level: logLevel, Format: log.FormatText})

	resolver, err := secrets.DefaultResolver("hubbridge", "")
	if err != nil {
		return shared.NewConfigError("failed to initialize secrets", err)
	}
	tokenSource, err := auth.FromConfig(cfg.Auth, resolver, logger)
	if err != nil {
		return shared.NewAuthError("failed to configure authentication", err)
	}

	provider := transport.NewProvider(transport.Options{
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		TokenSource:      tokenSource,
		Logger:           logger,
	})
	manager, err := hub.NewManager(cfg.Endpoint, provider, hub.Options{
		StartTimeout:  cfg.Connection.StartTimeout,
		RetryInterval: cfg.Connection.RetryInterval,
		Logger:        logger,
	})
	if err != nil {
		return shared.NewConfigError("invalid connection configuration", err)
	}
	defer manager.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()

	// InvokeRaw connects implicitly; no separate Connect step needed.
	raw, err := manager.InvokeRaw(ctx, method, payload)
	if err != nil {
		return err
	}

	disconnectCtx, cancelDisconnect := context.WithTimeout(context.Background(), 5*time.Second)
	_ = manager.Disconnect(disconnectCtx)
	cancelDisconnect()

	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	cmd.Println(string(raw))

	if callExpect != "" {
		ok, err := Expect(callExpect, raw)
		if err != nil {
			return shared.NewConfigError("invalid --expect expression", err)
		}
		if !ok {
			return &shared.ExitError{
				Code:    shared.ExitFailure,
				Message: fmt.Sprintf("expectation not met: %s", callExpect),
			}
		}
	}

	return nil
}

// Expect evaluates a boolean expression against the raw JSON result,
// bound as 'result'.
func Expect(expression string, raw json.RawMessage) (bool, error) {
	var result any
	if err := json.Unmarshal(raw, &result); err != nil {
		return false, fmt.Errorf("result is not valid JSON: %w", err)
	}

	env := map[string]any{"result": result}

	program, err := expr.Compile(expression,
		expr.Env(env),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to compile expression: %w", err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression: %w", err)
	}

	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("expression did not yield a boolean")
	}
	return ok, nil
}
