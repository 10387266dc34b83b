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

// Package status implements the status command: a one-shot connectivity
// check against the hub.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

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
	statusEndpoint string
	statusTimeout  time.Duration
)

// report is the JSON shape of the status output.
type report struct {
	Endpoint  string `json:"endpoint"`
	Connected bool   `json:"connected"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewCommand creates the status command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check hub connectivity",
		Long: `Dial the configured hub once and report whether the connection
succeeds. Useful for verifying configuration and credentials before
wiring hubbridge into an assistant.

Examples:
  hubbridge status
  hubbridge status --endpoint wss://hub.example.com/live
  hubbridge status --json`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}

	cmd.Flags().StringVar(&statusEndpoint, "endpoint", "", "Hub endpoint URL (overrides config)")
	cmd.Flags().DurationVar(&statusTimeout, "timeout", 10*time.Second, "Connection timeout")

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(shared.ResolveConfigPath())
	if err != nil {
		return shared.NewConfigError("invalid configuration", err)
	}
	if statusEndpoint != "" {
		cfg.Endpoint = statusEndpoint
	}

	logger := log.New(&log.Config{Level: "error"})
	if shared.GetVerbose() {
		logger = log.New(&log.Config{Level: "debug", Format: log.FormatText})
	}

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
		StartTimeout:  statusTimeout,
		RetryInterval: statusTimeout, // one attempt within the deadline
		Logger:        logger,
	})
	if err != nil {
		return shared.NewConfigError("invalid connection configuration", err)
	}
	defer manager.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
	defer cancel()

	start := time.Now()
	connected := manager.Connect(ctx)
	latency := time.Since(start)

	r := report{
		Endpoint:  cfg.Endpoint,
		Connected: connected,
	}
	if connected {
		r.LatencyMS = latency.Milliseconds()
	} else {
		r.Error = "connection failed"
	}

	if shared.GetJSON() {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
	} else if connected {
		cmd.Println(shared.RenderOK(fmt.Sprintf("connected to %s (%dms)", r.Endpoint, r.LatencyMS)))
	} else {
		cmd.Println(shared.RenderError(fmt.Sprintf("could not connect to %s within %s", r.Endpoint, statusTimeout)))
	}

	if !connected {
		return shared.NewConnectionError("hub unreachable", nil)
	}

	disconnectCtx, cancelDisconnect := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelDisconnect()
	_ = manager.Disconnect(disconnectCtx)

	return nil
}
