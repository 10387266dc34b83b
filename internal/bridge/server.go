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

// Package bridge exposes configured hub methods as MCP tools over stdio.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/hubbridge/hubbridge/internal/config"
	"github.com/hubbridge/hubbridge/internal/hub"
)

// Invoker is the hub surface the bridge needs: invoke a method and report
// connection status. *hub.Manager satisfies it.
type Invoker interface {
	InvokeRaw(ctx context.Context, method string, payload any) (json.RawMessage, error)
	State() hub.State
	Endpoint() string
}

// Observer receives the outcome of every tool-driven hub invocation.
// Implementations record metrics, spans, or audit rows.
type Observer interface {
	ObserveInvocation(ctx context.Context, method string, duration time.Duration, err error)
}

// ServerConfig configures the bridge server.
type ServerConfig struct {
	// Bridge is the tool surface configuration.
	Bridge config.BridgeConfig

	// Version is the hubbridge version advertised to MCP clients.
	Version string

	// Invoker performs hub invocations for tool calls.
	Invoker Invoker

	// Logger receives tool call events. Must write to stderr; stdout
	// carries the MCP protocol.
	Logger *slog.Logger

	// Observers are notified of every invocation outcome.
	Observers []Observer
}

// Server publishes configured hub methods as MCP tools and serves them
// over stdio.
type Server struct {
	mcpServer *server.MCPServer
	invoker   Invoker
	limiter   *rate.Limiter
	transform *Transformer
	logger    *slog.Logger
	observers []Observer

	// mu protects published, the names of currently registered config
	// tools, across Reload
	mu        sync.Mutex
	published []string
}

// NewServer creates a bridge server and publishes the configured tools.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Invoker == nil {
		return nil, fmt.Errorf("bridge: invoker is required")
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	name := cfg.Bridge.Name
	if name == "" {
		name = "hubbridge"
	}

	s := &Server{
		mcpServer: server.NewMCPServer(name, cfg.Version,
			server.WithToolCapabilities(true),
		),
		invoker:   cfg.Invoker,
		limiter:   newLimiter(cfg.Bridge.Rate),
		transform: NewTransformer(),
		logger:    cfg.Logger,
		observers: cfg.Observers,
	}

	s.registerStatusTool()

	if err := s.publish(cfg.Bridge); err != nil {
		return nil, err
	}

	return s, nil
}

// newLimiter builds a token bucket from the rate configuration. A zero
// rate means unlimited.
func newLimiter(cfg config.RateConfig) *rate.Limiter {
	if cfg.PerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(math.Ceil(cfg.PerSecond))
	}
	return rate.NewLimiter(rate.Limit(cfg.PerSecond), burst)
}

// publish registers every configured tool that passes the allow/block
// filter. Caller must not hold mu.
func (s *Server) publish(cfg config.BridgeConfig) error {
	filter, err := NewFilter(cfg.Allowed, cfg.Blocked)
	if err != nil {
		return fmt.Errorf("bridge: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for _, tool := range cfg.Tools {
		if !filter.Admits(tool.Name) {
			s.logger.Debug("tool filtered out", "tool", tool.Name)
			continue
		}
		s.mcpServer.AddTool(buildTool(tool), s.toolHandler(tool))
		names = append(names, tool.Name)
	}
	s.published = names

	s.logger.Info("tools published", "count", len(names))
	return nil
}

// Reload replaces the published tool set and rate limits with a new
// configuration. Connected clients are notified through the MCP tool list
// changed notification.
func (s *Server) Reload(cfg config.BridgeConfig) error {
	s.mu.Lock()
	if len(s.published) > 0 {
		s.mcpServer.DeleteTools(s.published...)
		s.published = nil
	}
	s.mu.Unlock()

	s.limiter.SetLimit(limitFor(cfg.Rate))
	s.limiter.SetBurst(burstFor(cfg.Rate))

	return s.publish(cfg)
}

func limitFor(cfg config.RateConfig) rate.Limit {
	if cfg.PerSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(cfg.PerSecond)
}

func burstFor(cfg config.RateConfig) int {
	if cfg.PerSecond <= 0 {
		return 0
	}
	if cfg.Burst > 0 {
		return cfg.Burst
	}
	return int(math.Ceil(cfg.PerSecond))
}

// buildTool converts a tool declaration into its MCP schema.
func buildTool(cfg config.ToolConfig) mcp.Tool {
	properties := make(map[string]interface{}, len(cfg.Properties))
	for name, prop := range cfg.Properties {
		p := map[string]interface{}{"type": prop.Type}
		if prop.Description != "" {
			p["description"] = prop.Description
		}
		properties[name] = p
	}

	tool := mcp.Tool{
		Name:        cfg.Name,
		Description: cfg.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: properties,
			Required:   cfg.Required,
		},
	}
	if cfg.ReadOnly {
		tool.Annotations = mcp.ToolAnnotation{
			ReadOnlyHint: mcp.ToBoolPtr(true),
		}
	}
	return tool
}

// toolHandler returns the MCP handler for one configured tool. All failure
// modes fold into a tool error result; the handler never returns a Go
// error, which would tear down the whole session.
func (s *Server) toolHandler(cfg config.ToolConfig) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !s.limiter.Allow() {
			s.logger.Warn("tool call rate limited", "tool", cfg.Name)
			return mcp.NewToolResultError("rate limit exceeded, retry shortly"), nil
		}

		args := request.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}
		for _, required := range cfg.Required {
			if _, ok := args[required]; !ok {
				return mcp.NewToolResultError(
					fmt.Sprintf("missing required argument %q", required)), nil
			}
		}

		start := time.Now()
		raw, err := s.invoker.InvokeRaw(ctx, cfg.Method, args)
		duration := time.Since(start)
		s.observe(ctx, cfg.Method, duration, err)

		if err != nil {
			s.logger.Warn("tool invocation failed",
				"tool", cfg.Name, "method", cfg.Method, "error", err)
			return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", cfg.Name, err)), nil
		}

		s.logger.Debug("tool invocation completed",
			"tool", cfg.Name, "method", cfg.Method, "duration", duration)

		out, err := s.transform.Apply(ctx, cfg.Transform, raw)
		if err != nil {
			return mcp.NewToolResultError(
				fmt.Sprintf("%s result transform failed: %v", cfg.Name, err)), nil
		}

		if len(out) == 0 {
			out = json.RawMessage("null")
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}

// observe notifies every observer of an invocation outcome.
func (s *Server) observe(ctx context.Context, method string, duration time.Duration, err error) {
	for _, o := range s.observers {
		o.ObserveInvocation(ctx, method, duration, err)
	}
}

// Run serves MCP over stdio until the client closes the stream.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("bridge serving on stdio")
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("bridge: stdio server error: %w", err)
	}
	return nil
}
