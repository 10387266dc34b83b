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

package bridge

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hubbridge/hubbridge/internal/hub"
)

// statusReport is the hub_status tool result.
type statusReport struct {
	Endpoint  string `json:"endpoint"`
	State     string `json:"state"`
	Connected bool   `json:"connected"`
}

// registerStatusTool publishes the built-in hub_status tool. It is always
// available regardless of the configured tool filter so an assistant can
// diagnose connectivity even when every hub tool is blocked.
func (s *Server) registerStatusTool() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "hub_status",
		Description: "Report the current hub connection status: endpoint, connection state, and whether the bridge is connected.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
		Annotations: mcp.ToolAnnotation{
			ReadOnlyHint: mcp.ToBoolPtr(true),
		},
	}, s.handleStatus)
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state := s.invoker.State()
	report := statusReport{
		Endpoint:  s.invoker.Endpoint(),
		State:     state.String(),
		Connected: state == hub.StateConnected,
	}

	out, err := json.Marshal(report)
	if err != nil {
		return mcp.NewToolResultError("failed to encode status"), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
