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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubbridge/hubbridge/internal/config"
	"github.com/hubbridge/hubbridge/internal/hub"
)

// fakeInvoker is a scriptable Invoker for handler tests.
type fakeInvoker struct {
	mu       sync.Mutex
	result   json.RawMessage
	err      error
	state    hub.State
	endpoint string

	lastMethod  string
	lastPayload any
	calls       int
}

func (f *fakeInvoker) InvokeRaw(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMethod = method
	f.lastPayload = payload
	f.calls++
	return f.result, f.err
}

func (f *fakeInvoker) State() hub.State  { return f.state }
func (f *fakeInvoker) Endpoint() string  { return f.endpoint }

// recordingObserver captures invocation outcomes.
type recordingObserver struct {
	mu      sync.Mutex
	methods []string
	errs    []error
}

func (r *recordingObserver) ObserveInvocation(ctx context.Context, method string, duration time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods = append(r.methods, method)
	r.errs = append(r.errs, err)
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "expected text content")
	return text.Text
}

func newTestServer(t *testing.T, bridgeCfg config.BridgeConfig, invoker Invoker, observers ...Observer) *Server {
	t.Helper()
	s, err := NewServer(ServerConfig{
		Bridge:    bridgeCfg,
		Version:   "test",
		Invoker:   invoker,
		Observers: observers,
	})
	require.NoError(t, err)
	return s
}

func TestToolHandlerInvokesHubMethod(t *testing.T) {
	invoker := &fakeInvoker{result: json.RawMessage(`{"id":42,"status":"shipped"}`)}
	observer := &recordingObserver{}

	tool := config.ToolConfig{
		Name:     "get_order",
		Method:   "orders.get",
		Required: []string{"order_id"},
	}
	s := newTestServer(t, config.BridgeConfig{Tools: []config.ToolConfig{tool}}, invoker, observer)

	handler := s.toolHandler(tool)
	result, err := handler(context.Background(), callRequest("get_order", map[string]interface{}{
		"order_id": "42",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"id":42,"status":"shipped"}`, textContent(t, result))

	assert.Equal(t, "orders.get", invoker.lastMethod)
	assert.Equal(t, map[string]interface{}{"order_id": "42"}, invoker.lastPayload)

	require.Len(t, observer.methods, 1)
	assert.Equal(t, "orders.get", observer.methods[0])
	assert.NoError(t, observer.errs[0])
}

func TestToolHandlerMissingRequiredArgument(t *testing.T) {
	invoker := &fakeInvoker{}
	tool := config.ToolConfig{
		Name:     "get_order",
		Method:   "orders.get",
		Required: []string{"order_id"},
	}
	s := newTestServer(t, config.BridgeConfig{}, invoker)

	handler := s.toolHandler(tool)
	result, err := handler(context.Background(), callRequest("get_order", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textContent(t, result), "order_id")
	assert.Zero(t, invoker.calls, "hub must not be invoked on a rejected call")
}

func TestToolHandlerFoldsInvokeErrors(t *testing.T) {
	invoker := &fakeInvoker{err: errors.New("connection refused")}
	observer := &recordingObserver{}
	tool := config.ToolConfig{Name: "get_order", Method: "orders.get"}
	s := newTestServer(t, config.BridgeConfig{}, invoker, observer)

	handler := s.toolHandler(tool)
	result, err := handler(context.Background(), callRequest("get_order", nil))
	require.NoError(t, err, "handler errors must fold into the result")
	assert.True(t, result.IsError)
	assert.Contains(t, textContent(t, result), "get_order failed")

	require.Len(t, observer.errs, 1)
	assert.Error(t, observer.errs[0])
}

func TestToolHandlerAppliesTransform(t *testing.T) {
	invoker := &fakeInvoker{result: json.RawMessage(`{"items":[{"sku":"a"},{"sku":"b"}],"page":1}`)}
	tool := config.ToolConfig{
		Name:      "list_items",
		Method:    "items.list",
		Transform: `[.items[].sku]`,
	}
	s := newTestServer(t, config.BridgeConfig{}, invoker)

	handler := s.toolHandler(tool)
	result, err := handler(context.Background(), callRequest("list_items", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `["a","b"]`, textContent(t, result))
}

func TestToolHandlerRateLimit(t *testing.T) {
	invoker := &fakeInvoker{result: json.RawMessage(`null`)}
	tool := config.ToolConfig{Name: "ping", Method: "ping"}
	s := newTestServer(t, config.BridgeConfig{
		Rate: config.RateConfig{PerSecond: 0.001, Burst: 1},
	}, invoker)

	handler := s.toolHandler(tool)

	first, err := handler(context.Background(), callRequest("ping", nil))
	require.NoError(t, err)
	assert.False(t, first.IsError)

	second, err := handler(context.Background(), callRequest("ping", nil))
	require.NoError(t, err)
	assert.True(t, second.IsError)
	assert.Contains(t, textContent(t, second), "rate limit")
	assert.Equal(t, 1, invoker.calls)
}

func TestStatusToolReportsConnection(t *testing.T) {
	invoker := &fakeInvoker{
		state:    hub.StateConnected,
		endpoint: "wss://hub.example.com/rpc",
	}
	s := newTestServer(t, config.BridgeConfig{}, invoker)

	result, err := s.handleStatus(context.Background(), callRequest("hub_status", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var report statusReport
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &report))
	assert.Equal(t, "wss://hub.example.com/rpc", report.Endpoint)
	assert.True(t, report.Connected)
	assert.Equal(t, hub.StateConnected.String(), report.State)
}

func TestNewServerRejectsInvalidPattern(t *testing.T) {
	_, err := NewServer(ServerConfig{
		Bridge:  config.BridgeConfig{Blocked: []string{"[unclosed"}},
		Invoker: &fakeInvoker{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid tool pattern")
}

func TestReloadReplacesPublishedTools(t *testing.T) {
	invoker := &fakeInvoker{}
	s := newTestServer(t, config.BridgeConfig{
		Tools: []config.ToolConfig{{Name: "old_tool", Method: "old.method"}},
	}, invoker)
	assert.Equal(t, []string{"old_tool"}, s.published)

	require.NoError(t, s.Reload(config.BridgeConfig{
		Tools: []config.ToolConfig{
			{Name: "new_tool", Method: "new.method"},
			{Name: "blocked_tool", Method: "blocked.method"},
		},
		Blocked: []string{"blocked_*"},
	}))
	assert.Equal(t, []string{"new_tool"}, s.published)
}
