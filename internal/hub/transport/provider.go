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

package transport

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hubbridge/hubbridge/internal/hub"
	bridgeerrors "github.com/hubbridge/hubbridge/pkg/errors"
)

var (
	_ hub.Provider  = (*Provider)(nil)
	_ hub.Transport = (*Client)(nil)
)

// Provider builds WebSocket transports for the connection manager.
type Provider struct {
	opts Options
}

// NewProvider creates a transport provider with the given options.
func NewProvider(opts Options) *Provider {
	return &Provider{opts: opts.withDefaults()}
}

// CreateConnection validates the endpoint and returns an unstarted client
// for it. The manager starts the client as part of its connection attempt,
// so no network activity happens here.
func (p *Provider) CreateConnection(ctx context.Context, endpoint string) (hub.Transport, error) {
	normalized, err := normalizeEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	return NewClient(normalized, p.opts), nil
}

// normalizeEndpoint checks the endpoint URL and rewrites http schemes to
// their WebSocket counterparts.
func normalizeEndpoint(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", &bridgeerrors.ValidationError{
			Field:      "endpoint",
			Message:    fmt.Sprintf("invalid endpoint URL: %v", err),
			Suggestion: "use a ws:// or wss:// URL",
		}
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", &bridgeerrors.ValidationError{
			Field:      "endpoint",
			Message:    fmt.Sprintf("unsupported endpoint scheme %q", u.Scheme),
			Suggestion: "use a ws:// or wss:// URL",
		}
	}

	if u.Host == "" {
		return "", &bridgeerrors.ValidationError{
			Field:      "endpoint",
			Message:    "endpoint has no host",
			Suggestion: "use a ws:// or wss:// URL like wss://hub.example.com/live",
		}
	}

	return u.String(), nil
}
