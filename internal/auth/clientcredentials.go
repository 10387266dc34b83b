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

package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	bridgeerrors "github.com/hubbridge/hubbridge/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// refreshThreshold is how close to expiry a cached token is refreshed.
const refreshThreshold = 5 * time.Minute

// ClientCredentialsConfig configures the OAuth2 client-credentials source.
type ClientCredentialsConfig struct {
	// TokenURL is the OAuth2 token endpoint (required).
	TokenURL string

	// ClientID is the OAuth2 client ID (required).
	ClientID string

	// ClientSecret is the OAuth2 client secret (required).
	ClientSecret string

	// Scopes are the requested OAuth2 scopes (optional).
	Scopes []string
}

// ClientCredentialsSource acquires bearer tokens via the OAuth2 client
// credentials flow. Tokens are cached and refreshed shortly before expiry;
// concurrent callers during a refresh wait for the single refresher rather
// than each hitting the token endpoint.
type ClientCredentialsSource struct {
	source oauth2.TokenSource
	logger *slog.Logger

	mu          sync.Mutex
	refreshCond *sync.Cond
	refreshing  bool
	token       *oauth2.Token
}

// NewClientCredentialsSource creates a client-credentials token source.
func NewClientCredentialsSource(cfg ClientCredentialsConfig, logger *slog.Logger) (*ClientCredentialsSource, error) {
	if cfg.TokenURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, &bridgeerrors.AuthError{
			Mode:    "client_credentials",
			Message: "token_url, client_id and client_secret are required",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}

	s := &ClientCredentialsSource{
		source: cc.TokenSource(context.Background()),
		logger: logger,
	}
	s.refreshCond = sync.NewCond(&s.mu)
	return s, nil
}

// Token returns a valid access token, refreshing it when the cached one is
// missing or within the refresh threshold of expiry.
func (s *ClientCredentialsSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()

	for {
		if s.token != nil && !s.needsRefresh() {
			token := s.token.AccessToken
			s.mu.Unlock()
			return token, nil
		}

		if !s.refreshing {
			break
		}
		// Another caller is refreshing; wait for it and re-check.
		s.refreshCond.Wait()
	}

	s.refreshing = true
	s.mu.Unlock()

	token, err := s.source.Token()

	s.mu.Lock()
	s.refreshing = false
	if err == nil {
		s.token = token
	}
	s.refreshCond.Broadcast()
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("token refresh failed", "error", err)
		return "", &bridgeerrors.AuthError{
			Mode:    "client_credentials",
			Message: "failed to acquire token",
			Cause:   err,
		}
	}

	s.logger.Debug("token refreshed", "expires", token.Expiry)
	return token.AccessToken, nil
}

// needsRefresh reports whether the cached token is expired or expires
// within the refresh threshold. Tokens without expiry never refresh.
// Caller holds mu.
func (s *ClientCredentialsSource) needsRefresh() bool {
	if s.token.Expiry.IsZero() {
		return false
	}
	return time.Until(s.token.Expiry) < refreshThreshold
}
