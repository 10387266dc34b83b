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

// Package auth supplies bearer tokens for hub connections. Sources are
// selected by configuration: a static token, OAuth2 client credentials,
// or a value from the secret store.
package auth

import (
	"context"
	"log/slog"

	"github.com/hubbridge/hubbridge/internal/config"
	"github.com/hubbridge/hubbridge/internal/log"
	"github.com/hubbridge/hubbridge/internal/secrets"
	bridgeerrors "github.com/hubbridge/hubbridge/pkg/errors"
)

// TokenSource supplies the bearer token attached to hub connection
// requests. An empty token means connect without credentials.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// FromConfig builds the token source selected by the auth configuration.
// The resolver is only consulted for secrets mode and may be nil otherwise.
func FromConfig(cfg config.AuthConfig, resolver *secrets.Resolver, logger *slog.Logger) (TokenSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = log.WithComponent(logger, "auth")

	switch cfg.Mode {
	case "", "none":
		return Anonymous(), nil

	case "static":
		return NewStaticSource(cfg.Token, logger), nil

	case "client_credentials":
		return NewClientCredentialsSource(ClientCredentialsConfig{
			TokenURL:     cfg.TokenURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
		}, logger)

	case "secrets":
		if resolver == nil {
			return nil, &bridgeerrors.AuthError{
				Mode:    "secrets",
				Message: "no secret store available",
			}
		}
		return NewSecretsSource(resolver, cfg.SecretKey, logger), nil

	default:
		return nil, &bridgeerrors.AuthError{
			Mode:    cfg.Mode,
			Message: "unknown auth mode",
		}
	}
}

// anonymousSource connects without credentials.
type anonymousSource struct{}

// Anonymous returns a token source that always yields an empty token.
func Anonymous() TokenSource {
	return anonymousSource{}
}

// Token returns the empty token.
func (anonymousSource) Token(ctx context.Context) (string, error) {
	return "", nil
}

// StaticSource serves a fixed token from configuration. If the token
// happens to be a JWT its expiry is inspected so an expired credential is
// reported at use rather than as an opaque connection rejection.
type StaticSource struct {
	token  string
	logger *slog.Logger
}

// NewStaticSource creates a static token source.
func NewStaticSource(token string, logger *slog.Logger) *StaticSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticSource{token: token, logger: logger}
}

// Token returns the configured token. An expired JWT yields an AuthError
// so the caller sees why the hub would reject it.
func (s *StaticSource) Token(ctx context.Context) (string, error) {
	if expired, exp := Expired(s.token); expired {
		s.logger.Warn("static token is expired", "expired_at", exp)
		return "", &bridgeerrors.AuthError{
			Mode:    "static",
			Message: "configured token is expired",
		}
	}
	return s.token, nil
}

// SecretsSource reads the token from the secret store on every use, so a
// rotated secret takes effect without a restart.
type SecretsSource struct {
	resolver *secrets.Resolver
	key      string
	logger   *slog.Logger
}

// NewSecretsSource creates a secret-store backed token source.
func NewSecretsSource(resolver *secrets.Resolver, key string, logger *slog.Logger) *SecretsSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &SecretsSource{resolver: resolver, key: key, logger: logger}
}

// Token fetches the token from the secret store.
func (s *SecretsSource) Token(ctx context.Context) (string, error) {
	value, err := s.resolver.Get(ctx, s.key)
	if err != nil {
		return "", &bridgeerrors.AuthError{
			Mode:    "secrets",
			Message: "failed to read token from secret store",
			Cause:   err,
		}
	}
	if expired, exp := Expired(value); expired {
		s.logger.Warn("stored token is expired", "key", s.key, "expired_at", exp)
		return "", &bridgeerrors.AuthError{
			Mode:    "secrets",
			Message: "stored token is expired",
		}
	}
	return value, nil
}
