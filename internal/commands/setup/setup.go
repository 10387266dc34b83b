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

// Package setup implements the interactive setup wizard.
package setup

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/hubbridge/hubbridge/internal/auth"
	"github.com/hubbridge/hubbridge/internal/commands/shared"
	"github.com/hubbridge/hubbridge/internal/config"
	"github.com/hubbridge/hubbridge/internal/hub"
	"github.com/hubbridge/hubbridge/internal/hub/transport"
	"github.com/hubbridge/hubbridge/internal/log"
	"github.com/hubbridge/hubbridge/internal/secrets"
)

const (
	authChoiceNone   = "none"
	authChoiceToken  = "token"
	authChoiceOAuth2 = "client_credentials"
)

var setupForce bool

// NewCommand creates the setup command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive configuration wizard",
		Long: `Walk through configuring hubbridge: hub endpoint, authentication, and
credential storage. Tokens entered here go into the secret store, not
the config file.

Examples:
  hubbridge setup
  hubbridge setup --config ./hubbridge.yaml`,
		Args: cobra.NoArgs,
		RunE: runSetup,
	}

	cmd.Flags().BoolVar(&setupForce, "force", false, "Overwrite existing configuration without asking")

	return cmd
}

func runSetup(cmd *cobra.Command, args []string) error {
	path := shared.GetConfigPath()
	if path == "" {
		var err error
		path, err = config.ConfigPath()
		if err != nil {
			return shared.NewConfigError("failed to locate config directory", err)
		}
	}

	if !setupForce {
		if _, err := os.Stat(path); err == nil {
			overwrite := false
			prompt := &survey.Confirm{
				Message: fmt.Sprintf("Config file %s already exists. Overwrite it?", path),
			}
			if err := survey.AskOne(prompt, &overwrite); err != nil {
				return err
			}
			if !overwrite {
				cmd.Println("Setup canceled")
				return nil
			}
		}
	}

	cfg := config.Default()

	endpoint, authChoice, err := askEndpointAndAuth(cfg)
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			cmd.Println("Setup canceled")
			return nil
		}
		return err
	}
	cfg.Endpoint = endpoint

	switch authChoice {
	case authChoiceNone:
		cfg.Auth.Mode = "none"

	case authChoiceToken:
		if err := askAndStoreToken(cmd, cfg); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				cmd.Println("Setup canceled")
				return nil
			}
			return err
		}

	case authChoiceOAuth2:
		if err := askOAuth2(cmd, cfg); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				cmd.Println("Setup canceled")
				return nil
			}
			return err
		}
	}

	written, err := config.Save(cfg, path)
	if err != nil {
		return shared.NewConfigError("failed to write config file", err)
	}
	cmd.Println(shared.RenderOK(fmt.Sprintf("configuration written to %s", written)))

	testNow := true
	prompt := &survey.Confirm{
		Message: "Test the hub connection now?",
		Default: true,
	}
	if err := survey.AskOne(prompt, &testNow); err != nil {
		return err
	}
	if testNow {
		return testConnection(cmd, cfg)
	}

	cmd.Println("Run 'hubbridge status' at any time to verify connectivity.")
	return nil
}

// askEndpointAndAuth collects the hub endpoint and the auth mode choice.
func askEndpointAndAuth(cfg *config.Config) (string, string, error) {
	endpoint := cfg.Endpoint
	authChoice := authChoiceNone

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Hub endpoint:").
				Description("WebSocket address of the application hub, e.g. wss://hub.example.com/live").
				Value(&endpoint).
				Validate(validateEndpoint),
			huh.NewSelect[string]().
				Title("Authentication:").
				Options(
					huh.NewOption("None (open hub)", authChoiceNone),
					huh.NewOption("Bearer token (stored in secret store)", authChoiceToken),
					huh.NewOption("OAuth2 client credentials", authChoiceOAuth2),
				).
				Value(&authChoice),
		),
	)

	if err := form.Run(); err != nil {
		return "", "", err
	}
	return endpoint, authChoice, nil
}

// askAndStoreToken prompts for a bearer token and stores it in the
// secret store; the config file only references the key.
func askAndStoreToken(cmd *cobra.Command, cfg *config.Config) error {
	var token string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Hub token:").
				Description("Stored in the secret store, never in the config file").
				EchoMode(huh.EchoModePassword).
				Value(&token).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("token is required")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	resolver, err := secrets.DefaultResolver("hubbridge", "")
	if err != nil {
		return shared.NewConfigError("failed to initialize secrets", err)
	}
	backend, err := resolver.Set(context.Background(), "hub-token", token)
	if err != nil {
		return shared.NewConfigError("failed to store token", err)
	}

	cfg.Auth.Mode = "secrets"
	cfg.Auth.SecretKey = "hub-token"
	cmd.Printf("Token stored in %s backend\n", backend)
	return nil
}

// askOAuth2 collects OAuth2 client credentials settings. The client
// secret is written as an environment reference so it never lands in the
// config file in plaintext.
func askOAuth2(cmd *cobra.Command, cfg *config.Config) error {
	var tokenURL, clientID, scopes string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Token URL:").
				Description("OAuth2 token endpoint, e.g. https://auth.example.com/oauth/token").
				Value(&tokenURL).
				Validate(func(s string) error {
					u, err := url.Parse(s)
					if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
						return fmt.Errorf("must be an http(s) URL")
					}
					return nil
				}),
			huh.NewInput().
				Title("Client ID:").
				Value(&clientID).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("client ID is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Scopes (space-separated, optional):").
				Value(&scopes),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Auth.Mode = "client_credentials"
	cfg.Auth.TokenURL = tokenURL
	cfg.Auth.ClientID = clientID
	cfg.Auth.ClientSecret = "${HUBBRIDGE_CLIENT_SECRET}"
	if scopes != "" {
		cfg.Auth.Scopes = strings.Fields(scopes)
	}

	cmd.Println("Export HUBBRIDGE_CLIENT_SECRET before running the bridge; the")
	cmd.Println("config file references it and never stores the secret itself.")
	return nil
}

// testConnection dials the hub once with the freshly written config.
func testConnection(cmd *cobra.Command, cfg *config.Config) error {
	logger := log.New(&log.Config{Level: "error"})

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
		StartTimeout:  10 * time.Second,
		RetryInterval: 10 * time.Second,
		Logger:        logger,
	})
	if err != nil {
		return shared.NewConfigError("invalid connection configuration", err)
	}
	defer manager.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	if !manager.Connect(ctx) {
		cmd.Println(shared.RenderError(fmt.Sprintf("could not connect to %s", cfg.Endpoint)))
		return shared.NewConnectionError("hub unreachable", nil)
	}
	cmd.Println(shared.RenderOK(fmt.Sprintf("connected to %s", cfg.Endpoint)))

	disconnectCtx, cancelDisconnect := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelDisconnect()
	_ = manager.Disconnect(disconnectCtx)
	return nil
}

// validateEndpoint checks the endpoint is a ws:// or wss:// URL.
func validateEndpoint(s string) error {
	if s == "" {
		return fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("not a valid URL")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("endpoint must use ws:// or wss://")
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint is missing a host")
	}
	return nil
}
