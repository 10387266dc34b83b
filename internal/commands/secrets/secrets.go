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

// Package secrets implements the secrets command for credential storage.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hubbridge/hubbridge/internal/secrets"
)

var (
	secretUnmask bool
	secretForce  bool
)

// NewCommand creates the secrets command for secret management.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage stored credentials (hub tokens, client secrets)",
		Long: `Manage secrets securely using multiple backends.

Secrets are stored in a tiered backend system with automatic fallback:
  1. Environment variables (highest priority, read-only)
  2. System keyring (macOS Keychain, Linux Secret Service, Windows Credential Manager)
  3. Encrypted file (fallback for headless servers, requires HUBBRIDGE_MASTER_KEY)

The hub token lives under the key "hub-token" by default; auth mode
"secrets" reads it on every connection attempt, so rotating the stored
value takes effect on the next reconnect.

Examples:
  hubbridge secrets set hub-token
  hubbridge secrets get hub-token
  hubbridge secrets list
  hubbridge secrets delete hub-token`,
	}

	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newGetCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newDeleteCommand())

	return cmd
}

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret securely",
		Long: `Store a secret in the first available writable backend.

The secret value can be provided via:
  - Interactive prompt (hidden input, default)
  - Standard input: echo "value" | hubbridge secrets set <key>

Examples:
  hubbridge secrets set hub-token
  echo "$TOKEN" | hubbridge secrets set hub-token`,
		Args: cobra.ExactArgs(1),
		RunE: runSet,
	}
}

func newGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Retrieve a secret value",
		Long: `Retrieve a secret from the highest-priority backend holding it.

By default the value is masked. Use --unmask to print it in full.`,
		Args: cobra.ExactArgs(1),
		RunE: runGet,
	}

	cmd.Flags().BoolVar(&secretUnmask, "unmask", false, "Show full value (not masked)")

	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all secret keys",
		Long: `List secret keys across all available backends. Values are never
shown.`,
		Args: cobra.NoArgs,
		RunE: runList,
	}
}

func newDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a secret",
		Long: `Remove a secret from every backend holding it. Requires confirmation
unless --force is used.`,
		Args: cobra.ExactArgs(1),
		RunE: runDelete,
	}

	cmd.Flags().BoolVar(&secretForce, "force", false, "Skip confirmation prompt")

	return cmd
}

func runSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if err := validateKey(key); err != nil {
		return err
	}

	value, err := readSecretValue()
	if err != nil {
		return fmt.Errorf("failed to read secret value: %w", err)
	}
	if value == "" {
		return errors.New("secret value cannot be empty")
	}

	resolver, err := secrets.DefaultResolver("hubbridge", "")
	if err != nil {
		return fmt.Errorf("failed to initialize secrets: %w", err)
	}

	backend, err := resolver.Set(context.Background(), key, value)
	if err != nil {
		if errors.Is(err, secrets.ErrBackendUnavailable) {
			return fmt.Errorf("no writable backend available: %w\n\nTry:\n  1. Check keyring accessibility\n  2. Set HUBBRIDGE_MASTER_KEY to enable the encrypted file backend", err)
		}
		return fmt.Errorf("failed to set secret: %w", err)
	}

	cmd.Printf("Secret %q stored in %s backend\n", key, backend)
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	resolver, err := secrets.DefaultResolver("hubbridge", "")
	if err != nil {
		return fmt.Errorf("failed to initialize secrets: %w", err)
	}

	value, err := resolver.Get(context.Background(), key)
	if err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return fmt.Errorf("secret not found: %q\n\nSet it with: hubbridge secrets set %s", key, key)
		}
		return fmt.Errorf("failed to get secret: %w", err)
	}

	if secretUnmask {
		cmd.Println(value)
	} else {
		cmd.Printf("%s (use --unmask to show full value)\n", maskSecret(value))
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	resolver, err := secrets.DefaultResolver("hubbridge", "")
	if err != nil {
		return fmt.Errorf("failed to initialize secrets: %w", err)
	}

	byBackend, err := resolver.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list secrets: %w", err)
	}
	if len(byBackend) == 0 {
		cmd.Println("No secrets found")
		return nil
	}

	backends := make([]string, 0, len(byBackend))
	for name := range byBackend {
		backends = append(backends, name)
	}
	sort.Strings(backends)

	total := 0
	cmd.Printf("%-40s %s\n", "KEY", "BACKEND")
	cmd.Println(strings.Repeat("-", 56))
	for _, backend := range backends {
		for _, key := range byBackend[backend] {
			cmd.Printf("%-40s %s\n", key, backend)
			total++
		}
	}
	cmd.Printf("\nTotal: %d secret(s)\n", total)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	key := args[0]

	if !secretForce {
		confirmed := false
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("Delete secret %q from all backends?", key),
		}
		if err := survey.AskOne(prompt, &confirmed); err != nil {
			return err
		}
		if !confirmed {
			cmd.Println("Deletion canceled")
			return nil
		}
	}

	resolver, err := secrets.DefaultResolver("hubbridge", "")
	if err != nil {
		return fmt.Errorf("failed to initialize secrets: %w", err)
	}

	if err := resolver.Delete(context.Background(), key); err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return fmt.Errorf("secret not found: %q", key)
		}
		return fmt.Errorf("failed to delete secret: %w", err)
	}

	cmd.Printf("Secret %q deleted\n", key)
	return nil
}

// readSecretValue reads a secret value from stdin or prompts the user.
func readSecretValue() (string, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return "", err
	}

	if (stat.Mode() & os.ModeCharDevice) == 0 {
		// Reading from pipe
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}

	// Interactive prompt with hidden input
	fmt.Print("Enter secret value (hidden): ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // New line after hidden input
	if err != nil {
		return "", err
	}
	return string(bytePassword), nil
}

// maskSecret masks a secret value for display.
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "..." + value[len(value)-4:]
}

// validateKey validates a secret key format.
func validateKey(key string) error {
	if key == "" {
		return errors.New("secret key cannot be empty")
	}
	if strings.ContainsAny(key, " \t") {
		return errors.New("secret key cannot contain whitespace")
	}
	return nil
}
