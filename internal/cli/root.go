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

// Package cli assembles the hubbridge command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/hubbridge/hubbridge/internal/commands/shared"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for hubbridge
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hubbridge",
		Short: "hubbridge - bridge AI assistants to your application hub",
		Long: `hubbridge connects AI assistants to an application hub over a
persistent WebSocket RPC channel. It speaks MCP on stdio toward the
assistant and exposes configured hub methods as tools, managing the hub
connection (connect, retry, reconnect) transparently.

Run 'hubbridge setup' to create a configuration interactively.
Run 'hubbridge serve' to start bridging.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	shared.BindGlobalFlags(cmd)

	return cmd
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
