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

package main

import (
	"github.com/hubbridge/hubbridge/internal/cli"
	"github.com/hubbridge/hubbridge/internal/commands/call"
	"github.com/hubbridge/hubbridge/internal/commands/secrets"
	"github.com/hubbridge/hubbridge/internal/commands/serve"
	"github.com/hubbridge/hubbridge/internal/commands/setup"
	"github.com/hubbridge/hubbridge/internal/commands/status"
	versioncmd "github.com/hubbridge/hubbridge/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// Set version information from build-time ldflags
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	// Bridge commands
	rootCmd.AddCommand(serve.NewCommand())
	rootCmd.AddCommand(status.NewCommand())
	rootCmd.AddCommand(call.NewCommand())

	// Configuration and security
	rootCmd.AddCommand(setup.NewCommand())
	rootCmd.AddCommand(secrets.NewCommand())

	// Version command
	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
