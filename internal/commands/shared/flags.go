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

// Package shared holds flag state, exit codes, and output styling used by
// every hubbridge command.
package shared

import "github.com/spf13/cobra"

// Values of the persistent flags, bound once by BindGlobalFlags and read
// by any command through the accessors below.
var (
	verboseFlag bool
	quietFlag   bool
	jsonFlag    bool
	configFlag  string

	// Build-time version information, injected via SetVersion.
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// BindGlobalFlags registers the persistent flags every hubbridge command
// shares on the given root command.
func BindGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config file (default: ~/.config/hubbridge/config.yaml)")
}

// SetVersion records build-time version information (called from main).
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

// GetVerbose reports whether --verbose was given.
func GetVerbose() bool {
	return verboseFlag
}

// GetQuiet reports whether --quiet was given.
func GetQuiet() bool {
	return quietFlag
}

// GetJSON reports whether --json was given.
func GetJSON() bool {
	return jsonFlag
}

// GetConfigPath returns the --config value, empty when unset.
func GetConfigPath() string {
	return configFlag
}

// GetVersion returns the recorded version, commit, and build date.
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// SetConfigPathForTest overrides the config path in tests.
func SetConfigPathForTest(path string) {
	configFlag = path
}
