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

package shared

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestBindGlobalFlags(t *testing.T) {
	defer func() {
		verboseFlag = false
		quietFlag = false
		jsonFlag = false
		configFlag = ""
	}()

	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	BindGlobalFlags(cmd)

	for _, name := range []string{"verbose", "quiet", "json", "config"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected persistent flag %q to be registered", name)
		}
	}

	cmd.SetArgs([]string{"--verbose", "--json", "--config", "/tmp/hb.yaml"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if !GetVerbose() {
		t.Error("expected --verbose to set the verbose flag")
	}
	if GetQuiet() {
		t.Error("expected quiet flag to stay unset")
	}
	if !GetJSON() {
		t.Error("expected --json to set the JSON flag")
	}
	if got := GetConfigPath(); got != "/tmp/hb.yaml" {
		t.Errorf("expected config path %q, got %q", "/tmp/hb.yaml", got)
	}
}
