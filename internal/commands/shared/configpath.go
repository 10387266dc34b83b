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
	"os"

	"github.com/hubbridge/hubbridge/internal/config"
)

// ResolveConfigPath returns the --config flag value, or the default
// config file path when the flag is unset and the file exists. An empty
// return means "defaults plus environment only".
func ResolveConfigPath() string {
	if configFlag != "" {
		return configFlag
	}

	defaultPath, err := config.ConfigPath()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(defaultPath); err != nil {
		return ""
	}
	return defaultPath
}
