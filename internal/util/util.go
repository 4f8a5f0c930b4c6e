// Copyright 2025 Google LLC
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

package util

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// VOLEXEC_PARENT_PROCESS_DIR names the env var holding the directory relative
// paths are resolved against when volexec is launched by another process.
const VOLEXEC_PARENT_PROCESS_DIR = "volexec-parent-process-dir"

// GetResolvedPath turns filePath into an absolute path.
//  1. Empty and absolute paths are returned unchanged.
//  2. Paths starting with ~/ are resolved against the home directory.
//  3. Other relative paths are resolved against VOLEXEC_PARENT_PROCESS_DIR
//     when set, else against the working directory.
func GetResolvedPath(filePath string) (resolvedPath string, err error) {
	if filePath == "" || filepath.IsAbs(filePath) {
		resolvedPath = filePath
		return
	}

	if strings.HasPrefix(filePath, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("fetch home dir: %w", err)
		}
		return filepath.Join(homeDir, filePath[2:]), nil
	}

	parentProcessDir, _ := os.LookupEnv(VOLEXEC_PARENT_PROCESS_DIR)
	parentProcessDir = strings.TrimSpace(parentProcessDir)
	if parentProcessDir == "" {
		return filepath.Abs(filePath)
	}
	return filepath.Join(parentProcessDir, filePath), nil
}

// Clamp limits v to [lo, hi].
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}
