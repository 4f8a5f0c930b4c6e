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

package cfg

import (
	"runtime"
	"strings"
)

// isSet interface is abstraction over the IsSet() method of viper, specially
// added to keep rationalize method simple.
type isSet interface {
	IsSet(string) bool
}

func resolveBatchParallelism(c *WorkersConfig) {
	if c.BatchParallelism == 0 {
		c.BatchParallelism = int64(runtime.NumCPU())
	}
}

// resolveLoggingConfig lowers the log format. Mutex debugging implies TRACE
// severity unless the severity was set explicitly.
func resolveLoggingConfig(v isSet, c *Config) {
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	if c.Debug.LogMutex && !v.IsSet("logging.severity") {
		c.Logging.Severity = TraceLogSeverity
	}
}

// Rationalize updates the config fields based on the values of other fields.
func Rationalize(v isSet, c *Config) error {
	resolveBatchParallelism(&c.Workers)
	resolveLoggingConfig(v, c)
	return nil
}
