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

package cmd

import (
	"runtime"
	"testing"
	"time"

	"github.com/googlecloudplatform/volexec/cfg"
	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getConfigObject(t *testing.T, args []string) (*cfg.Config, error) {
	t.Helper()
	var c *cfg.Config
	cmd, err := NewRootCmd(func(config *cfg.Config) error {
		c = config
		return nil
	})
	require.NoError(t, err)
	cmd.SetArgs(args)
	if err = cmd.Execute(); err != nil {
		return nil, err
	}
	return c, nil
}

func TestArgParsing(t *testing.T) {
	testcases := []struct {
		name     string
		args     []string
		actualFn func(c *cfg.Config) any
		expected any
	}{
		{
			name:     "default batch parallelism is one worker per CPU",
			args:     nil,
			actualFn: func(c *cfg.Config) any { return c.Workers.BatchParallelism },
			expected: int64(runtime.NumCPU()),
		},
		{
			name:     "batch parallelism",
			args:     []string{"--batch-parallelism=4"},
			actualFn: func(c *cfg.Config) any { return c.Workers.BatchParallelism },
			expected: int64(4),
		},
		{
			name:     "default log severity",
			args:     nil,
			actualFn: func(c *cfg.Config) any { return c.Logging.Severity },
			expected: cfg.InfoLogSeverity,
		},
		{
			name:     "log severity is case insensitive",
			args:     []string{"--log-severity", "Warning"},
			actualFn: func(c *cfg.Config) any { return c.Logging.Severity },
			expected: cfg.WarningLogSeverity,
		},
		{
			name:     "debug_mutex implies trace severity",
			args:     []string{"--debug_mutex"},
			actualFn: func(c *cfg.Config) any { return c.Logging.Severity },
			expected: cfg.TraceLogSeverity,
		},
		{
			name:     "explicit severity wins over debug_mutex",
			args:     []string{"--debug_mutex", "--log-severity=error"},
			actualFn: func(c *cfg.Config) any { return c.Logging.Severity },
			expected: cfg.ErrorLogSeverity,
		},
		{
			name:     "debug_invariants",
			args:     []string{"--debug_invariants"},
			actualFn: func(c *cfg.Config) any { return c.Debug.ExitOnInvariantViolation },
			expected: true,
		},
		{
			name:     "log format is lowered",
			args:     []string{"--log-format=TEXT"},
			actualFn: func(c *cfg.Config) any { return c.Logging.Format },
			expected: cfg.TextLogFormat,
		},
		{
			name:     "event interval",
			args:     []string{"--session-event-interval=5ms"},
			actualFn: func(c *cfg.Config) any { return c.Session.EventInterval },
			expected: 5 * time.Millisecond,
		},
		{
			name:     "shutdown timeout",
			args:     []string{"--shutdown-timeout", "1m"},
			actualFn: func(c *cfg.Config) any { return c.Workers.ShutdownTimeout },
			expected: time.Minute,
		},
		{
			name:     "prometheus port",
			args:     []string{"--prometheus-port=9090"},
			actualFn: func(c *cfg.Config) any { return c.Metrics.PrometheusPort },
			expected: int64(9090),
		},
		{
			name: "session sizes",
			args: []string{"--session-contents=7", "--session-tasks=0", "--session-slider-events=3"},
			actualFn: func(c *cfg.Config) any {
				return []int64{c.Session.Contents, c.Session.Tasks, c.Session.SliderEvents}
			},
			expected: []int64{7, 0, 3},
		},
		{
			name:     "log rotation",
			args:     []string{"--log-rotate-compress=false", "--log-rotate-max-file-size-mb=2"},
			actualFn: func(c *cfg.Config) any { return c.Logging.LogRotate },
			expected: cfg.LogRotateLoggingConfig{BackupFileCount: 10, Compress: false, MaxFileSizeMb: 2},
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := getConfigObject(t, tc.args)

			require.NoError(t, err)
			assert.Equal(t, tc.expected, tc.actualFn(c))
		})
	}
}

func TestArgParsing_InvalidValues(t *testing.T) {
	testcases := []struct {
		name string
		args []string
	}{
		{name: "negative batch parallelism", args: []string{"--batch-parallelism=-1"}},
		{name: "unknown log format", args: []string{"--log-format=xml"}},
		{name: "unknown severity", args: []string{"--log-severity=loud"}},
		{name: "port out of range", args: []string{"--prometheus-port=70000"}},
		{name: "zero timepoints", args: []string{"--session-timepoints=0"}},
		{name: "zero shutdown timeout", args: []string{"--shutdown-timeout=0s"}},
		{name: "positional args", args: []string{"abc"}},
		{name: "unknown flag", args: []string{"--foreground"}},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := getConfigObject(t, tc.args)

			assert.Error(t, err)
		})
	}
}

func TestValidConfigFile(t *testing.T) {
	c, err := getConfigObject(t, []string{"--config-file=testdata/valid_config.yml"})

	require.NoError(t, err)
	assert.Equal(t, "viewer", c.AppName)
	assert.Equal(t, cfg.TextLogFormat, c.Logging.Format)
	assert.Equal(t, cfg.DebugLogSeverity, c.Logging.Severity)
	assert.Equal(t, cfg.LogRotateLoggingConfig{BackupFileCount: 2, Compress: true, MaxFileSizeMb: 10}, c.Logging.LogRotate)
	assert.Equal(t, cfg.MetricsConfig{BufferSize: 64, PrometheusPort: 0, Workers: 2}, c.Metrics)
	assert.Equal(t, cfg.WorkersConfig{BatchParallelism: 3, ShutdownTimeout: 5 * time.Second}, c.Workers)
	assert.Equal(t, cfg.SessionConfig{
		Contents:      8,
		EventInterval: 0,
		RenderDelay:   time.Millisecond,
		SliderEvents:  20,
		Tasks:         4,
		Timepoints:    2,
	}, c.Session)
}

func TestFlagOverridesConfigFile(t *testing.T) {
	c, err := getConfigObject(t, []string{"--config-file=testdata/valid_config.yml", "--batch-parallelism=9"})

	require.NoError(t, err)
	assert.Equal(t, int64(9), c.Workers.BatchParallelism)
	assert.Equal(t, int64(8), c.Session.Contents)
}

func TestUnknownKeyInConfigFile(t *testing.T) {
	_, err := getConfigObject(t, []string{"--config-file=testdata/unknown_key_config.yml"})

	if assert.Error(t, err) {
		expectedErr := &mapstructure.Error{}
		assert.ErrorAs(t, err, &expectedErr)
	}
}

func TestInvalidConfigFiles(t *testing.T) {
	for _, f := range []string{
		"testdata/invalid_value_config.yml",
		"testdata/invalid_severity_config.yml",
		"testdata/does_not_exist.yml",
	} {
		t.Run(f, func(t *testing.T) {
			_, err := getConfigObject(t, []string{"--config-file=" + f})

			assert.Error(t, err)
		})
	}
}
