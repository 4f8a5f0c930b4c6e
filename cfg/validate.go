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
	"fmt"
)

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be atleast 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

func isValidLogFormat(format string) error {
	if format != TextLogFormat && format != JSONLogFormat {
		return fmt.Errorf("unsupported log format %q: must be %q or %q", format, TextLogFormat, JSONLogFormat)
	}
	return nil
}

func isValidMetricsConfig(c *MetricsConfig) error {
	if c.PrometheusPort < 0 || c.PrometheusPort > MaxPort {
		return fmt.Errorf("prometheus-port must be in [0, %d]", MaxPort)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers should be atleast 1")
	}
	if c.BufferSize < 1 {
		return fmt.Errorf("buffer-size should be atleast 1")
	}
	return nil
}

func isValidWorkersConfig(c *WorkersConfig) error {
	if c.BatchParallelism < 0 {
		return fmt.Errorf("batch-parallelism can't be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown-timeout must be positive")
	}
	return nil
}

func isValidSessionConfig(c *SessionConfig) error {
	if c.Contents < 0 || c.Timepoints < 1 {
		return fmt.Errorf("contents can't be negative and timepoints should be atleast 1")
	}
	if c.SliderEvents < 0 || c.SliderEvents > MaxSliderEvents {
		return fmt.Errorf("slider-events must be in [0, %d]", MaxSliderEvents)
	}
	if c.Tasks < 0 {
		return fmt.Errorf("tasks can't be negative")
	}
	if c.EventInterval < 0 || c.RenderDelay < 0 {
		return fmt.Errorf("event-interval and render-delay can't be negative")
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	var err error

	if err = isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}

	if err = isValidLogFormat(config.Logging.Format); err != nil {
		return fmt.Errorf("error parsing logging config: %w", err)
	}

	if err = isValidMetricsConfig(&config.Metrics); err != nil {
		return fmt.Errorf("error parsing metrics config: %w", err)
	}

	if err = isValidWorkersConfig(&config.Workers); err != nil {
		return fmt.Errorf("error parsing workers config: %w", err)
	}

	if err = isValidSessionConfig(&config.Session); err != nil {
		return fmt.Errorf("error parsing session config: %w", err)
	}

	return nil
}
