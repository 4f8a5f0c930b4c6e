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
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	AppName string `yaml:"app-name"`

	Debug DebugConfig `yaml:"debug"`

	Logging LoggingConfig `yaml:"logging"`

	Metrics MetricsConfig `yaml:"metrics"`

	Session SessionConfig `yaml:"session"`

	Workers WorkersConfig `yaml:"workers"`
}

type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	LogMutex bool `yaml:"log-mutex"`
}

type LogRotateLoggingConfig struct {
	BackupFileCount int64 `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`

	MaxFileSizeMb int64 `yaml:"max-file-size-mb"`
}

type LoggingConfig struct {
	FilePath ResolvedPath `yaml:"file-path"`

	Format string `yaml:"format"`

	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`

	Severity LogSeverity `yaml:"severity"`
}

type MetricsConfig struct {
	BufferSize int64 `yaml:"buffer-size"`

	PrometheusPort int64 `yaml:"prometheus-port"`

	Workers int64 `yaml:"workers"`
}

type SessionConfig struct {
	Contents int64 `yaml:"contents"`

	EventInterval time.Duration `yaml:"event-interval"`

	RenderDelay time.Duration `yaml:"render-delay"`

	SliderEvents int64 `yaml:"slider-events"`

	Tasks int64 `yaml:"tasks"`

	Timepoints int64 `yaml:"timepoints"`
}

type WorkersConfig struct {
	BatchParallelism int64 `yaml:"batch-parallelism"`

	ShutdownTimeout time.Duration `yaml:"shutdown-timeout"`
}

// BindFlags registers every flag on flagSet and binds it to its config key in
// v.
func BindFlags(v *viper.Viper, flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "volexec", "The application name reported in logs and metrics.")

	err = v.BindPFlag("app-name", flagSet.Lookup("app-name"))
	if err != nil {
		return err
	}

	flagSet.IntP("batch-parallelism", "", 0, "Number of workers used by batch operations such as mesh smoothing. 0 means one per CPU.")

	err = v.BindPFlag("workers.batch-parallelism", flagSet.Lookup("batch-parallelism"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug_invariants", "", false, "Exit when internal invariants are violated.")

	err = v.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug_invariants"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug_mutex", "", false, "Print debug messages when a mutex is held too long.")

	err = v.BindPFlag("debug.log-mutex", flagSet.Lookup("debug_mutex"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "The file for storing logs. When not provided, logs are printed to stdout.")

	err = v.BindPFlag("logging.file-path", flagSet.Lookup("log-file"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "json", "The format of the log file: 'text' or 'json'.")

	err = v.BindPFlag("logging.format", flagSet.Lookup("log-format"))
	if err != nil {
		return err
	}

	flagSet.IntP("log-rotate-backup-file-count", "", 10, "The maximum number of backup log files to retain after they have been rotated. 0 retains all backups.")

	err = v.BindPFlag("logging.log-rotate.backup-file-count", flagSet.Lookup("log-rotate-backup-file-count"))
	if err != nil {
		return err
	}

	flagSet.BoolP("log-rotate-compress", "", true, "Compress rotated log files using gzip.")

	err = v.BindPFlag("logging.log-rotate.compress", flagSet.Lookup("log-rotate-compress"))
	if err != nil {
		return err
	}

	flagSet.IntP("log-rotate-max-file-size-mb", "", 512, "The maximum size in megabytes a log file can reach before it is rotated.")

	err = v.BindPFlag("logging.log-rotate.max-file-size-mb", flagSet.Lookup("log-rotate-max-file-size-mb"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "info", "Specifies the logging severity expressed as one of [trace, debug, info, warning, error, off]")

	err = v.BindPFlag("logging.severity", flagSet.Lookup("log-severity"))
	if err != nil {
		return err
	}

	flagSet.IntP("metrics-buffer-size", "", 256, "The maximum number of histogram records buffered before new records are dropped.")

	err = v.BindPFlag("metrics.buffer-size", flagSet.Lookup("metrics-buffer-size"))
	if err != nil {
		return err
	}

	flagSet.IntP("metrics-workers", "", 3, "The number of workers that record histogram measurements.")

	err = v.BindPFlag("metrics.workers", flagSet.Lookup("metrics-workers"))
	if err != nil {
		return err
	}

	flagSet.IntP("prometheus-port", "", 0, "Expose Prometheus metrics endpoint on this port. 0 disables the exporter.")

	err = v.BindPFlag("metrics.prometheus-port", flagSet.Lookup("prometheus-port"))
	if err != nil {
		return err
	}

	flagSet.IntP("session-contents", "", 4, "Number of contents loaded into the scripted session.")

	err = v.BindPFlag("session.contents", flagSet.Lookup("session-contents"))
	if err != nil {
		return err
	}

	flagSet.DurationP("session-event-interval", "", 2*time.Millisecond, "Delay between two simulated slider events.")

	err = v.BindPFlag("session.event-interval", flagSet.Lookup("session-event-interval"))
	if err != nil {
		return err
	}

	flagSet.DurationP("session-render-delay", "", 10*time.Millisecond, "Simulated cost of one render refresh.")

	err = v.BindPFlag("session.render-delay", flagSet.Lookup("session-render-delay"))
	if err != nil {
		return err
	}

	flagSet.IntP("session-slider-events", "", 100, "Number of simulated slider events in the scripted session.")

	err = v.BindPFlag("session.slider-events", flagSet.Lookup("session-slider-events"))
	if err != nil {
		return err
	}

	flagSet.IntP("session-tasks", "", 8, "Number of fill tasks submitted to the serial queue.")

	err = v.BindPFlag("session.tasks", flagSet.Lookup("session-tasks"))
	if err != nil {
		return err
	}

	flagSet.IntP("session-timepoints", "", 3, "Number of timepoints per content.")

	err = v.BindPFlag("session.timepoints", flagSet.Lookup("session-timepoints"))
	if err != nil {
		return err
	}

	flagSet.DurationP("shutdown-timeout", "", 30*time.Second, "How long to wait for background workers to finish in-flight work on exit.")

	err = v.BindPFlag("workers.shutdown-timeout", flagSet.Lookup("shutdown-timeout"))
	if err != nil {
		return err
	}

	return nil
}
