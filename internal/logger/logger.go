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

package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/googlecloudplatform/volexec/cfg"
	"gopkg.in/natefinch/lumberjack.v2"
)

// asyncLogBufferSize is the number of log lines buffered in front of the log
// file before new lines are dropped.
const asyncLogBufferSize = 4096

var (
	defaultLoggerFactory *loggerFactory
	defaultLogger        *slog.Logger
	// programLevel is shared by every handler built by the factory so the
	// severity can be changed without rebuilding loggers.
	programLevel = new(slog.LevelVar)
)

type loggerFactory struct {
	// If nil, log to stdout. Otherwise, log to this file through writer.
	file            *os.File
	writer          io.WriteCloser
	format          string
	level           string
	logRotateConfig cfg.LogRotateLoggingConfig
}

// init initializes the logger factory to use stdout.
func init() {
	defaultLoggerFactory = &loggerFactory{
		file:            nil,
		format:          cfg.TextLogFormat,
		level:           cfg.INFO,
		logRotateConfig: DefaultLogRotateConfig(),
	}
	defaultLogger = defaultLoggerFactory.newLogger(cfg.INFO)
}

// DefaultLogRotateConfig is the rotation used when no config was provided.
func DefaultLogRotateConfig() cfg.LogRotateLoggingConfig {
	return cfg.LogRotateLoggingConfig{
		MaxFileSizeMb:   512,
		BackupFileCount: 10,
		Compress:        true,
	}
}

// InitLogFile initializes the logger factory to create loggers that print to
// a log file rotated by lumberjack. In case of empty file path, logs keep
// going to stdout with the configured format and severity.
func InitLogFile(newLogConfig cfg.LoggingConfig) error {
	var f *os.File
	var w io.WriteCloser
	var err error
	if newLogConfig.FilePath != "" {
		f, err = os.OpenFile(
			string(newLogConfig.FilePath),
			os.O_WRONLY|os.O_CREATE|os.O_APPEND,
			0644,
		)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w = NewAsyncLogger(&lumberjack.Logger{
			Filename:   f.Name(),
			MaxSize:    int(newLogConfig.LogRotate.MaxFileSizeMb),
			MaxBackups: int(newLogConfig.LogRotate.BackupFileCount),
			Compress:   newLogConfig.LogRotate.Compress,
		}, asyncLogBufferSize)
	}

	Close()
	defaultLoggerFactory = &loggerFactory{
		file:            f,
		writer:          w,
		format:          newLogConfig.Format,
		level:           string(newLogConfig.Severity),
		logRotateConfig: newLogConfig.LogRotate,
	}
	defaultLogger = defaultLoggerFactory.newLogger(string(newLogConfig.Severity))

	return nil
}

// SetLogFormat updates the log format of the default logger. An unknown
// format falls back to json.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format
	defaultLogger = defaultLoggerFactory.newLogger(defaultLoggerFactory.level)
}

// Close flushes pending log lines and closes the log file when necessary.
func Close() {
	if defaultLoggerFactory == nil {
		return
	}
	if w := defaultLoggerFactory.writer; w != nil {
		if err := w.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error while closing log writer: %v\n", err)
		}
		defaultLoggerFactory.writer = nil
	}
	if f := defaultLoggerFactory.file; f != nil {
		f.Close()
		defaultLoggerFactory.file = nil
	}
}

// Tracef prints the message with TRACE severity in the specified format.
func Tracef(format string, v ...any) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, v...))
}

// Debugf prints the message with DEBUG severity in the specified format.
func Debugf(format string, v ...any) {
	defaultLogger.Debug(fmt.Sprintf(format, v...))
}

// Infof prints the message with INFO severity in the specified format.
func Infof(format string, v ...any) {
	defaultLogger.Info(fmt.Sprintf(format, v...))
}

// Warnf prints the message with WARNING severity in the specified format.
func Warnf(format string, v ...any) {
	defaultLogger.Warn(fmt.Sprintf(format, v...))
}

// Errorf prints the message with ERROR severity in the specified format.
func Errorf(format string, v ...any) {
	defaultLogger.Error(fmt.Sprintf(format, v...))
}

func (f *loggerFactory) newLogger(level string) *slog.Logger {
	setLoggingLevel(level, programLevel)
	return slog.New(f.handler(programLevel, ""))
}

func (f *loggerFactory) handler(levelVar *slog.LevelVar, prefix string) slog.Handler {
	if f.writer != nil {
		return f.createJsonOrTextHandler(f.writer, levelVar, prefix)
	}
	return f.createJsonOrTextHandler(os.Stdout, levelVar, prefix)
}
