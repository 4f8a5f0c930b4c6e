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
	"io"
	"log/slog"

	"github.com/googlecloudplatform/volexec/cfg"
)

const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	// LevelOff is above every level that is ever logged.
	LevelOff = slog.Level(12)
)

const (
	severityKey  = "severity"
	messageKey   = "message"
	timestampKey = "timestamp"
	// textTimeFormat renders 26 characters, e.g. 17/10/2026 09:41:07.123456.
	textTimeFormat = "02/01/2006 03:04:05.000000"
)

func setLoggingLevel(level string, programLevel *slog.LevelVar) {
	switch level {
	case cfg.TRACE:
		programLevel.Set(LevelTrace)
	case cfg.DEBUG:
		programLevel.Set(LevelDebug)
	case cfg.INFO:
		programLevel.Set(LevelInfo)
	case cfg.WARNING:
		programLevel.Set(LevelWarn)
	case cfg.ERROR:
		programLevel.Set(LevelError)
	case cfg.OFF:
		programLevel.Set(LevelOff)
	}
}

func severityName(level slog.Level) string {
	switch {
	case level < LevelDebug:
		return cfg.TRACE
	case level < LevelInfo:
		return cfg.DEBUG
	case level < LevelWarn:
		return cfg.INFO
	case level < LevelError:
		return cfg.WARNING
	default:
		return cfg.ERROR
	}
}

func (f *loggerFactory) createJsonOrTextHandler(writer io.Writer, levelVar *slog.LevelVar, prefix string) slog.Handler {
	if f.format == cfg.TextLogFormat {
		return slog.NewTextHandler(writer, getHandlerOptions(levelVar, prefix, f.format))
	}
	return slog.NewJSONHandler(writer, getHandlerOptions(levelVar, prefix, f.format))
}

func getHandlerOptions(levelVar *slog.LevelVar, prefix string, format string) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: levelVar,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Only the built-in top-level attributes are rewritten.
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.LevelKey:
				level, ok := a.Value.Any().(slog.Level)
				if !ok {
					return a
				}
				return slog.String(severityKey, severityName(level))
			case slog.TimeKey:
				t := a.Value.Time()
				if format == cfg.TextLogFormat {
					return slog.String(slog.TimeKey, t.Format(textTimeFormat))
				}
				return slog.Group(timestampKey,
					slog.Int64("seconds", t.Unix()),
					slog.Int64("nanos", int64(t.Nanosecond())))
			case slog.MessageKey:
				return slog.String(messageKey, prefix+a.Value.String())
			}
			return a
		},
	}
}
