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
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, input map[string]any) (Config, error) {
	t.Helper()
	var c Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  DecodeHook(),
		Result:      &c,
		TagName:     "yaml",
		ErrorUnused: true,
	})
	require.NoError(t, err)
	return c, decoder.Decode(input)
}

func TestDecodeHook(t *testing.T) {
	c, err := decode(t, map[string]any{
		"logging": map[string]any{
			"severity": "debug",
			"format":   "text",
		},
		"session": map[string]any{
			"event-interval": "5ms",
			"render-delay":   "1s",
		},
		"workers": map[string]any{
			"shutdown-timeout": "2m",
		},
	})

	require.NoError(t, err)
	assert.Equal(t, DebugLogSeverity, c.Logging.Severity)
	assert.Equal(t, 5*time.Millisecond, c.Session.EventInterval)
	assert.Equal(t, time.Second, c.Session.RenderDelay)
	assert.Equal(t, 2*time.Minute, c.Workers.ShutdownTimeout)
}

func TestDecodeHook_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]any
	}{
		{
			name:  "invalid_severity",
			input: map[string]any{"logging": map[string]any{"severity": "loud"}},
		},
		{
			name:  "invalid_duration",
			input: map[string]any{"session": map[string]any{"render-delay": "soon"}},
		},
		{
			name:  "unknown_field",
			input: map[string]any{"session": map[string]any{"frames": 10}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decode(t, tc.input)

			assert.Error(t, err)
		})
	}
}
