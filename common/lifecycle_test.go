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

package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerState_String(t *testing.T) {
	tests := []struct {
		state    WorkerState
		expected string
	}{
		{WorkerCreated, "CREATED"},
		{WorkerRunning, "RUNNING"},
		{WorkerDraining, "DRAINING"},
		{WorkerTerminated, "TERMINATED"},
		{WorkerState(42), "WorkerState(42)"},
	}
	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.state.String())
		})
	}
}

func TestWorkerState_Accepting(t *testing.T) {
	assert.True(t, WorkerCreated.Accepting())
	assert.True(t, WorkerRunning.Accepting())
	assert.False(t, WorkerDraining.Accepting())
	assert.False(t, WorkerTerminated.Accepting())
}

func TestWorkerState_CanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from, to WorkerState
		allowed  bool
	}{
		{"start", WorkerCreated, WorkerRunning, true},
		{"quit_before_start", WorkerCreated, WorkerTerminated, true},
		{"drain", WorkerRunning, WorkerDraining, true},
		{"finish", WorkerDraining, WorkerTerminated, true},
		{"skip_drain", WorkerRunning, WorkerTerminated, false},
		{"restart", WorkerTerminated, WorkerRunning, false},
		{"backwards", WorkerDraining, WorkerRunning, false},
		{"created_to_draining", WorkerCreated, WorkerDraining, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to))
		})
	}
}
