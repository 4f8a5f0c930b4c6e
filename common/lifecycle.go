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

import "fmt"

// WorkerState is the lifecycle of a background worker. It only moves
// forward: Created, Running, Draining, Terminated. A worker stopped before
// it was started moves from Created straight to Terminated.
type WorkerState int32

const (
	WorkerCreated WorkerState = iota
	WorkerRunning
	WorkerDraining
	WorkerTerminated
)

func (s WorkerState) String() string {
	switch s {
	case WorkerCreated:
		return "CREATED"
	case WorkerRunning:
		return "RUNNING"
	case WorkerDraining:
		return "DRAINING"
	case WorkerTerminated:
		return "TERMINATED"
	}
	return fmt.Sprintf("WorkerState(%d)", int32(s))
}

// Accepting reports whether a worker in this state still takes new work.
func (s WorkerState) Accepting() bool {
	return s == WorkerCreated || s == WorkerRunning
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step.
func (s WorkerState) CanTransition(next WorkerState) bool {
	switch s {
	case WorkerCreated:
		return next == WorkerRunning || next == WorkerTerminated
	case WorkerRunning:
		return next == WorkerDraining
	case WorkerDraining:
		return next == WorkerTerminated
	}
	return false
}
