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

package metrics

// Submit outcomes reported by adjuster/submit_count.
const (
	// SubmitOutcomeQueued: the pending slot was empty.
	SubmitOutcomeQueued = "queued"
	// SubmitOutcomeCoalesced: the request replaced one that was never applied.
	SubmitOutcomeCoalesced = "coalesced"
	// SubmitOutcomeIgnored: the worker was already terminating.
	SubmitOutcomeIgnored = "ignored"
)

// Statuses for work items processed by the workers.
const (
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
	// StatusSkipped: a batch item that was never claimed because the batch
	// was cancelled.
	StatusSkipped = "skipped"
	// StatusDropped: a queued task discarded by shutdown.
	StatusDropped = "dropped"
	// StatusRejected: a task submitted after shutdown.
	StatusRejected = "rejected"
)

// Commands reported by command/dispatch_count.
const (
	CommandChangeTransparency = "change_transparency"
	CommandChangeThreshold    = "change_threshold"
	CommandSetThreshold       = "set_threshold"
	CommandChangeColor        = "change_color"
	CommandChangeSlices       = "change_slices"
	CommandSmoothAllMeshes    = "smooth_all_meshes"
	CommandSmoothMesh         = "smooth_mesh"
	CommandFill               = "fill"
	CommandUpdateVolume       = "update_volume"
	CommandExecute            = "execute"
	CommandFlush              = "flush"
	CommandDelete             = "delete"
	CommandClose              = "close"
)
