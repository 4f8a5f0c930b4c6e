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

import (
	"context"
	"time"
)

// MetricHandle provides an interface for recording worker and command
// metrics.
type MetricHandle interface {
	// AdjusterSubmitCount - The cumulative number of update requests submitted to coalescing workers, along with the outcome: queued, coalesced or ignored.
	AdjusterSubmitCount(inc int64, outcome string)

	// AdjusterApplyCount - The cumulative number of update requests applied by coalescing workers, along with status: successful or failed.
	AdjusterApplyCount(inc int64, status string)

	// AdjusterApplyLatency - The cumulative distribution of apply latencies in coalescing workers.
	AdjusterApplyLatency(ctx context.Context, duration time.Duration)

	// BatchItemCount - The cumulative number of batch items, along with their final status: successful, failed or skipped.
	BatchItemCount(inc int64, status string)

	// SerialQueueTaskCount - The cumulative number of serial queue tasks, along with their final status: successful, failed, dropped or rejected.
	SerialQueueTaskCount(inc int64, status string)

	// SerialQueueTaskLatency - The cumulative distribution of task execution latencies in the serial queue, along with status: successful or failed.
	SerialQueueTaskLatency(ctx context.Context, duration time.Duration, status string)

	// CommandDispatchCount - The cumulative number of user commands dispatched, along with the command name.
	CommandDispatchCount(ctx context.Context, inc int64, command string)
}
