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

type noopMetrics struct{}

func (*noopMetrics) AdjusterSubmitCount(inc int64, outcome string) {}

func (*noopMetrics) AdjusterApplyCount(inc int64, status string) {}

func (*noopMetrics) AdjusterApplyLatency(ctx context.Context, duration time.Duration) {}

func (*noopMetrics) BatchItemCount(inc int64, status string) {}

func (*noopMetrics) SerialQueueTaskCount(inc int64, status string) {}

func (*noopMetrics) SerialQueueTaskLatency(ctx context.Context, duration time.Duration, status string) {
}

func (*noopMetrics) CommandDispatchCount(ctx context.Context, inc int64, command string) {}

func NewNoopMetrics() MetricHandle {
	var n noopMetrics
	return &n
}
