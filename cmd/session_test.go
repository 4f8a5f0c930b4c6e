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

package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/googlecloudplatform/volexec/cfg"
	"github.com/googlecloudplatform/volexec/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sessionConfig() *cfg.Config {
	return &cfg.Config{
		AppName: "test",
		Session: cfg.SessionConfig{
			Contents:      8,
			Timepoints:    2,
			SliderEvents:  50,
			EventInterval: 0,
			RenderDelay:   time.Millisecond,
			Tasks:         6,
		},
		Workers: cfg.WorkersConfig{BatchParallelism: 3, ShutdownTimeout: 10 * time.Second},
	}
}

func TestRunSession(t *testing.T) {
	report, err := runSession(context.Background(), sessionConfig(), metrics.NewNoopMetrics())

	require.NoError(t, err)
	assert.Equal(t, 8, report.Contents)
	assert.Equal(t, uint64(50), report.Slider.Submitted)
	assert.LessOrEqual(t, report.Slider.Applied, report.Slider.Submitted)
	assert.Equal(t, 49, report.Transparency)
	assert.GreaterOrEqual(t, report.CoalescingRatio(), 0.0)
	assert.Equal(t, 8, report.Smooth.Total)
	assert.Equal(t, 8, report.Smooth.Succeeded)
	assert.Equal(t, uint64(6), report.Queue.Submitted)
	assert.Equal(t, report.Queue.Submitted, report.Queue.Executed+report.Queue.Dropped)
	assert.Zero(t, report.Queue.Rejected)
	assert.Greater(t, report.Renders, int64(0))
	assert.Contains(t, report.Summary(), "contents=8")
}

func TestRunSession_NoContents(t *testing.T) {
	c := sessionConfig()
	c.Session.Contents = 0

	report, err := runSession(context.Background(), c, metrics.NewNoopMetrics())

	require.NoError(t, err)
	assert.Zero(t, report.Slider.Submitted)
	assert.Zero(t, report.CoalescingRatio())
	assert.Equal(t, 0, report.Smooth.Total)
	assert.Equal(t, uint64(6), report.Queue.Submitted)
}

func TestRunSession_CancelledContextRestoresSlider(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := runSession(ctx, sessionConfig(), metrics.NewNoopMetrics())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Slider.Submitted)
	assert.Equal(t, 0, report.Transparency)
	assert.Equal(t, 8, report.Smooth.Skipped)
}

func TestCoalescingRatio(t *testing.T) {
	var r SessionReport
	r.Slider.Submitted = 100
	r.Slider.Applied = 20
	r.Slider.Failed = 5

	assert.InDelta(t, 0.75, r.CoalescingRatio(), 1e-9)
}
