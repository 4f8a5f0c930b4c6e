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

// Package workerpool runs tasks off the caller's goroutine: a BatchRunner
// fans a finite batch out to a fixed number of workers and a SerialQueue
// executes submitted tasks one at a time in FIFO order.
package workerpool

import (
	"context"
	"errors"
	"fmt"

	"github.com/googlecloudplatform/volexec/metrics"
	"github.com/jacobsa/timeutil"
)

var (
	ErrQueueShutdown      = errors.New("serial queue is shut down")
	ErrInvalidParallelism = errors.New("parallelism must be positive")
	ErrTaskPanicked       = errors.New("task panicked")
)

// Task interface defines the contract for a runnable task. The context is
// cancelled when the owner of the task is shutting down.
type Task interface {
	Execute(ctx context.Context) error
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// runSafely converts a panic in f into an error wrapping ErrTaskPanicked.
func runSafely(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return f()
}

type config struct {
	metricHandle metrics.MetricHandle
	clock        timeutil.Clock
}

func newConfig() config {
	return config{
		metricHandle: metrics.NewNoopMetrics(),
		clock:        timeutil.RealClock(),
	}
}

// Option configures a BatchRunner or a SerialQueue.
type Option func(*config)

type (
	BatchOption = Option
	QueueOption = Option
)

// WithMetricHandle reports item and task outcomes to mh.
func WithMetricHandle(mh metrics.MetricHandle) Option {
	return func(c *config) { c.metricHandle = mh }
}

// WithClock sets the clock used to measure task latency.
func WithClock(clock timeutil.Clock) Option {
	return func(c *config) { c.clock = clock }
}
