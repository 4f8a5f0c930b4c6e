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

package workerpool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/googlecloudplatform/volexec/internal/logger"
	"github.com/googlecloudplatform/volexec/metrics"
	"golang.org/x/sync/errgroup"
)

// ItemError records the failure of one batch item.
type ItemError struct {
	Index int
	Err   error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// BatchReport summarizes one RunBatch call. Succeeded+Failed+Skipped always
// equals Total. Errors is sorted by index.
type BatchReport struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Errors    []ItemError
}

// BatchRunner processes finite batches with a fixed upper bound on the
// number of concurrent workers. It holds no goroutines between batches and
// may be shared.
type BatchRunner struct {
	parallelism  int
	metricHandle metrics.MetricHandle
}

func NewBatchRunner(parallelism int, opts ...BatchOption) (*BatchRunner, error) {
	if parallelism <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidParallelism, parallelism)
	}
	c := newConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return &BatchRunner{parallelism: parallelism, metricHandle: c.metricHandle}, nil
}

// Parallelism returns the maximum number of workers of one batch.
func (r *BatchRunner) Parallelism() int {
	return r.parallelism
}

// RunBatch calls process once for every index of items using
// min(parallelism, len(items)) workers and returns when all of them have
// finished. Workers claim indices from a shared cursor, so items are visited
// in ascending claim order but complete in any order.
//
// A failing or panicking item is recorded in the report and does not affect
// the others. Once ctx is done no further items are claimed; the unclaimed
// ones are reported as skipped.
func RunBatch[T any](ctx context.Context, r *BatchRunner, items []T, process func(ctx context.Context, index int, item T) error) BatchReport {
	n := len(items)
	report := BatchReport{Total: n}
	if n == 0 {
		return report
	}

	var (
		cursor    atomic.Int64
		succeeded atomic.Int64
		errMu     sync.Mutex
		errs      []ItemError
	)
	var g errgroup.Group
	for range min(r.parallelism, n) {
		g.Go(func() error {
			for ctx.Err() == nil {
				i := int(cursor.Add(1) - 1)
				if i >= n {
					return nil
				}
				err := runSafely(func() error { return process(ctx, i, items[i]) })
				if err != nil {
					logger.Errorf("batch: item %d failed: %v", i, err)
					errMu.Lock()
					errs = append(errs, ItemError{Index: i, Err: err})
					errMu.Unlock()
					continue
				}
				succeeded.Add(1)
			}
			return nil
		})
	}
	// Workers never return an error.
	_ = g.Wait()

	sort.Slice(errs, func(i, j int) bool { return errs[i].Index < errs[j].Index })
	report.Errors = errs
	report.Failed = len(errs)
	report.Succeeded = int(succeeded.Load())
	report.Skipped = n - report.Succeeded - report.Failed

	r.metricHandle.BatchItemCount(int64(report.Succeeded), metrics.StatusSuccessful)
	r.metricHandle.BatchItemCount(int64(report.Failed), metrics.StatusFailed)
	r.metricHandle.BatchItemCount(int64(report.Skipped), metrics.StatusSkipped)
	if report.Skipped > 0 {
		logger.Warnf("batch: %d of %d items skipped: %v", report.Skipped, n, context.Cause(ctx))
	}
	logger.Debugf("batch: %d items, %d succeeded, %d failed, %d skipped", n, report.Succeeded, report.Failed, report.Skipped)
	return report
}
