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
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/googlecloudplatform/volexec/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	logInterval = 5 * time.Minute
	meterName   = "volexec"
)

var (
	unrecognizedAttr atomic.Value

	adjusterSubmitCountOutcomeCoalescedAttrSet  = metric.WithAttributeSet(attribute.NewSet(attribute.String("outcome", SubmitOutcomeCoalesced)))
	adjusterSubmitCountOutcomeIgnoredAttrSet    = metric.WithAttributeSet(attribute.NewSet(attribute.String("outcome", SubmitOutcomeIgnored)))
	adjusterSubmitCountOutcomeQueuedAttrSet     = metric.WithAttributeSet(attribute.NewSet(attribute.String("outcome", SubmitOutcomeQueued)))
	adjusterApplyCountStatusFailedAttrSet       = metric.WithAttributeSet(attribute.NewSet(attribute.String("status", StatusFailed)))
	adjusterApplyCountStatusSuccessfulAttrSet   = metric.WithAttributeSet(attribute.NewSet(attribute.String("status", StatusSuccessful)))
	batchItemCountStatusFailedAttrSet           = metric.WithAttributeSet(attribute.NewSet(attribute.String("status", StatusFailed)))
	batchItemCountStatusSkippedAttrSet          = metric.WithAttributeSet(attribute.NewSet(attribute.String("status", StatusSkipped)))
	batchItemCountStatusSuccessfulAttrSet       = metric.WithAttributeSet(attribute.NewSet(attribute.String("status", StatusSuccessful)))
	serialQueueTaskCountStatusDroppedAttrSet    = metric.WithAttributeSet(attribute.NewSet(attribute.String("status", StatusDropped)))
	serialQueueTaskCountStatusFailedAttrSet     = metric.WithAttributeSet(attribute.NewSet(attribute.String("status", StatusFailed)))
	serialQueueTaskCountStatusRejectedAttrSet   = metric.WithAttributeSet(attribute.NewSet(attribute.String("status", StatusRejected)))
	serialQueueTaskCountStatusSuccessfulAttrSet = metric.WithAttributeSet(attribute.NewSet(attribute.String("status", StatusSuccessful)))
	serialQueueTaskLatencyStatusFailedAttrSet   = metric.WithAttributeSet(attribute.NewSet(attribute.String("status", StatusFailed)))
	serialQueueTaskLatencyStatusSuccessAttrSet  = metric.WithAttributeSet(attribute.NewSet(attribute.String("status", StatusSuccessful)))

	// commandAttrOptionCache maps a command name to its measurement option.
	commandAttrOptionCache sync.Map

	latencyBucketsUs = metric.WithExplicitBucketBoundaries(50, 100, 200, 400, 800, 1200, 2000, 5000, 10000, 20000, 50000, 100000, 200000, 500000, 1000000, 2000000, 5000000, 10000000)
)

func commandAttrOption(command string) metric.MeasurementOption {
	if v, ok := commandAttrOptionCache.Load(command); ok {
		return v.(metric.MeasurementOption)
	}
	v, _ := commandAttrOptionCache.LoadOrStore(command, metric.WithAttributeSet(attribute.NewSet(attribute.String("command", command))))
	return v.(metric.MeasurementOption)
}

type histogramRecord struct {
	ctx        context.Context
	instrument metric.Int64Histogram
	value      int64
	attributes metric.RecordOption
}

type otelMetrics struct {
	ch chan histogramRecord
	wg *sync.WaitGroup

	// closedMu guards closed and the send on ch against Close.
	closedMu sync.RWMutex
	closed   bool

	adjusterSubmitCountOutcomeCoalescedAtomic  *atomic.Int64
	adjusterSubmitCountOutcomeIgnoredAtomic    *atomic.Int64
	adjusterSubmitCountOutcomeQueuedAtomic     *atomic.Int64
	adjusterApplyCountStatusFailedAtomic       *atomic.Int64
	adjusterApplyCountStatusSuccessfulAtomic   *atomic.Int64
	batchItemCountStatusFailedAtomic           *atomic.Int64
	batchItemCountStatusSkippedAtomic          *atomic.Int64
	batchItemCountStatusSuccessfulAtomic       *atomic.Int64
	serialQueueTaskCountStatusDroppedAtomic    *atomic.Int64
	serialQueueTaskCountStatusFailedAtomic     *atomic.Int64
	serialQueueTaskCountStatusRejectedAtomic   *atomic.Int64
	serialQueueTaskCountStatusSuccessfulAtomic *atomic.Int64

	adjusterApplyLatency   metric.Int64Histogram
	serialQueueTaskLatency metric.Int64Histogram
	commandDispatchCount   metric.Int64Counter
}

func (o *otelMetrics) AdjusterSubmitCount(inc int64, outcome string) {
	if inc < 0 {
		logger.Errorf("Counter metric adjuster/submit_count received a negative increment: %d", inc)
		return
	}
	switch outcome {
	case SubmitOutcomeCoalesced:
		o.adjusterSubmitCountOutcomeCoalescedAtomic.Add(inc)
	case SubmitOutcomeIgnored:
		o.adjusterSubmitCountOutcomeIgnoredAtomic.Add(inc)
	case SubmitOutcomeQueued:
		o.adjusterSubmitCountOutcomeQueuedAtomic.Add(inc)
	default:
		updateUnrecognizedAttribute(outcome)
	}
}

func (o *otelMetrics) AdjusterApplyCount(inc int64, status string) {
	if inc < 0 {
		logger.Errorf("Counter metric adjuster/apply_count received a negative increment: %d", inc)
		return
	}
	switch status {
	case StatusFailed:
		o.adjusterApplyCountStatusFailedAtomic.Add(inc)
	case StatusSuccessful:
		o.adjusterApplyCountStatusSuccessfulAtomic.Add(inc)
	default:
		updateUnrecognizedAttribute(status)
	}
}

func (o *otelMetrics) AdjusterApplyLatency(ctx context.Context, latency time.Duration) {
	o.record(histogramRecord{ctx: ctx, instrument: o.adjusterApplyLatency, value: latency.Microseconds()})
}

func (o *otelMetrics) BatchItemCount(inc int64, status string) {
	if inc < 0 {
		logger.Errorf("Counter metric batch/item_count received a negative increment: %d", inc)
		return
	}
	switch status {
	case StatusFailed:
		o.batchItemCountStatusFailedAtomic.Add(inc)
	case StatusSkipped:
		o.batchItemCountStatusSkippedAtomic.Add(inc)
	case StatusSuccessful:
		o.batchItemCountStatusSuccessfulAtomic.Add(inc)
	default:
		updateUnrecognizedAttribute(status)
	}
}

func (o *otelMetrics) SerialQueueTaskCount(inc int64, status string) {
	if inc < 0 {
		logger.Errorf("Counter metric serial_queue/task_count received a negative increment: %d", inc)
		return
	}
	switch status {
	case StatusDropped:
		o.serialQueueTaskCountStatusDroppedAtomic.Add(inc)
	case StatusFailed:
		o.serialQueueTaskCountStatusFailedAtomic.Add(inc)
	case StatusRejected:
		o.serialQueueTaskCountStatusRejectedAtomic.Add(inc)
	case StatusSuccessful:
		o.serialQueueTaskCountStatusSuccessfulAtomic.Add(inc)
	default:
		updateUnrecognizedAttribute(status)
	}
}

func (o *otelMetrics) SerialQueueTaskLatency(ctx context.Context, latency time.Duration, status string) {
	var record histogramRecord
	switch status {
	case StatusFailed:
		record = histogramRecord{ctx: ctx, instrument: o.serialQueueTaskLatency, value: latency.Microseconds(), attributes: serialQueueTaskLatencyStatusFailedAttrSet}
	case StatusSuccessful:
		record = histogramRecord{ctx: ctx, instrument: o.serialQueueTaskLatency, value: latency.Microseconds(), attributes: serialQueueTaskLatencyStatusSuccessAttrSet}
	default:
		updateUnrecognizedAttribute(status)
		return
	}
	o.record(record)
}

func (o *otelMetrics) CommandDispatchCount(ctx context.Context, inc int64, command string) {
	o.commandDispatchCount.Add(ctx, inc, commandAttrOption(command))
}

// record drops r once Close was called. Workers may outlive the metrics
// handle when a shutdown times out.
func (o *otelMetrics) record(r histogramRecord) {
	o.closedMu.RLock()
	defer o.closedMu.RUnlock()
	if o.closed {
		return
	}
	select {
	case o.ch <- r: // Do nothing
	default: // Unblock writes to channel if it's full.
	}
}

// NewOTelMetrics registers the instruments on the global meter provider and
// starts workers goroutines that drain histogram records from a channel of
// bufferSize. Close must be called to stop them.
func NewOTelMetrics(ctx context.Context, workers int, bufferSize int) (*otelMetrics, error) {
	ch := make(chan histogramRecord, bufferSize)
	var wg sync.WaitGroup
	startSampledLogging(ctx)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for record := range ch {
				if record.attributes != nil {
					record.instrument.Record(record.ctx, record.value, record.attributes)
				} else {
					record.instrument.Record(record.ctx, record.value)
				}
			}
		}()
	}
	meter := otel.Meter(meterName)

	var adjusterSubmitCountOutcomeCoalescedAtomic,
		adjusterSubmitCountOutcomeIgnoredAtomic,
		adjusterSubmitCountOutcomeQueuedAtomic atomic.Int64

	var adjusterApplyCountStatusFailedAtomic,
		adjusterApplyCountStatusSuccessfulAtomic atomic.Int64

	var batchItemCountStatusFailedAtomic,
		batchItemCountStatusSkippedAtomic,
		batchItemCountStatusSuccessfulAtomic atomic.Int64

	var serialQueueTaskCountStatusDroppedAtomic,
		serialQueueTaskCountStatusFailedAtomic,
		serialQueueTaskCountStatusRejectedAtomic,
		serialQueueTaskCountStatusSuccessfulAtomic atomic.Int64

	_, err0 := meter.Int64ObservableCounter("adjuster/submit_count",
		metric.WithDescription("The cumulative number of update requests submitted to coalescing workers, along with the outcome: queued, coalesced or ignored."),
		metric.WithUnit(""),
		metric.WithInt64Callback(func(_ context.Context, obsrv metric.Int64Observer) error {
			conditionallyObserve(obsrv, &adjusterSubmitCountOutcomeCoalescedAtomic, adjusterSubmitCountOutcomeCoalescedAttrSet)
			conditionallyObserve(obsrv, &adjusterSubmitCountOutcomeIgnoredAtomic, adjusterSubmitCountOutcomeIgnoredAttrSet)
			conditionallyObserve(obsrv, &adjusterSubmitCountOutcomeQueuedAtomic, adjusterSubmitCountOutcomeQueuedAttrSet)
			return nil
		}))

	_, err1 := meter.Int64ObservableCounter("adjuster/apply_count",
		metric.WithDescription("The cumulative number of update requests applied by coalescing workers, along with status: successful or failed."),
		metric.WithUnit(""),
		metric.WithInt64Callback(func(_ context.Context, obsrv metric.Int64Observer) error {
			conditionallyObserve(obsrv, &adjusterApplyCountStatusFailedAtomic, adjusterApplyCountStatusFailedAttrSet)
			conditionallyObserve(obsrv, &adjusterApplyCountStatusSuccessfulAtomic, adjusterApplyCountStatusSuccessfulAttrSet)
			return nil
		}))

	adjusterApplyLatency, err2 := meter.Int64Histogram("adjuster/apply_latency",
		metric.WithDescription("The cumulative distribution of apply latencies in coalescing workers."),
		metric.WithUnit("us"),
		latencyBucketsUs)

	_, err3 := meter.Int64ObservableCounter("batch/item_count",
		metric.WithDescription("The cumulative number of batch items, along with their final status: successful, failed or skipped."),
		metric.WithUnit(""),
		metric.WithInt64Callback(func(_ context.Context, obsrv metric.Int64Observer) error {
			conditionallyObserve(obsrv, &batchItemCountStatusFailedAtomic, batchItemCountStatusFailedAttrSet)
			conditionallyObserve(obsrv, &batchItemCountStatusSkippedAtomic, batchItemCountStatusSkippedAttrSet)
			conditionallyObserve(obsrv, &batchItemCountStatusSuccessfulAtomic, batchItemCountStatusSuccessfulAttrSet)
			return nil
		}))

	_, err4 := meter.Int64ObservableCounter("serial_queue/task_count",
		metric.WithDescription("The cumulative number of serial queue tasks, along with their final status: successful, failed, dropped or rejected."),
		metric.WithUnit(""),
		metric.WithInt64Callback(func(_ context.Context, obsrv metric.Int64Observer) error {
			conditionallyObserve(obsrv, &serialQueueTaskCountStatusDroppedAtomic, serialQueueTaskCountStatusDroppedAttrSet)
			conditionallyObserve(obsrv, &serialQueueTaskCountStatusFailedAtomic, serialQueueTaskCountStatusFailedAttrSet)
			conditionallyObserve(obsrv, &serialQueueTaskCountStatusRejectedAtomic, serialQueueTaskCountStatusRejectedAttrSet)
			conditionallyObserve(obsrv, &serialQueueTaskCountStatusSuccessfulAtomic, serialQueueTaskCountStatusSuccessfulAttrSet)
			return nil
		}))

	serialQueueTaskLatency, err5 := meter.Int64Histogram("serial_queue/task_latency",
		metric.WithDescription("The cumulative distribution of task execution latencies in the serial queue, along with status: successful or failed."),
		metric.WithUnit("us"),
		latencyBucketsUs)

	commandDispatchCount, err6 := meter.Int64Counter("command/dispatch_count",
		metric.WithDescription("The cumulative number of user commands dispatched, along with the command name."),
		metric.WithUnit(""))

	errs := []error{err0, err1, err2, err3, err4, err5, err6}
	if err := errors.Join(errs...); err != nil {
		close(ch)
		wg.Wait()
		return nil, err
	}

	return &otelMetrics{
		ch: ch,
		wg: &wg,
		adjusterSubmitCountOutcomeCoalescedAtomic:  &adjusterSubmitCountOutcomeCoalescedAtomic,
		adjusterSubmitCountOutcomeIgnoredAtomic:    &adjusterSubmitCountOutcomeIgnoredAtomic,
		adjusterSubmitCountOutcomeQueuedAtomic:     &adjusterSubmitCountOutcomeQueuedAtomic,
		adjusterApplyCountStatusFailedAtomic:       &adjusterApplyCountStatusFailedAtomic,
		adjusterApplyCountStatusSuccessfulAtomic:   &adjusterApplyCountStatusSuccessfulAtomic,
		batchItemCountStatusFailedAtomic:           &batchItemCountStatusFailedAtomic,
		batchItemCountStatusSkippedAtomic:          &batchItemCountStatusSkippedAtomic,
		batchItemCountStatusSuccessfulAtomic:       &batchItemCountStatusSuccessfulAtomic,
		serialQueueTaskCountStatusDroppedAtomic:    &serialQueueTaskCountStatusDroppedAtomic,
		serialQueueTaskCountStatusFailedAtomic:     &serialQueueTaskCountStatusFailedAtomic,
		serialQueueTaskCountStatusRejectedAtomic:   &serialQueueTaskCountStatusRejectedAtomic,
		serialQueueTaskCountStatusSuccessfulAtomic: &serialQueueTaskCountStatusSuccessfulAtomic,
		adjusterApplyLatency:                       adjusterApplyLatency,
		serialQueueTaskLatency:                     serialQueueTaskLatency,
		commandDispatchCount:                       commandDispatchCount,
	}, nil
}

// Close stops the histogram workers after they drained the buffered records.
// Records made after Close are dropped. Calling it again has no effect.
func (o *otelMetrics) Close() {
	o.closedMu.Lock()
	if o.closed {
		o.closedMu.Unlock()
		return
	}
	o.closed = true
	close(o.ch)
	o.closedMu.Unlock()

	o.wg.Wait()
}

func conditionallyObserve(obsrv metric.Int64Observer, counter *atomic.Int64, obsrvOptions ...metric.ObserveOption) {
	if val := counter.Load(); val > 0 {
		obsrv.Observe(val, obsrvOptions...)
	}
}

func updateUnrecognizedAttribute(newValue string) {
	unrecognizedAttr.CompareAndSwap("", newValue)
}

// startSampledLogging starts a goroutine that logs unrecognized attributes
// periodically until ctx is done.
func startSampledLogging(ctx context.Context) {
	unrecognizedAttr.Store("")

	go func() {
		ticker := time.NewTicker(logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logUnrecognizedAttribute()
			}
		}
	}()
}

func logUnrecognizedAttribute() {
	if currentAttr := unrecognizedAttr.Swap("").(string); currentAttr != "" {
		logger.Tracef("Attribute %s is not declared", currentAttr)
	}
}
