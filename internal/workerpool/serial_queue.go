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
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/googlecloudplatform/volexec/common"
	"github.com/googlecloudplatform/volexec/internal/locker"
	"github.com/googlecloudplatform/volexec/internal/logger"
	"github.com/googlecloudplatform/volexec/metrics"
	"github.com/jacobsa/timeutil"
)

// QueueStats are cumulative counters of one SerialQueue.
type QueueStats struct {
	Submitted uint64
	Executed  uint64
	Failed    uint64
	Dropped   uint64
	Rejected  uint64
}

// SerialQueue executes submitted tasks one at a time, in submission order,
// on a single background goroutine.
//
// Shutdown discards every task that has not been dequeued yet. A task that
// was dequeued before Shutdown took the queue lock always runs to
// completion. Shutdown also cancels the context handed to that task; the
// cancellation is advisory and the queue never abandons the task. A task
// may return early when it sees ctx.Done, or ignore it and finish its work,
// as the dispatcher's Fill and UpdateVolume tasks do.
type SerialQueue struct {
	/////////////////////////
	// Constant data
	/////////////////////////

	id           string
	name         string
	metricHandle metrics.MetricHandle
	clock        timeutil.Clock

	// ctx is handed to every task and cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	// At most one token; see Adjuster.
	wake chan struct{}
	done chan struct{}

	submitted, executed, failed, dropped, rejected atomic.Uint64

	/////////////////////////
	// Mutable state
	/////////////////////////

	mu sync.Locker

	// INVARIANT: state is WorkerRunning, WorkerDraining or WorkerTerminated
	// INVARIANT: state != WorkerRunning => tasks.IsEmpty()
	//
	// GUARDED_BY(mu)
	state common.WorkerState

	// GUARDED_BY(mu)
	tasks *common.Queue[Task]
}

// NewSerialQueue creates a queue and starts its worker.
func NewSerialQueue(name string, opts ...QueueOption) *SerialQueue {
	c := newConfig()
	for _, opt := range opts {
		opt(&c)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &SerialQueue{
		id:           uuid.NewString(),
		name:         name,
		metricHandle: c.metricHandle,
		clock:        c.clock,
		ctx:          ctx,
		cancel:       cancel,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		state:        common.WorkerRunning,
		tasks:        common.NewQueue[Task](),
	}
	q.mu = locker.New(fmt.Sprintf("SerialQueue: %s", name), q.checkInvariants)

	go q.loop()
	logger.Tracef("serial queue %s (%s): started", q.name, q.id)
	return q
}

// LOCKS_REQUIRED(q.mu)
func (q *SerialQueue) checkInvariants() {
	if q.state == common.WorkerCreated {
		panic(fmt.Sprintf("serial queue %s: unexpected state %v", q.name, q.state))
	}
	if q.state != common.WorkerRunning && !q.tasks.IsEmpty() {
		panic(fmt.Sprintf("serial queue %s: %d tasks queued in state %v", q.name, q.tasks.Len(), q.state))
	}
}

// LOCKS_REQUIRED(q.mu)
func (q *SerialQueue) moveTo(next common.WorkerState) {
	if !q.state.CanTransition(next) {
		panic(fmt.Sprintf("serial queue %s: illegal transition %v -> %v", q.name, q.state, next))
	}
	q.state = next
}

// Submit appends task to the queue. It never blocks. After Shutdown the task
// is rejected with ErrQueueShutdown.
func (q *SerialQueue) Submit(task Task) error {
	q.mu.Lock()
	if q.state != common.WorkerRunning {
		q.mu.Unlock()
		q.rejected.Add(1)
		q.metricHandle.SerialQueueTaskCount(1, metrics.StatusRejected)
		logger.Warnf("serial queue %s (%s): task submitted after shutdown was rejected", q.name, q.id)
		return ErrQueueShutdown
	}
	q.tasks.Push(task)
	q.mu.Unlock()

	q.submitted.Add(1)
	q.signal()
	return nil
}

// Shutdown stops accepting tasks, drops the queued ones and cancels the
// context of the running one. It does not wait; see AwaitTermination.
// Calling it more than once has no further effect.
func (q *SerialQueue) Shutdown() {
	q.mu.Lock()
	if q.state != common.WorkerRunning {
		q.mu.Unlock()
		return
	}
	q.moveTo(common.WorkerDraining)
	dropped := q.tasks.Clear()
	q.mu.Unlock()

	q.cancel()
	q.signal()

	if dropped > 0 {
		q.dropped.Add(uint64(dropped))
		q.metricHandle.SerialQueueTaskCount(int64(dropped), metrics.StatusDropped)
		logger.Infof("serial queue %s (%s): shutdown dropped %d pending tasks", q.name, q.id, dropped)
	} else {
		logger.Debugf("serial queue %s (%s): shutdown with no pending tasks", q.name, q.id)
	}
}

// AwaitTermination blocks until the worker has exited or ctx is done.
func (q *SerialQueue) AwaitTermination(ctx context.Context) error {
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("serial queue %s: %w", q.name, ctx.Err())
	}
}

// State returns the current lifecycle state.
func (q *SerialQueue) State() common.WorkerState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Len returns the number of tasks waiting to be executed.
func (q *SerialQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks.Len()
}

// Stats returns a snapshot of the cumulative counters.
func (q *SerialQueue) Stats() QueueStats {
	return QueueStats{
		Submitted: q.submitted.Load(),
		Executed:  q.executed.Load(),
		Failed:    q.failed.Load(),
		Dropped:   q.dropped.Load(),
		Rejected:  q.rejected.Load(),
	}
}

func (q *SerialQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *SerialQueue) loop() {
	defer close(q.done)

	for {
		task, ok := q.next()
		if !ok {
			logger.Tracef("serial queue %s (%s): terminated", q.name, q.id)
			return
		}
		if task == nil {
			<-q.wake
			continue
		}
		q.run(task)
	}
}

// next dequeues the head task. Dequeue and the decision to run happen under
// one lock hold, so Shutdown either sees the task queued or not at all.
//
// LOCKS_EXCLUDED(q.mu)
func (q *SerialQueue) next() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state == common.WorkerDraining {
		q.moveTo(common.WorkerTerminated)
		return nil, false
	}
	if q.tasks.IsEmpty() {
		return nil, true
	}
	return q.tasks.Pop(), true
}

func (q *SerialQueue) run(task Task) {
	start := q.clock.Now()
	err := runSafely(func() error { return task.Execute(q.ctx) })
	latency := q.clock.Now().Sub(start)

	if err != nil {
		q.failed.Add(1)
		q.metricHandle.SerialQueueTaskCount(1, metrics.StatusFailed)
		q.metricHandle.SerialQueueTaskLatency(context.Background(), latency, metrics.StatusFailed)
		logger.Errorf("serial queue %s (%s): task failed: %v", q.name, q.id, err)
		return
	}
	q.executed.Add(1)
	q.metricHandle.SerialQueueTaskCount(1, metrics.StatusSuccessful)
	q.metricHandle.SerialQueueTaskLatency(context.Background(), latency, metrics.StatusSuccessful)
}
