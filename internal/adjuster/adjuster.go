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

// Package adjuster provides a coalescing update worker: a background
// goroutine that applies only the most recently submitted value to its
// target, with at most one apply in flight.
//
// A typical use is a slider bound to an expensive render refresh. The
// slider calls Submit on every event; the worker keeps up by skipping values
// that were superseded before it could pick them up.
package adjuster

import (
	"context"
	"errors"
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

var (
	ErrAlreadyStarted = errors.New("adjuster already started")
	ErrTerminated     = errors.New("adjuster terminated")
	ErrApplyPanicked  = errors.New("apply panicked")
)

// ApplyFunc performs the mutation for one settled value and any refresh it
// needs. It is never called concurrently with itself for one Adjuster, and
// must not call Submit on the Adjuster that invokes it.
type ApplyFunc[T, V any] func(target T, value V) error

type request[T, V any] struct {
	target T
	value  V
	// seq numbers submissions from 1. Two requests for the same target are
	// told apart by seq, never by comparing targets.
	seq uint64
}

// Stats are cumulative counters of one Adjuster.
type Stats struct {
	Submitted uint64
	Coalesced uint64
	Ignored   uint64
	Applied   uint64
	Failed    uint64
}

type Option func(*options)

type options struct {
	metricHandle metrics.MetricHandle
	clock        timeutil.Clock
}

// WithMetricHandle reports submit and apply metrics to mh.
func WithMetricHandle(mh metrics.MetricHandle) Option {
	return func(o *options) { o.metricHandle = mh }
}

// WithClock sets the clock used to measure apply latency.
func WithClock(c timeutil.Clock) Option {
	return func(o *options) { o.clock = c }
}

// Adjuster is a single-use coalescing worker. Create it with New, call Start
// once and Quit once.
type Adjuster[T, V any] struct {
	/////////////////////////
	// Constant data
	/////////////////////////

	id           string
	name         string
	apply        ApplyFunc[T, V]
	metricHandle metrics.MetricHandle
	clock        timeutil.Clock

	// wake holds at most one token. A token means the loop should look at the
	// pending slot or the state again; it may be stale.
	wake chan struct{}

	// done is closed once the worker will never call apply again.
	done chan struct{}

	submitted, coalesced, ignored, applied, failed atomic.Uint64

	/////////////////////////
	// Mutable state
	/////////////////////////

	mu sync.Locker

	// INVARIANT: state is WorkerDraining or WorkerTerminated => pending == nil
	// INVARIANT: pending != nil => pending.seq > inFlight
	// INVARIANT: pending != nil => pending.seq <= lastSeq
	// INVARIANT: inFlight <= lastSeq
	//
	// GUARDED_BY(mu)
	state common.WorkerState

	// The latest request not yet picked up by the loop.
	//
	// GUARDED_BY(mu)
	pending *request[T, V]

	// seq of the request being applied, 0 when idle.
	//
	// GUARDED_BY(mu)
	inFlight uint64

	// GUARDED_BY(mu)
	lastSeq uint64
}

// New creates an Adjuster in the created state. Submissions made before
// Start are kept and the latest one is applied once the worker runs.
func New[T, V any](name string, apply ApplyFunc[T, V], opts ...Option) *Adjuster[T, V] {
	o := options{
		metricHandle: metrics.NewNoopMetrics(),
		clock:        timeutil.RealClock(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	a := &Adjuster[T, V]{
		id:           uuid.NewString(),
		name:         name,
		apply:        apply,
		metricHandle: o.metricHandle,
		clock:        o.clock,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		state:        common.WorkerCreated,
	}
	a.mu = locker.New(fmt.Sprintf("Adjuster: %s", name), a.checkInvariants)
	return a
}

// LOCKS_REQUIRED(a.mu)
func (a *Adjuster[T, V]) checkInvariants() {
	if !a.state.Accepting() && a.pending != nil {
		panic(fmt.Sprintf("adjuster %s: pending request #%d in state %v", a.name, a.pending.seq, a.state))
	}
	if a.pending != nil && a.pending.seq <= a.inFlight {
		panic(fmt.Sprintf("adjuster %s: pending #%d not newer than in-flight #%d", a.name, a.pending.seq, a.inFlight))
	}
	if a.pending != nil && a.pending.seq > a.lastSeq {
		panic(fmt.Sprintf("adjuster %s: pending #%d beyond last #%d", a.name, a.pending.seq, a.lastSeq))
	}
	if a.inFlight > a.lastSeq {
		panic(fmt.Sprintf("adjuster %s: in-flight #%d beyond last #%d", a.name, a.inFlight, a.lastSeq))
	}
}

// LOCKS_REQUIRED(a.mu)
func (a *Adjuster[T, V]) moveTo(next common.WorkerState) {
	if !a.state.CanTransition(next) {
		panic(fmt.Sprintf("adjuster %s: illegal transition %v -> %v", a.name, a.state, next))
	}
	a.state = next
}

// Name returns the name given to New.
func (a *Adjuster[T, V]) Name() string {
	return a.name
}

// Start begins the run loop on its own goroutine.
func (a *Adjuster[T, V]) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case common.WorkerCreated:
	case common.WorkerTerminated:
		return ErrTerminated
	default:
		return ErrAlreadyStarted
	}

	a.moveTo(common.WorkerRunning)
	go a.loop()
	logger.Tracef("adjuster %s (%s): started", a.name, a.id)
	return nil
}

// Submit makes (value, target) the pending request, replacing any request
// not yet picked up, and wakes the worker. It never blocks on apply. Once
// Quit was called the submission is ignored.
func (a *Adjuster[T, V]) Submit(value V, target T) {
	a.submitted.Add(1)

	a.mu.Lock()
	if !a.state.Accepting() {
		state := a.state
		a.mu.Unlock()

		a.ignored.Add(1)
		a.metricHandle.AdjusterSubmitCount(1, metrics.SubmitOutcomeIgnored)
		logger.Tracef("adjuster %s (%s): submission ignored in state %v", a.name, a.id, state)
		return
	}

	outcome := metrics.SubmitOutcomeQueued
	if a.pending != nil {
		outcome = metrics.SubmitOutcomeCoalesced
	}
	a.lastSeq++
	a.pending = &request[T, V]{target: target, value: value, seq: a.lastSeq}
	a.mu.Unlock()

	if outcome == metrics.SubmitOutcomeCoalesced {
		a.coalesced.Add(1)
	}
	a.metricHandle.AdjusterSubmitCount(1, outcome)
	a.signal()
}

// Quit requests termination and drops the pending request. It does not wait
// for an apply in flight; use Done for that. After Quit returns no further
// apply is started.
func (a *Adjuster[T, V]) Quit() {
	a.mu.Lock()
	dropped := a.pending != nil
	a.pending = nil
	switch a.state {
	case common.WorkerCreated:
		a.moveTo(common.WorkerTerminated)
		close(a.done)
	case common.WorkerRunning:
		a.moveTo(common.WorkerDraining)
	default:
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	a.signal()
	logger.Tracef("adjuster %s (%s): quit requested, pending request dropped: %t", a.name, a.id, dropped)
}

// Done is closed when the worker has exited. An apply in flight at the time
// of Quit has completed by then.
func (a *Adjuster[T, V]) Done() <-chan struct{} {
	return a.done
}

// State returns the current lifecycle state.
func (a *Adjuster[T, V]) State() common.WorkerState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Stats returns a snapshot of the cumulative counters.
func (a *Adjuster[T, V]) Stats() Stats {
	return Stats{
		Submitted: a.submitted.Load(),
		Coalesced: a.coalesced.Load(),
		Ignored:   a.ignored.Load(),
		Applied:   a.applied.Load(),
		Failed:    a.failed.Load(),
	}
}

func (a *Adjuster[T, V]) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *Adjuster[T, V]) loop() {
	defer close(a.done)

	for {
		req, ok := a.next()
		if !ok {
			logger.Tracef("adjuster %s (%s): terminated", a.name, a.id)
			return
		}
		if req == nil {
			<-a.wake
			continue
		}

		a.applyOne(req)
		a.finish(req)
	}
}

// next takes the pending request and marks it in flight. It returns
// ok == false when the loop must exit and a nil request when there is
// nothing to do.
//
// LOCKS_EXCLUDED(a.mu)
func (a *Adjuster[T, V]) next() (req *request[T, V], ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == common.WorkerDraining {
		a.moveTo(common.WorkerTerminated)
		return nil, false
	}

	req = a.pending
	if req != nil {
		a.pending = nil
		a.inFlight = req.seq
	}
	return req, true
}

// finish clears the in-flight marker. A request submitted while req was
// being applied stays pending for the next iteration.
//
// LOCKS_EXCLUDED(a.mu)
func (a *Adjuster[T, V]) finish(req *request[T, V]) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.inFlight == req.seq {
		a.inFlight = 0
	}
}

func (a *Adjuster[T, V]) applyOne(req *request[T, V]) {
	start := a.clock.Now()
	err := a.safeApply(req)
	a.metricHandle.AdjusterApplyLatency(context.Background(), a.clock.Now().Sub(start))

	if err != nil {
		a.failed.Add(1)
		a.metricHandle.AdjusterApplyCount(1, metrics.StatusFailed)
		logger.Errorf("adjuster %s (%s): apply of request #%d failed: %v", a.name, a.id, req.seq, err)
		return
	}
	a.applied.Add(1)
	a.metricHandle.AdjusterApplyCount(1, metrics.StatusSuccessful)
}

func (a *Adjuster[T, V]) safeApply(req *request[T, V]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrApplyPanicked, r)
		}
	}()
	return a.apply(req.target, req.value)
}
