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

package command

import (
	"errors"
	"sync"

	"github.com/googlecloudplatform/volexec/internal/adjuster"
	"github.com/googlecloudplatform/volexec/internal/logger"
	"github.com/googlecloudplatform/volexec/internal/scene"
)

var ErrControlClosed = errors.New("control already closed")

// attribute describes how a Control reads and writes one attribute.
type attribute[V any] struct {
	name string
	get  func(*scene.Instant) V
	set  func(*scene.Instant, V)
	// setAll copies a value to every timepoint of a content.
	setAll func(*scene.Content, V)
	// parse converts typed text. nil means the control takes no text.
	parse func(string) (V, error)
}

// Control is an open interactive edit of one attribute of the current
// instant of a content, as driven by a slider or a text field. Every Move
// is handed to a coalescing adjuster, so a fast drag costs at most one
// render per value the adjuster actually picks up.
type Control[V comparable] struct {
	attr     attribute[V]
	content  *scene.Content
	instant  *scene.Instant
	universe Universe
	adjuster *adjuster.Adjuster[*scene.Instant, V]

	// Value of the instant when the control was opened.
	initial V

	mu sync.Mutex

	// GUARDED_BY(mu)
	started bool

	// GUARDED_BY(mu)
	closed bool

	// Last value moved to, committed on Close.
	//
	// GUARDED_BY(mu)
	last V

	// GUARDED_BY(mu)
	moved bool
}

func newControl[V comparable](d *Dispatcher, c *scene.Content, attr attribute[V]) *Control[V] {
	ctl := &Control[V]{
		attr:     attr,
		content:  c,
		instant:  c.Current(),
		universe: d.universe,
	}
	ctl.initial = attr.get(ctl.instant)
	ctl.adjuster = adjuster.New[*scene.Instant, V](attr.name+"/"+c.Name(), ctl.apply, d.adjusterOpts...)
	return ctl
}

func (ctl *Control[V]) apply(in *scene.Instant, v V) error {
	ctl.attr.set(in, v)
	ctl.universe.FireContentChanged(ctl.content)
	return nil
}

// Initial returns the value the attribute had when the control was opened.
func (ctl *Control[V]) Initial() V {
	return ctl.initial
}

// Value returns the value currently applied to the instant.
func (ctl *Control[V]) Value() V {
	return ctl.attr.get(ctl.instant)
}

// Stats returns the counters of the underlying adjuster.
func (ctl *Control[V]) Stats() adjuster.Stats {
	return ctl.adjuster.Stats()
}

// Move requests v to be shown. The adjuster is started on the first move.
// Moves after Close are ignored.
func (ctl *Control[V]) Move(v V) {
	ctl.mu.Lock()
	if ctl.closed {
		ctl.mu.Unlock()
		return
	}
	if !ctl.started {
		if err := ctl.adjuster.Start(); err != nil {
			ctl.mu.Unlock()
			logger.Errorf("control %s: %v", ctl.adjuster.Name(), err)
			return
		}
		ctl.started = true
	}
	ctl.last = v
	ctl.moved = true
	ctl.mu.Unlock()

	ctl.adjuster.Submit(v, ctl.instant)
}

// Type handles text typed into the control's field. Text that does not parse
// is an intermediate state of the input and is ignored.
func (ctl *Control[V]) Type(text string) {
	if ctl.attr.parse == nil {
		logger.Debugf("control %s: text input not supported", ctl.adjuster.Name())
		return
	}
	v, err := ctl.attr.parse(text)
	if err != nil {
		logger.Tracef("control %s: ignoring input %q: %v", ctl.adjuster.Name(), text, err)
		return
	}
	ctl.Move(v)
}

// Close stops the adjuster and waits until its apply in flight, if any, is
// done. A canceled control restores the initial value. Otherwise the last
// moved value is committed, and copied to every timepoint when applyToAll is
// set. One render is fired either way.
func (ctl *Control[V]) Close(canceled, applyToAll bool) error {
	ctl.mu.Lock()
	if ctl.closed {
		ctl.mu.Unlock()
		return ErrControlClosed
	}
	ctl.closed = true
	last, moved := ctl.last, ctl.moved
	ctl.mu.Unlock()

	ctl.adjuster.Quit()
	<-ctl.adjuster.Done()

	switch {
	case canceled:
		ctl.attr.set(ctl.instant, ctl.initial)
	default:
		if moved && ctl.attr.get(ctl.instant) != last {
			ctl.attr.set(ctl.instant, last)
		}
		if applyToAll {
			ctl.attr.setAll(ctl.content, ctl.attr.get(ctl.instant))
		}
	}
	ctl.universe.FireContentChanged(ctl.content)

	st := ctl.adjuster.Stats()
	logger.Debugf("control %s closed (canceled: %t, all timepoints: %t): %d moves, %d applied, %d coalesced",
		ctl.adjuster.Name(), canceled, applyToAll, st.Submitted, st.Applied, st.Coalesced)
	return nil
}
