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

package scene

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/googlecloudplatform/volexec/internal/locker"
	"github.com/googlecloudplatform/volexec/internal/logger"
)

var (
	ErrContentExists   = errors.New("content already exists")
	ErrContentNotFound = errors.New("content not found")
	ErrUniverseClosed  = errors.New("universe closed")
)

// Universe holds the displayed contents and stands in for the render
// surface: FireContentChanged counts a refresh and takes renderDelay.
type Universe struct {
	renderDelay time.Duration
	renders     atomic.Int64

	mu locker.RWLocker

	// INVARIANT: len(order) == len(contents)
	// INVARIANT: for every name in order, contents[name].Name() == name
	// INVARIANT: closed => len(contents) == 0
	//
	// GUARDED_BY(mu)
	contents map[string]*Content

	// Insertion order of contents.
	//
	// GUARDED_BY(mu)
	order []string

	// GUARDED_BY(mu)
	closed bool
}

func NewUniverse(renderDelay time.Duration) *Universe {
	u := &Universe{
		renderDelay: renderDelay,
		contents:    make(map[string]*Content),
	}
	u.mu = locker.NewRW("Universe", u.checkInvariants)
	return u
}

// LOCKS_REQUIRED(u.mu)
func (u *Universe) checkInvariants() {
	if len(u.order) != len(u.contents) {
		panic(fmt.Sprintf("universe: %d names for %d contents", len(u.order), len(u.contents)))
	}
	for _, name := range u.order {
		c, ok := u.contents[name]
		if !ok || c.Name() != name {
			panic(fmt.Sprintf("universe: content %q is not indexed under its name", name))
		}
	}
	if u.closed && len(u.contents) > 0 {
		panic("universe: closed with contents")
	}
}

func (u *Universe) AddContent(c *Content) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return ErrUniverseClosed
	}
	if _, ok := u.contents[c.Name()]; ok {
		return fmt.Errorf("%w: %q", ErrContentExists, c.Name())
	}
	u.contents[c.Name()] = c
	u.order = append(u.order, c.Name())
	return nil
}

func (u *Universe) Content(name string) (*Content, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	c, ok := u.contents[name]
	return c, ok
}

// Contents returns all contents in the order they were added.
func (u *Universe) Contents() []*Content {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]*Content, 0, len(u.order))
	for _, name := range u.order {
		out = append(out, u.contents[name])
	}
	return out
}

func (u *Universe) RemoveContent(name string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.contents[name]; !ok {
		return fmt.Errorf("%w: %q", ErrContentNotFound, name)
	}
	delete(u.contents, name)
	for i, n := range u.order {
		if n == name {
			u.order = append(u.order[:i], u.order[i+1:]...)
			break
		}
	}
	return nil
}

// FireContentChanged refreshes the display of c. It is safe to call from
// any goroutine.
func (u *Universe) FireContentChanged(c *Content) {
	n := u.renders.Add(1)
	if u.renderDelay > 0 {
		time.Sleep(u.renderDelay)
	}
	logger.Tracef("universe: render #%d for %q", n, c.Name())
}

// Renders returns the number of refreshes fired so far.
func (u *Universe) Renders() int64 {
	return u.renders.Load()
}

// Close removes every content. Further AddContent calls fail.
func (u *Universe) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	clear(u.contents)
	u.order = nil
}

func (u *Universe) Closed() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.closed
}
