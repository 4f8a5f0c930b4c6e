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

// Package locker provides mutexes that optionally check invariants on every
// transition and report locks held for suspiciously long.
package locker

import (
	"runtime"
	"sync"
	"time"

	"github.com/googlecloudplatform/volexec/internal/logger"
)

var (
	gEnableInvariantsCheck bool
	gEnableDebugMessages   bool
)

// heldTooLong is how long a lock may be held before the debugger reports it.
const heldTooLong = 5 * time.Second

// EnableInvariantsCheck makes lockers created afterwards call their check
// function on every Lock and Unlock.
func EnableInvariantsCheck() {
	gEnableInvariantsCheck = true
}

// EnableDebugMessages makes lockers created afterwards log potential
// deadlocks.
func EnableDebugMessages() {
	gEnableDebugMessages = true
}

// New returns a mutex with potential capability for debugging. check may be
// nil when the guarded state has no invariants.
func New(name string, check func()) sync.Locker {
	var l sync.Locker = &sync.Mutex{}

	if gEnableInvariantsCheck && check != nil {
		l = &checker{
			locker: l,
			check:  check,
		}
	}

	if gEnableDebugMessages {
		l = &debugger{
			locker: l,
			name:   name,
		}
	}

	return l
}

type checker struct {
	locker sync.Locker
	check  func()
}

func (c *checker) Lock() {
	c.locker.Lock()
	c.check()
}

func (c *checker) Unlock() {
	c.check()
	c.locker.Unlock()
}

type debugger struct {
	locker sync.Locker
	name   string
	holder string
	timer  *time.Timer
}

func (d *debugger) Lock() {
	d.locker.Lock()

	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false /* all */)
	d.holder = string(buf[:n])

	name, holder := d.name, d.holder
	d.timer = time.AfterFunc(heldTooLong, func() {
		logger.Warnf("debug_mutex: Potential dead lock detected for a lock %q held by: %v\n", name, holder)
	})
}

func (d *debugger) Unlock() {
	d.holder = ""
	d.timer.Stop()
	d.timer = nil

	d.locker.Unlock()
}
