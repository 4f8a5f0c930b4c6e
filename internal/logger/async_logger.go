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

package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// AsyncLogger decouples callers from the log file: Write copies the line into
// a buffered channel drained by a single writer goroutine. When the buffer is
// full the line is dropped and a warning goes to stderr.
type AsyncLogger struct {
	w  io.WriteCloser
	ch chan []byte
	wg sync.WaitGroup

	// mu guards closed and the send on ch against a concurrent Close.
	mu     sync.RWMutex
	closed bool
}

// NewAsyncLogger starts the writer goroutine for w.
func NewAsyncLogger(w io.WriteCloser, bufferSize int) *AsyncLogger {
	a := &AsyncLogger{
		w:  w,
		ch: make(chan []byte, bufferSize),
	}
	a.wg.Add(1)
	go a.writeLoop()
	return a
}

func (a *AsyncLogger) writeLoop() {
	defer a.wg.Done()
	for p := range a.ch {
		if _, err := a.w.Write(p); err != nil {
			fmt.Fprintf(os.Stderr, "asynclogger: failed to write log: %v\n", err)
		}
	}
}

// Write never blocks on the underlying writer.
func (a *AsyncLogger) Write(p []byte) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return 0, os.ErrClosed
	}

	// The caller may reuse p once Write returns.
	buf := make([]byte, len(p))
	copy(buf, p)
	select {
	case a.ch <- buf:
	default:
		fmt.Fprintln(os.Stderr, "asynclogger: log buffer is full, dropping message.")
	}
	return len(p), nil
}

// Close flushes buffered lines and closes the underlying writer.
func (a *AsyncLogger) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()

	a.wg.Wait()
	return a.w.Close()
}
