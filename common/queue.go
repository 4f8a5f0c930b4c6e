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

package common

type node[T any] struct {
	value T
	next  *node[T]
}

// Queue is a FIFO backed by a singly linked list. It is not safe for
// concurrent use; callers guard it with their own lock.
type Queue[T any] struct {
	start, end *node[T]
	size       int
}

// NewQueue creates a new empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

// IsEmpty returns true if the queue is empty.
func (q *Queue[T]) IsEmpty() bool {
	return q.size == 0
}

// Push puts an item on the end of the queue.
func (q *Queue[T]) Push(value T) {
	n := &node[T]{value: value}
	if q.size == 0 {
		q.start = n
		q.end = n
	} else {
		q.end.next = n
		q.end = n
	}
	q.size++
}

// Pop removes and returns the front item, or the zero value of T when the
// queue is empty.
func (q *Queue[T]) Pop() T {
	if q.size == 0 {
		var zero T
		return zero
	}

	n := q.start
	q.start = n.next
	if q.start == nil {
		q.end = nil
	}
	q.size--
	return n.value
}

// Clear drops every item and returns how many were dropped.
func (q *Queue[T]) Clear() int {
	dropped := q.size
	q.start = nil
	q.end = nil
	q.size = 0
	return dropped
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	return q.size
}
