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
	"fmt"

	"github.com/googlecloudplatform/volexec/internal/util"
	"github.com/jacobsa/syncutil"
)

const (
	MinThreshold = 0
	MaxThreshold = 255
)

// InstantState is a copy of the attributes of an Instant.
type InstantState struct {
	Timepoint        int
	Transparency     float32
	Threshold        int
	Color            Color
	Slices           Slices
	SmoothIterations int
	Fills            int
	VolumeUpdates    int
}

// Instant is the displayed state of one content at one timepoint. It is safe
// for concurrent use; every setter clamps its argument into range.
type Instant struct {
	/////////////////////////
	// Constant data
	/////////////////////////

	timepoint int
	dims      Slices

	/////////////////////////
	// Mutable state
	/////////////////////////

	mu syncutil.InvariantMutex

	// INVARIANT: 0 <= transparency <= 1
	// INVARIANT: MinThreshold <= threshold <= MaxThreshold
	// INVARIANT: slices == slices.Clamp(dims)
	//
	// GUARDED_BY(mu)
	transparency float32

	// GUARDED_BY(mu)
	threshold int

	// GUARDED_BY(mu)
	color Color

	// GUARDED_BY(mu)
	slices Slices

	// GUARDED_BY(mu)
	smoothIterations int

	// GUARDED_BY(mu)
	fills int

	// GUARDED_BY(mu)
	volumeUpdates int
}

func newInstant(timepoint int, dims Slices, color Color) *Instant {
	in := &Instant{
		timepoint: timepoint,
		dims:      dims,
		color:     color,
		slices:    dims.Center(),
	}
	in.mu = syncutil.NewInvariantMutex(in.checkInvariants)
	return in
}

// LOCKS_REQUIRED(in.mu)
func (in *Instant) checkInvariants() {
	if in.transparency < 0 || in.transparency > 1 {
		panic(fmt.Sprintf("instant %d: transparency %v out of range", in.timepoint, in.transparency))
	}
	if in.threshold < MinThreshold || in.threshold > MaxThreshold {
		panic(fmt.Sprintf("instant %d: threshold %d out of range", in.timepoint, in.threshold))
	}
	if in.slices != in.slices.Clamp(in.dims) {
		panic(fmt.Sprintf("instant %d: slices %v outside %v", in.timepoint, in.slices, in.dims))
	}
}

func (in *Instant) Timepoint() int {
	return in.timepoint
}

func (in *Instant) Transparency() float32 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.transparency
}

func (in *Instant) SetTransparency(v float32) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.transparency = util.Clamp(v, 0, 1)
}

func (in *Instant) Threshold() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.threshold
}

func (in *Instant) SetThreshold(th int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.threshold = util.Clamp(th, MinThreshold, MaxThreshold)
}

func (in *Instant) Color() Color {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.color
}

func (in *Instant) SetColor(c Color) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.color = c
}

func (in *Instant) Slices() Slices {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.slices
}

func (in *Instant) SetSlices(s Slices) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.slices = s.Clamp(in.dims)
}

// Smooth runs one smoothing iteration over the mesh.
func (in *Instant) Smooth() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.smoothIterations++
}

// Fill clears the voxels under the selection.
func (in *Instant) Fill() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.fills++
}

// UpdateVolume reloads the textures from the image data.
func (in *Instant) UpdateVolume() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.volumeUpdates++
}

// State returns a consistent copy of all attributes.
func (in *Instant) State() InstantState {
	in.mu.Lock()
	defer in.mu.Unlock()
	return InstantState{
		Timepoint:        in.timepoint,
		Transparency:     in.transparency,
		Threshold:        in.threshold,
		Color:            in.color,
		Slices:           in.slices,
		SmoothIterations: in.smoothIterations,
		Fills:            in.fills,
		VolumeUpdates:    in.volumeUpdates,
	}
}
