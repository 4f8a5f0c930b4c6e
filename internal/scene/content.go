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
	"sync/atomic"
)

var defaultColor = Color{R: 255, G: 255, B: 255}

type contentOptions struct {
	hasImage   bool
	resampling int
	dims       Slices
	color      Color
}

type ContentOption func(*contentOptions)

// WithoutImageData creates content that was not built from an image, such
// as a mesh loaded from a file.
func WithoutImageData() ContentOption {
	return func(o *contentOptions) { o.hasImage = false }
}

// WithResampling sets the factor the image was downsampled by when loaded.
func WithResampling(factor int) ContentOption {
	return func(o *contentOptions) { o.resampling = factor }
}

// WithDims sets the size of the image in voxels.
func WithDims(dims Slices) ContentOption {
	return func(o *contentOptions) { o.dims = dims }
}

func WithColor(c Color) ContentOption {
	return func(o *contentOptions) { o.color = c }
}

// Content is a named object of the universe with one Instant per timepoint.
type Content struct {
	name       string
	typ        ContentType
	hasImage   bool
	resampling int
	dims       Slices
	instants   []*Instant

	current atomic.Int32
}

// NewContent creates content with timepoints instants; the first one is
// current.
func NewContent(name string, typ ContentType, timepoints int, opts ...ContentOption) (*Content, error) {
	o := contentOptions{
		hasImage:   true,
		resampling: 1,
		dims:       Slices{X: 256, Y: 256, Z: 64},
		color:      defaultColor,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if timepoints < 1 {
		return nil, fmt.Errorf("content %q: need at least one timepoint, got %d", name, timepoints)
	}
	if o.resampling < 1 {
		return nil, fmt.Errorf("content %q: invalid resampling factor %d", name, o.resampling)
	}

	// Displayed dimensions shrink with the resampling factor.
	dims := Slices{
		X: max(1, o.dims.X/o.resampling),
		Y: max(1, o.dims.Y/o.resampling),
		Z: max(1, o.dims.Z/o.resampling),
	}
	c := &Content{
		name:       name,
		typ:        typ,
		hasImage:   o.hasImage,
		resampling: o.resampling,
		dims:       dims,
	}
	for tp := range timepoints {
		c.instants = append(c.instants, newInstant(tp, dims, o.color))
	}
	return c, nil
}

func (c *Content) Name() string {
	return c.name
}

func (c *Content) Type() ContentType {
	return c.typ
}

func (c *Content) HasImageData() bool {
	return c.hasImage
}

func (c *Content) ResamplingFactor() int {
	return c.resampling
}

// Dims returns the displayed size in voxels, after resampling.
func (c *Content) Dims() Slices {
	return c.dims
}

func (c *Content) Instants() []*Instant {
	return c.instants
}

// Current returns the instant of the displayed timepoint.
func (c *Content) Current() *Instant {
	return c.instants[c.current.Load()]
}

// ShowTimepoint makes tp the displayed timepoint.
func (c *Content) ShowTimepoint(tp int) error {
	if tp < 0 || tp >= len(c.instants) {
		return fmt.Errorf("content %q: timepoint %d out of range [0, %d)", c.name, tp, len(c.instants))
	}
	c.current.Store(int32(tp))
	return nil
}

// The setters below apply to every timepoint.

func (c *Content) SetTransparency(v float32) {
	for _, in := range c.instants {
		in.SetTransparency(v)
	}
}

func (c *Content) SetThreshold(th int) {
	for _, in := range c.instants {
		in.SetThreshold(th)
	}
}

func (c *Content) SetColor(col Color) {
	for _, in := range c.instants {
		in.SetColor(col)
	}
}

func (c *Content) SetSlices(s Slices) {
	for _, in := range c.instants {
		in.SetSlices(s)
	}
}
