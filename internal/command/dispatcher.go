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

// Package command turns viewer menu actions into calls on the scene,
// routing interactive edits through coalescing adjusters, mesh smoothing
// through a batch runner and volume edits through a serial queue.
package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/googlecloudplatform/volexec/internal/adjuster"
	"github.com/googlecloudplatform/volexec/internal/logger"
	"github.com/googlecloudplatform/volexec/internal/scene"
	"github.com/googlecloudplatform/volexec/internal/util"
	"github.com/googlecloudplatform/volexec/internal/workerpool"
	"github.com/googlecloudplatform/volexec/metrics"
)

var (
	ErrNoSelection     = errors.New("selection required")
	ErrNoImageData     = errors.New("the selected object contains no image data")
	ErrNotInteractive  = errors.New("surface threshold cannot be changed interactively")
	ErrUnsupportedType = errors.New("not supported for this content type")
	ErrResampled       = errors.New("object must be loaded with resampling factor 1")
)

// Universe is the part of the scene the dispatcher acts on.
type Universe interface {
	Content(name string) (*scene.Content, bool)
	Contents() []*scene.Content
	RemoveContent(name string) error
	FireContentChanged(c *scene.Content)
	Close()
}

type Dispatcher struct {
	universe     Universe
	batch        *workerpool.BatchRunner
	serial       *workerpool.SerialQueue
	metricHandle metrics.MetricHandle
	adjusterOpts []adjuster.Option
}

// NewDispatcher creates a dispatcher. The caller keeps ownership of batch
// and serial; Flush shuts serial down.
func NewDispatcher(u Universe, batch *workerpool.BatchRunner, serial *workerpool.SerialQueue, mh metrics.MetricHandle) *Dispatcher {
	return &Dispatcher{
		universe:     u,
		batch:        batch,
		serial:       serial,
		metricHandle: mh,
		adjusterOpts: []adjuster.Option{adjuster.WithMetricHandle(mh)},
	}
}

func (d *Dispatcher) dispatched(command string) {
	d.metricHandle.CommandDispatchCount(context.Background(), 1, command)
}

func (d *Dispatcher) lookup(name string) (*scene.Content, error) {
	c, ok := d.universe.Content(name)
	if !ok {
		return nil, fmt.Errorf("%w: no content named %q", ErrNoSelection, name)
	}
	return c, nil
}

////////////////////////////////////////////////////////////////////////
// Interactive controls
////////////////////////////////////////////////////////////////////////

// ChangeTransparency opens a percent slider (0..100) over the transparency
// of the current instant.
func (d *Dispatcher) ChangeTransparency(name string) (*Control[int], error) {
	d.dispatched(metrics.CommandChangeTransparency)
	c, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	return newControl(d, c, attribute[int]{
		name: "transparency",
		get: func(in *scene.Instant) int {
			return int(math.Round(float64(in.Transparency()) * 100))
		},
		set: func(in *scene.Instant, v int) {
			in.SetTransparency(float32(util.Clamp(v, 0, 100)) / 100)
		},
		setAll: func(c *scene.Content, v int) {
			c.SetTransparency(float32(util.Clamp(v, 0, 100)) / 100)
		},
		parse: strconv.Atoi,
	}), nil
}

// ChangeThreshold opens a slider (0..255) over the threshold of the current
// instant. Surface thresholds are set with SetThreshold instead.
func (d *Dispatcher) ChangeThreshold(name string) (*Control[int], error) {
	d.dispatched(metrics.CommandChangeThreshold)
	c, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	if !c.HasImageData() {
		return nil, fmt.Errorf("%q: %w, therefore the threshold can't be changed", name, ErrNoImageData)
	}
	if c.Type() == scene.Surface {
		return nil, fmt.Errorf("%q: %w", name, ErrNotInteractive)
	}
	return newControl(d, c, attribute[int]{
		name:   "threshold",
		get:    (*scene.Instant).Threshold,
		set:    (*scene.Instant).SetThreshold,
		setAll: (*scene.Content).SetThreshold,
		parse:  strconv.Atoi,
	}), nil
}

// SetThreshold sets the threshold of the current instant, or of every
// timepoint when applyToAll is set, clamped to [0, 255].
func (d *Dispatcher) SetThreshold(name string, th int, applyToAll bool) error {
	d.dispatched(metrics.CommandSetThreshold)
	c, err := d.lookup(name)
	if err != nil {
		return err
	}
	if !c.HasImageData() {
		return fmt.Errorf("%q: %w, therefore the threshold can't be changed", name, ErrNoImageData)
	}
	th = util.Clamp(th, scene.MinThreshold, scene.MaxThreshold)
	if applyToAll {
		c.SetThreshold(th)
	} else {
		c.Current().SetThreshold(th)
	}
	d.universe.FireContentChanged(c)
	return nil
}

// ChangeColor opens a color chooser over the current instant. Typed text is
// parsed as #rrggbb.
func (d *Dispatcher) ChangeColor(name string) (*Control[scene.Color], error) {
	d.dispatched(metrics.CommandChangeColor)
	c, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	return newControl(d, c, attribute[scene.Color]{
		name:   "color",
		get:    (*scene.Instant).Color,
		set:    (*scene.Instant).SetColor,
		setAll: (*scene.Content).SetColor,
		parse:  scene.ParseColor,
	}), nil
}

// ChangeSlices opens three sliders over the displayed orthogonal slices.
// Positions are clamped to the volume.
func (d *Dispatcher) ChangeSlices(name string) (*Control[scene.Slices], error) {
	d.dispatched(metrics.CommandChangeSlices)
	c, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	if c.Type() != scene.Ortho && c.Type() != scene.MultiOrtho {
		return nil, fmt.Errorf("%q (%v): %w", name, c.Type(), ErrUnsupportedType)
	}
	return newControl(d, c, attribute[scene.Slices]{
		name:   "slices",
		get:    (*scene.Instant).Slices,
		set:    (*scene.Instant).SetSlices,
		setAll: (*scene.Content).SetSlices,
	}), nil
}

////////////////////////////////////////////////////////////////////////
// Background work
////////////////////////////////////////////////////////////////////////

func (d *Dispatcher) smooth(c *scene.Content) {
	if !c.Type().IsMesh() {
		return
	}
	c.Current().Smooth()
	d.universe.FireContentChanged(c)
}

// SmoothAllMeshes runs one smoothing iteration over every mesh, in
// parallel. Other contents are left alone.
func (d *Dispatcher) SmoothAllMeshes(ctx context.Context) workerpool.BatchReport {
	d.dispatched(metrics.CommandSmoothAllMeshes)
	contents := d.universe.Contents()
	report := workerpool.RunBatch(ctx, d.batch, contents, func(_ context.Context, _ int, c *scene.Content) error {
		d.smooth(c)
		return nil
	})
	logger.Infof("smooth all meshes: %d contents, %d succeeded, %d failed, %d skipped",
		report.Total, report.Succeeded, report.Failed, report.Skipped)
	return report
}

// SmoothMesh runs one smoothing iteration if name is a mesh.
func (d *Dispatcher) SmoothMesh(name string) error {
	d.dispatched(metrics.CommandSmoothMesh)
	c, err := d.lookup(name)
	if err != nil {
		return err
	}
	d.smooth(c)
	return nil
}

func (d *Dispatcher) volumetric(name string) (*scene.Content, error) {
	c, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	if t := c.Type(); t != scene.Volume && t != scene.Ortho {
		return nil, fmt.Errorf("%q (%v): %w", name, t, ErrUnsupportedType)
	}
	return c, nil
}

// Fill clears the selected region of the current instant on the serial
// queue.
func (d *Dispatcher) Fill(name string) error {
	d.dispatched(metrics.CommandFill)
	c, err := d.volumetric(name)
	if err != nil {
		return err
	}
	in := c.Current()
	return d.serial.Submit(workerpool.TaskFunc(func(context.Context) error {
		in.Fill()
		d.universe.FireContentChanged(c)
		return nil
	}))
}

// UpdateVolume reloads the textures of the current instant on the serial
// queue.
func (d *Dispatcher) UpdateVolume(name string) error {
	d.dispatched(metrics.CommandUpdateVolume)
	c, err := d.volumetric(name)
	if err != nil {
		return err
	}
	if f := c.ResamplingFactor(); f != 1 {
		return fmt.Errorf("%q (resampling factor %d): %w", name, f, ErrResampled)
	}
	in := c.Current()
	return d.serial.Submit(workerpool.TaskFunc(func(context.Context) error {
		in.UpdateVolume()
		d.universe.FireContentChanged(c)
		return nil
	}))
}

// Execute submits task to the serial queue.
func (d *Dispatcher) Execute(task workerpool.Task) error {
	d.dispatched(metrics.CommandExecute)
	return d.serial.Submit(task)
}

// Flush shuts the serial queue down, discarding tasks not started yet.
func (d *Dispatcher) Flush() {
	d.dispatched(metrics.CommandFlush)
	d.serial.Shutdown()
}

////////////////////////////////////////////////////////////////////////
// Universe
////////////////////////////////////////////////////////////////////////

func (d *Dispatcher) Delete(name string) error {
	d.dispatched(metrics.CommandDelete)
	if _, err := d.lookup(name); err != nil {
		return err
	}
	return d.universe.RemoveContent(name)
}

func (d *Dispatcher) Close() {
	d.dispatched(metrics.CommandClose)
	d.universe.Close()
}
