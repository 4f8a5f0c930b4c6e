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

// Package scene is an in-memory model of the viewer's displayed contents.
// It keeps the attributes the command layer edits and counts render
// refreshes; it does not draw anything.
package scene

import (
	"fmt"
	"strconv"
	"strings"
)

type ContentType int

const (
	Volume ContentType = iota
	Ortho
	Surface
	MultiOrtho
	Mesh
)

func (t ContentType) String() string {
	switch t {
	case Volume:
		return "volume"
	case Ortho:
		return "ortho"
	case Surface:
		return "surface"
	case MultiOrtho:
		return "multi-ortho"
	case Mesh:
		return "mesh"
	}
	return fmt.Sprintf("ContentType(%d)", int(t))
}

// Rendered from image data as texture slices.
func (t ContentType) IsVolumetric() bool {
	return t == Volume || t == Ortho || t == MultiOrtho
}

// IsMesh reports whether the content is displayed as a triangle mesh.
func (t ContentType) IsMesh() bool {
	return t == Surface || t == Mesh
}

// Color is an 8-bit RGB color.
type Color struct {
	R, G, B uint8
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseColor parses "#rrggbb" or "rrggbb".
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Slices holds one index per axis: the displayed orthogonal slice positions,
// or the volume dimensions.
type Slices struct {
	X, Y, Z int
}

// Clamp limits every position to [0, dim-1] of the matching axis of dims.
func (s Slices) Clamp(dims Slices) Slices {
	return Slices{
		X: clampIndex(s.X, dims.X),
		Y: clampIndex(s.Y, dims.Y),
		Z: clampIndex(s.Z, dims.Z),
	}
}

func clampIndex(v, dim int) int {
	return max(0, min(v, dim-1))
}

// Center returns the middle slice of every axis of dims.
func (s Slices) Center() Slices {
	return Slices{X: s.X / 2, Y: s.Y / 2, Z: s.Z / 2}
}
