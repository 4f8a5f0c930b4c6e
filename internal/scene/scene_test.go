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
	"sync"
	"testing"

	"github.com/googlecloudplatform/volexec/internal/locker"
	"github.com/jacobsa/syncutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func init() {
	syncutil.EnableInvariantChecking()
	locker.EnableInvariantsCheck()
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{in: "#ff8000", want: Color{R: 255, G: 128}},
		{in: "00ff7f", want: Color{G: 255, B: 127}},
		{in: " #FFFFFF ", want: Color{R: 255, G: 255, B: 255}},
		{in: "#fff", wantErr: true},
		{in: "#gg0000", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseColor(tc.in)

			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got, must(ParseColor(got.String())))
		})
	}
}

func must(c Color, err error) Color {
	if err != nil {
		panic(err)
	}
	return c
}

func TestSlicesClamp(t *testing.T) {
	dims := Slices{X: 10, Y: 20, Z: 5}

	assert.Equal(t, Slices{X: 0, Y: 19, Z: 4}, Slices{X: -3, Y: 100, Z: 4}.Clamp(dims))
	assert.Equal(t, Slices{X: 5, Y: 10, Z: 2}, dims.Center())
}

func TestContentType(t *testing.T) {
	assert.True(t, Ortho.IsVolumetric())
	assert.False(t, Surface.IsVolumetric())
	assert.True(t, Surface.IsMesh())
	assert.True(t, Mesh.IsMesh())
	assert.False(t, Volume.IsMesh())
	assert.Equal(t, "multi-ortho", MultiOrtho.String())
	assert.Equal(t, "ContentType(42)", ContentType(42).String())
}

type ContentTest struct {
	suite.Suite
	content *Content
}

func TestContentSuite(t *testing.T) {
	suite.Run(t, new(ContentTest))
}

func (t *ContentTest) SetupTest() {
	var err error
	t.content, err = NewContent("brain", Ortho, 3, WithDims(Slices{X: 100, Y: 80, Z: 40}), WithResampling(2))
	t.Require().NoError(err)
}

func (t *ContentTest) TestResamplingShrinksDims() {
	assert.Equal(t.T(), Slices{X: 50, Y: 40, Z: 20}, t.content.Dims())
	assert.Equal(t.T(), Slices{X: 25, Y: 20, Z: 10}, t.content.Current().Slices())
}

func (t *ContentTest) TestSettersClampIntoRange() {
	in := t.content.Current()

	in.SetTransparency(1.5)
	in.SetThreshold(-7)
	in.SetSlices(Slices{X: 60, Y: -1, Z: 3})

	st := in.State()
	assert.Equal(t.T(), float32(1), st.Transparency)
	assert.Equal(t.T(), 0, st.Threshold)
	assert.Equal(t.T(), Slices{X: 49, Y: 0, Z: 3}, st.Slices)
}

func (t *ContentTest) TestContentSettersApplyToAllTimepoints() {
	t.content.SetThreshold(300)
	t.content.SetColor(Color{R: 1})

	for _, in := range t.content.Instants() {
		assert.Equal(t.T(), MaxThreshold, in.Threshold())
		assert.Equal(t.T(), Color{R: 1}, in.Color())
	}
}

func (t *ContentTest) TestShowTimepoint() {
	require.NoError(t.T(), t.content.ShowTimepoint(2))
	assert.Equal(t.T(), 2, t.content.Current().Timepoint())

	assert.Error(t.T(), t.content.ShowTimepoint(3))
	assert.Error(t.T(), t.content.ShowTimepoint(-1))
	assert.Equal(t.T(), 2, t.content.Current().Timepoint())
}

func (t *ContentTest) TestConcurrentMutation() {
	in := t.content.Current()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				in.Smooth()
				in.SetTransparency(float32(j) / 100)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t.T(), 800, in.State().SmoothIterations)
}

func TestNewContent_RejectsBadArguments(t *testing.T) {
	_, err := NewContent("a", Volume, 0)
	assert.Error(t, err)

	_, err = NewContent("a", Volume, 1, WithResampling(0))
	assert.Error(t, err)
}

func TestUniverse(t *testing.T) {
	u := NewUniverse(0)
	a, err := NewContent("a", Volume, 1)
	require.NoError(t, err)
	b, err := NewContent("b", Mesh, 1, WithoutImageData())
	require.NoError(t, err)
	require.NoError(t, u.AddContent(a))
	require.NoError(t, u.AddContent(b))

	assert.ErrorIs(t, u.AddContent(a), ErrContentExists)
	assert.Equal(t, []*Content{a, b}, u.Contents())
	got, ok := u.Content("b")
	assert.True(t, ok)
	assert.Same(t, b, got)
	assert.False(t, got.HasImageData())

	require.NoError(t, u.RemoveContent("a"))
	assert.ErrorIs(t, u.RemoveContent("a"), ErrContentNotFound)
	assert.Equal(t, []*Content{b}, u.Contents())

	u.FireContentChanged(b)
	u.FireContentChanged(b)
	assert.Equal(t, int64(2), u.Renders())

	u.Close()
	assert.True(t, u.Closed())
	assert.Empty(t, u.Contents())
	assert.ErrorIs(t, u.AddContent(a), ErrUniverseClosed)
}
