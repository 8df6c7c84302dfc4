package curve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmstage/choreo/pkg/core"
)

func intPtr(v int) *int { return &v }

func frames(kfs []core.Keyframe) []int {
	out := make([]int, len(kfs))
	for i, kf := range kfs {
		out[i] = kf.Frame
	}
	return out
}

func TestBuild_SmoothWithoutWindupOrEnd(t *testing.T) {
	d := &Descriptor{
		SceneStartFrame: 0,
		StartFrame:      10,
		Windup:          WindupSmooth,
	}
	kfs := d.Build()

	require.Len(t, kfs, 2)
	assert.Equal(t, 0, kfs[0].Frame)
	assert.Equal(t, 0.0, kfs[0].Value)
	assert.Equal(t, 10, kfs[1].Frame)
	assert.Equal(t, 1.0, kfs[1].Value)

	// The transition keyframe is the last zero one; it carries the ramp.
	assert.Equal(t, core.InterpolationBezier, kfs[0].Interpolation)
	assert.Equal(t, core.HandleAutoClamped, kfs[0].HandleLeft)
	assert.Equal(t, core.HandleAutoClamped, kfs[0].HandleRight)
	assert.Equal(t, core.InterpolationLinear, kfs[1].Interpolation)
}

func TestBuild_FirstEntryStartsAtSceneStart(t *testing.T) {
	d := &Descriptor{
		SceneStartFrame: 0,
		StartFrame:      0,
		Windup:          WindupLinear,
	}
	kfs := d.Build()

	// The first entry holds full influence from the scene start on, so the
	// zero keyframe sits one frame before it.
	assert.Equal(t, []int{-1, 0}, frames(kfs))
	assert.Equal(t, 0.0, kfs[0].Value)
	assert.Equal(t, 1.0, kfs[1].Value)
}

func TestBuild_FirstKeyframePlacement(t *testing.T) {
	cases := []struct {
		name       string
		descriptor Descriptor
		want       int
	}{
		{"first entry", Descriptor{SceneStartFrame: 0, StartFrame: 0, Windup: WindupLinear}, -1},
		{"later entry", Descriptor{SceneStartFrame: 0, StartFrame: 10, Windup: WindupLinear}, 0},
		{"offset scene start", Descriptor{SceneStartFrame: 100, StartFrame: 100, Windup: WindupLinear}, 99},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kfs := tc.descriptor.Build()
			assert.Equal(t, tc.want, kfs[0].Frame)
		})
	}
}

func TestBuild_WindupKeyframe(t *testing.T) {
	d := &Descriptor{
		SceneStartFrame:  0,
		WindupStartFrame: intPtr(40),
		StartFrame:       60,
		Windup:           WindupSmoothFromRight,
	}
	kfs := d.Build()

	require.Len(t, kfs, 3)
	assert.Equal(t, []int{0, 40, 60}, frames(kfs))
	assert.Equal(t, 0.0, kfs[1].Value)

	// Only the windup keyframe is restyled.
	assert.Equal(t, core.InterpolationLinear, kfs[0].Interpolation)
	assert.Equal(t, core.InterpolationBezier, kfs[1].Interpolation)
	assert.Equal(t, core.HandleAutoClamped, kfs[1].HandleLeft)
	assert.Equal(t, core.HandleVector, kfs[1].HandleRight)
	assert.Equal(t, core.InterpolationLinear, kfs[2].Interpolation)
}

func TestBuild_SmoothFromLeftHandles(t *testing.T) {
	d := &Descriptor{
		SceneStartFrame:  0,
		WindupStartFrame: intPtr(40),
		StartFrame:       60,
		Windup:           WindupSmoothFromLeft,
	}
	kfs := d.Build()

	require.Len(t, kfs, 3)
	assert.Equal(t, core.HandleVector, kfs[1].HandleLeft)
	assert.Equal(t, core.HandleAutoClamped, kfs[1].HandleRight)
}

func TestBuild_WindupAtSceneStartIsDropped(t *testing.T) {
	d := &Descriptor{
		SceneStartFrame:  10,
		WindupStartFrame: intPtr(10),
		StartFrame:       50,
		Windup:           WindupLinear,
	}
	kfs := d.Build()

	// A windup frame at (or before) the scene start adds nothing over the
	// initial zero keyframe.
	assert.Equal(t, []int{10, 50}, frames(kfs))
}

func TestBuild_Plateau(t *testing.T) {
	d := &Descriptor{
		SceneStartFrame: 0,
		StartFrame:      10,
		EndFrame:        intPtr(100),
		Windup:          WindupLinear,
	}
	kfs := d.Build()

	assert.Equal(t, []int{0, 10, 100}, frames(kfs))
	assert.Equal(t, 1.0, kfs[1].Value)
	assert.Equal(t, 1.0, kfs[2].Value)
}

func TestBuild_ZeroLengthPlateauOmitted(t *testing.T) {
	d := &Descriptor{
		SceneStartFrame: 0,
		StartFrame:      10,
		EndFrame:        intPtr(10),
		Windup:          WindupLinear,
	}
	kfs := d.Build()

	assert.Equal(t, []int{0, 10}, frames(kfs))
}

func TestBuild_FramesStrictlyIncreasing(t *testing.T) {
	cases := []Descriptor{
		{SceneStartFrame: 0, StartFrame: 0, Windup: WindupSmooth},
		{SceneStartFrame: 5, WindupStartFrame: intPtr(6), StartFrame: 6, Windup: WindupLinear},
		{SceneStartFrame: 0, WindupStartFrame: intPtr(3), StartFrame: 2, EndFrame: intPtr(8), Windup: WindupSmooth},
	}
	for _, d := range cases {
		kfs := d.Build()
		for i := 1; i < len(kfs); i++ {
			assert.Greater(t, kfs[i].Frame, kfs[i-1].Frame, "descriptor %+v", d)
		}
	}
}
