// Package curve builds per-drone influence curves: piecewise keyframe
// sequences describing how strongly a formation constraint applies to a
// drone over time. A value of 0 leaves the drone free, 1 pins it to its
// marker; the ramp between the two is the transition window.
package curve

import (
	"fmt"

	"github.com/swarmstage/choreo/pkg/core"
)

// WindupType selects the shape of the ramp leading into a transition.
type WindupType int

const (
	// WindupLinear ramps with constant slope.
	WindupLinear WindupType = iota + 1
	// WindupSmoothFromLeft eases out of the hold before the ramp.
	WindupSmoothFromLeft
	// WindupSmoothFromRight eases into the ramp from the arrival side.
	WindupSmoothFromRight
	// WindupSmooth eases on both sides.
	WindupSmooth
)

func (w WindupType) String() string {
	switch w {
	case WindupLinear:
		return "Linear"
	case WindupSmoothFromLeft:
		return "SmoothFromLeft"
	case WindupSmoothFromRight:
		return "SmoothFromRight"
	case WindupSmooth:
		return "Smooth"
	default:
		return fmt.Sprintf("WindupType(%d)", int(w))
	}
}

// Descriptor captures everything needed to build one drone's influence curve
// for one storyboard entry.
type Descriptor struct {
	// SceneStartFrame is the first frame of the scene containing the show.
	SceneStartFrame int
	// WindupStartFrame, when set, inserts an extra zero keyframe where the
	// transition window of this particular drone begins. Ignored for the
	// first entry of the show.
	WindupStartFrame *int
	// StartFrame is where the drone reaches full influence.
	StartFrame int
	// EndFrame, when set, holds full influence until that frame.
	EndFrame *int
	// Windup selects the interpolation of the segment entering the ramp.
	Windup WindupType
}

// Build produces the keyframe sequence for the descriptor. Frames are
// strictly increasing; the transition segment carries the interpolation
// selected by Windup, every other segment is linear.
func (d *Descriptor) Build() []core.Keyframe {
	isFirst := d.SceneStartFrame == d.StartFrame

	zeroFrame := d.SceneStartFrame
	if isFirst {
		// The ramp of the first entry ends at the scene start, so its zero
		// keyframe moves one frame earlier and influence is already 1.0 when
		// the show begins.
		zeroFrame--
	}
	keyframes := []core.Keyframe{linearKeyframe(zeroFrame, 0)}

	if !isFirst && d.WindupStartFrame != nil && *d.WindupStartFrame > d.SceneStartFrame {
		keyframes = append(keyframes, linearKeyframe(*d.WindupStartFrame, 0))
	}

	// The segment after the last zero keyframe is the transition ramp; its
	// interpolation lives on that keyframe, not on the 1.0 one.
	transition := len(keyframes) - 1

	frame := d.StartFrame
	if last := keyframes[len(keyframes)-1].Frame; frame <= last {
		frame = last + 1
	}
	keyframes = append(keyframes, linearKeyframe(frame, 1))

	if d.EndFrame != nil && *d.EndFrame > frame {
		keyframes = append(keyframes, linearKeyframe(*d.EndFrame, 1))
	}

	if d.Windup != WindupLinear {
		kf := &keyframes[transition]
		kf.Interpolation = core.InterpolationBezier
		if d.Windup == WindupSmoothFromRight {
			kf.HandleRight = core.HandleVector
		}
		if d.Windup == WindupSmoothFromLeft {
			kf.HandleLeft = core.HandleVector
		}
	}

	return keyframes
}

func linearKeyframe(frame int, value float64) core.Keyframe {
	return core.Keyframe{
		Frame:         frame,
		Value:         value,
		Interpolation: core.InterpolationLinear,
		HandleLeft:    core.HandleAutoClamped,
		HandleRight:   core.HandleAutoClamped,
	}
}
