// pkg/core/keyframe.go
package core

// Interpolation selects how a curve segment is interpolated after a keyframe.
type Interpolation string

const (
	InterpolationLinear Interpolation = "LINEAR"
	InterpolationBezier Interpolation = "BEZIER"
)

// HandleType selects the smoothing behavior of one side of a Bezier keyframe.
type HandleType string

const (
	// HandleAutoClamped auto-smooths the handle without overshoot.
	HandleAutoClamped HandleType = "AUTO_CLAMPED"
	// HandleVector keeps the handle sharp, pointing at the adjacent keyframe.
	HandleVector HandleType = "VECTOR"
)

// Keyframe is one point of an influence curve, handed to curve storage.
type Keyframe struct {
	Frame         int           `json:"frame"`
	Value         float64       `json:"value"`
	Interpolation Interpolation `json:"interpolation"`
	HandleLeft    HandleType    `json:"handleLeft"`
	HandleRight   HandleType    `json:"handleRight"`
}
