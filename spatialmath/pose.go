// Package spatialmath defines the homogeneous transforms and camera matrices used to
// move annotations between the model, camera and world frames.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// pinvCutoff is the relative singular value cutoff of PseudoInverse.
const pinvCutoff = 1e-15

// ErrSingularTransform is returned when a transform has no ordinary inverse.
var ErrSingularTransform = errors.New("transform is singular")

// Pose is a 4x4 homogeneous transform. The zero value is not a valid pose, use NewZeroPose.
// Elements are stored row-major; the serialized form is column-major.
type Pose struct {
	m [16]float64
}

// NewZeroPose returns the identity transform.
func NewZeroPose() Pose {
	return Pose{m: [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}}
}

// NewPoseFromFlat builds a pose from 16 values in column-major order.
func NewPoseFromFlat(flat []float64) (Pose, error) {
	if len(flat) != 16 {
		return Pose{}, errors.Errorf("pose needs 16 values, got %d", len(flat))
	}
	var p Pose
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			p.m[row*4+col] = flat[col*4+row]
		}
	}
	return p, nil
}

// NewPoseFromRt builds a pose from a row-major 3x3 rotation and a translation, the
// layout used by the BOP annotation files.
func NewPoseFromRt(rotation, translation []float64) (Pose, error) {
	if len(rotation) != 9 {
		return Pose{}, errors.Errorf("rotation needs 9 values, got %d", len(rotation))
	}
	if len(translation) != 3 {
		return Pose{}, errors.Errorf("translation needs 3 values, got %d", len(translation))
	}
	p := NewZeroPose()
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			p.m[row*4+col] = rotation[row*3+col]
		}
		p.m[row*4+3] = translation[row]
	}
	return p, nil
}

// At returns the element at the given row and column.
func (p Pose) At(row, col int) float64 {
	return p.m[row*4+col]
}

// Flat serializes the pose as 16 values in column-major order.
func (p Pose) Flat() []float64 {
	flat := make([]float64, 16)
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			flat[col*4+row] = p.m[row*4+col]
		}
	}
	return flat
}

// Rotation returns the top-left 3x3 block row-major.
func (p Pose) Rotation() []float64 {
	r := make([]float64, 0, 9)
	for row := 0; row < 3; row++ {
		r = append(r, p.m[row*4:row*4+3]...)
	}
	return r
}

// Point returns the translation part of the pose.
func (p Pose) Point() r3.Vector {
	return r3.Vector{X: p.m[3], Y: p.m[7], Z: p.m[11]}
}

// TranslationSlice returns the translation as a 3 element slice.
func (p Pose) TranslationSlice() []float64 {
	pt := p.Point()
	return []float64{pt.X, pt.Y, pt.Z}
}

func (p Pose) String() string {
	return fmt.Sprintf("{R: %v, t: %v}", p.Rotation(), p.TranslationSlice())
}

func (p Pose) dense() *mat.Dense {
	data := make([]float64, 16)
	copy(data, p.m[:])
	return mat.NewDense(4, 4, data)
}

func poseFromDense(d mat.Matrix) Pose {
	var p Pose
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			p.m[row*4+col] = d.At(row, col)
		}
	}
	return p
}

// Compose returns a·b.
func Compose(a, b Pose) Pose {
	var out mat.Dense
	out.Mul(a.dense(), b.dense())
	return poseFromDense(&out)
}

// Invert returns the ordinary matrix inverse of p. No rigid-body shortcut is taken, so
// a transform that drifted away from a proper rotation is still inverted exactly.
// Only an exactly singular p is an error; an ill-conditioned p is still inverted.
func Invert(p Pose) (Pose, error) {
	var inv mat.Dense
	err := inv.Inverse(p.dense())
	var cond mat.Condition
	if err != nil && (!errors.As(err, &cond) || math.IsInf(float64(cond), 1)) {
		return Pose{}, errors.Wrap(ErrSingularTransform, err.Error())
	}
	out := poseFromDense(&inv)
	for _, v := range out.m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Pose{}, errors.Wrap(ErrSingularTransform, "inverse is not finite")
		}
	}
	return out, nil
}

// PseudoInverse returns the Moore-Penrose inverse of p computed from its SVD.
func PseudoInverse(p Pose) Pose {
	var svd mat.SVD
	if ok := svd.Factorize(p.dense(), mat.SVDFull); !ok {
		// SVD of a finite 4x4 only fails on NaN/Inf input.
		return poseFromDense(mat.NewDense(4, 4, nil))
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)

	cutoff := pinvCutoff * values[0]
	inverted := make([]float64, len(values))
	for i, s := range values {
		if s > cutoff {
			inverted[i] = 1 / s
		}
	}

	// V * S^+ * U^T
	var vs, out mat.Dense
	vs.Mul(&v, mat.NewDiagDense(len(inverted), inverted))
	out.Mul(&vs, u.T())
	return poseFromDense(&out)
}

// InvertOrPseudo inverts p, falling back to the pseudo-inverse when p is exactly singular.
// The returned flag reports whether the fallback was taken.
func InvertOrPseudo(p Pose) (Pose, bool) {
	inv, err := Invert(p)
	if err == nil {
		return inv, false
	}
	return PseudoInverse(p), true
}

// Transform applies p to the point v.
func (p Pose) Transform(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: p.m[0]*v.X + p.m[1]*v.Y + p.m[2]*v.Z + p.m[3],
		Y: p.m[4]*v.X + p.m[5]*v.Y + p.m[6]*v.Z + p.m[7],
		Z: p.m[8]*v.X + p.m[9]*v.Y + p.m[10]*v.Z + p.m[11],
	}
}

// WorldToCamera maps a world frame pose into the camera frame given the world-to-camera transform.
func WorldToCamera(world2cam, poseWorld Pose) Pose {
	return Compose(world2cam, poseWorld)
}

// CameraToWorld maps a camera frame pose into the world frame given the camera-to-world transform.
func CameraToWorld(cam2world, poseCam Pose) Pose {
	return Compose(cam2world, poseCam)
}

// PoseAlmostEqual reports whether every element of a and b differs by at most epsilon.
func PoseAlmostEqual(a, b Pose, epsilon float64) bool {
	for i := range a.m {
		if math.Abs(a.m[i]-b.m[i]) > epsilon {
			return false
		}
	}
	return true
}
