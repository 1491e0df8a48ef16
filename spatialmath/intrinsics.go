package spatialmath

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Intrinsics is a 3x3 pinhole camera matrix.
type Intrinsics struct {
	k [9]float64 // row-major
}

// NewIntrinsicsFromRowMajor builds a camera matrix from the 9 row-major values stored on disk.
func NewIntrinsicsFromRowMajor(values []float64) (Intrinsics, error) {
	if len(values) != 9 {
		return Intrinsics{}, errors.Errorf("camera matrix needs 9 values, got %d", len(values))
	}
	var in Intrinsics
	copy(in.k[:], values)
	return in, nil
}

// NewIntrinsicsFromFlat builds a camera matrix from 9 column-major values.
func NewIntrinsicsFromFlat(flat []float64) (Intrinsics, error) {
	if len(flat) != 9 {
		return Intrinsics{}, errors.Errorf("camera matrix needs 9 values, got %d", len(flat))
	}
	var in Intrinsics
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			in.k[row*3+col] = flat[col*3+row]
		}
	}
	return in, nil
}

// RowMajor returns the on-disk layout of the matrix.
func (in Intrinsics) RowMajor() []float64 {
	out := make([]float64, 9)
	copy(out, in.k[:])
	return out
}

// Flat returns the column-major layout of the matrix.
func (in Intrinsics) Flat() []float64 {
	out := make([]float64, 9)
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			out[col*3+row] = in.k[row*3+col]
		}
	}
	return out
}

// Fx is the horizontal focal length in pixels.
func (in Intrinsics) Fx() float64 { return in.k[0] }

// Fy is the vertical focal length in pixels.
func (in Intrinsics) Fy() float64 { return in.k[4] }

// Ppx is the x coordinate of the principal point.
func (in Intrinsics) Ppx() float64 { return in.k[2] }

// Ppy is the y coordinate of the principal point.
func (in Intrinsics) Ppy() float64 { return in.k[5] }

// PointToPixel projects a camera frame point onto the image plane. Points on the
// camera plane project to (-1, -1).
func (in Intrinsics) PointToPixel(pt r3.Vector) r2.Point {
	if pt.Z == 0 {
		return r2.Point{X: -1, Y: -1}
	}
	return r2.Point{
		X: in.k[0]*pt.X/pt.Z + in.k[1]*pt.Y/pt.Z + in.k[2],
		Y: in.k[4]*pt.Y/pt.Z + in.k[5],
	}
}
