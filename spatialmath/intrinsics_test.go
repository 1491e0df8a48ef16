package spatialmath

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestIntrinsicsLayouts(t *testing.T) {
	rowMajor := []float64{
		600, 0, 320,
		0, 610, 240,
		0, 0, 1,
	}
	k, err := NewIntrinsicsFromRowMajor(rowMajor)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, k.Flat(), test.ShouldResemble, []float64{600, 0, 0, 0, 610, 0, 320, 240, 1})
	test.That(t, k.RowMajor(), test.ShouldResemble, rowMajor)
	test.That(t, k.Fx(), test.ShouldEqual, 600.)
	test.That(t, k.Fy(), test.ShouldEqual, 610.)
	test.That(t, k.Ppx(), test.ShouldEqual, 320.)
	test.That(t, k.Ppy(), test.ShouldEqual, 240.)

	back, err := NewIntrinsicsFromFlat(k.Flat())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back, test.ShouldResemble, k)

	_, err = NewIntrinsicsFromRowMajor(rowMajor[:3])
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewIntrinsicsFromFlat(nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPointToPixel(t *testing.T) {
	k, err := NewIntrinsicsFromRowMajor([]float64{600, 0, 320, 0, 600, 240, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)

	px := k.PointToPixel(r3.Vector{X: 0.5, Y: -0.25, Z: 2})
	test.That(t, px.X, test.ShouldAlmostEqual, 470.)
	test.That(t, px.Y, test.ShouldAlmostEqual, 165.)

	px = k.PointToPixel(r3.Vector{X: 1, Y: 1})
	test.That(t, px.X, test.ShouldEqual, -1.)
	test.That(t, px.Y, test.ShouldEqual, -1.)
}
