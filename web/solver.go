package web

import (
	"context"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/pderoovere/dimo-labeling/spatialmath"
)

// A PoseSolver estimates the pose of a part from model points and the pixels they were clicked
// at. The returned pose maps model coordinates into the camera frame.
type PoseSolver interface {
	SolvePose(ctx context.Context, points []r3.Vector, pixels []r2.Point, intrinsics spatialmath.Intrinsics) (spatialmath.Pose, error)
}

// reprojectionError is the mean pixel distance between the clicked pixels and the points
// projected with pose.
func reprojectionError(pose spatialmath.Pose, points []r3.Vector, pixels []r2.Point, intrinsics spatialmath.Intrinsics) float64 {
	if len(points) == 0 {
		return 0
	}
	var total float64
	for i, pt := range points {
		total += intrinsics.PointToPixel(pose.Transform(pt)).Sub(pixels[i]).Norm()
	}
	return total / float64(len(points))
}

func parsePoseRequest(req poseRequest) ([]r3.Vector, []r2.Point, spatialmath.Intrinsics, error) {
	if len(req.Points) != len(req.Pixels) {
		return nil, nil, spatialmath.Intrinsics{}, newBadRequestError(
			"got %d points and %d pixels", len(req.Points), len(req.Pixels))
	}
	if len(req.Points) == 0 {
		return nil, nil, spatialmath.Intrinsics{}, newBadRequestError("no correspondences")
	}
	intrinsics, err := spatialmath.NewIntrinsicsFromFlat(req.CameraMatrix)
	if err != nil {
		return nil, nil, spatialmath.Intrinsics{}, newBadRequestError("cameraMatrix: %v", err)
	}
	points := make([]r3.Vector, 0, len(req.Points))
	pixels := make([]r2.Point, 0, len(req.Pixels))
	for i := range req.Points {
		pt, px := req.Points[i], req.Pixels[i]
		if len(pt) != 3 || len(px) != 2 {
			return nil, nil, spatialmath.Intrinsics{}, newBadRequestError("correspondence %d must be a 3D point and a 2D pixel", i)
		}
		points = append(points, r3.Vector{X: pt[0], Y: pt[1], Z: pt[2]})
		pixels = append(pixels, r2.Point{X: px[0], Y: px[1]})
	}
	return points, pixels, intrinsics, nil
}
