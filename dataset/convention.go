package dataset

import (
	"github.com/pkg/errors"

	"github.com/pderoovere/dimo-labeling/config"
	"github.com/pderoovere/dimo-labeling/spatialmath"
)

// ReferenceImageIndex is the image whose camera frame defines the world frame of a scene that has
// no scene_gt_world.json.
const ReferenceImageIndex = 0

// ImageFolderCandidates are the image folders of a scene, in order of preference. The first one
// that exists is used for every image of the scene.
var ImageFolderCandidates = []string{"rgb", "gray", "color"}

// ImageExtensions are tried in order for each image file.
var ImageExtensions = []string{".png", ".jpg"}

// extrinsicPolicy is how one convention turns a scene_camera.json entry into a Camera.
type extrinsicPolicy struct {
	convention config.Convention
	// rotationKey and translationKey name the fields holding the in-memory extrinsic.
	rotationKey, translationKey string
	fields                      func(cameraRecord) (rotation, translation []float64)
	// invert is set when the stored transform is world-to-camera and must be inverted.
	invert bool
}

var extrinsicPolicies = map[config.Convention]extrinsicPolicy{
	config.ConventionBOP: {
		convention:     config.ConventionBOP,
		rotationKey:    "cam_R_w2c",
		translationKey: "cam_t_w2c",
		fields:         func(r cameraRecord) ([]float64, []float64) { return r.CamRW2C, r.CamTW2C },
		invert:         true,
	},
	config.ConventionDIMO: {
		convention:     config.ConventionDIMO,
		rotationKey:    "cam_R_m2c",
		translationKey: "cam_t_m2c",
		fields:         func(r cameraRecord) ([]float64, []float64) { return r.CamRM2C, r.CamTM2C },
	},
}

func policyFor(c config.Convention) (extrinsicPolicy, error) {
	policy, ok := extrinsicPolicies[c]
	if !ok {
		return extrinsicPolicy{}, errors.Errorf("no extrinsic policy for convention %q", c)
	}
	return policy, nil
}

// camera builds the Camera of an image. degraded reports that the extrinsic had to be inverted
// with the pseudo-inverse.
func (p extrinsicPolicy) camera(scene string, imageID int, rec cameraRecord) (cam Camera, degraded bool, err error) {
	cam.Intrinsics, err = spatialmath.NewIntrinsicsFromRowMajor(rec.CamK)
	if err != nil {
		return Camera{}, false, NewInconsistentAnnotationError(scene, "cam_K of image %d: %v", imageID, err)
	}

	rotation, translation := p.fields(rec)
	if rotation == nil || translation == nil {
		return Camera{}, false, NewInconsistentAnnotationError(scene,
			"image %d has no %s/%s in %s", imageID, p.rotationKey, p.translationKey, SceneCameraFile)
	}
	stored, err := spatialmath.NewPoseFromRt(rotation, translation)
	if err != nil {
		return Camera{}, false, NewInconsistentAnnotationError(scene, "%s/%s of image %d: %v",
			p.rotationKey, p.translationKey, imageID, err)
	}

	if p.invert {
		cam.WorldToCamera = stored
		cam.Pose, degraded = spatialmath.InvertOrPseudo(stored)
		return cam, degraded, nil
	}

	cam.Pose = stored
	if rec.CamRW2C != nil && rec.CamTW2C != nil {
		cam.WorldToCamera, err = spatialmath.NewPoseFromRt(rec.CamRW2C, rec.CamTW2C)
		if err != nil {
			return Camera{}, false, NewInconsistentAnnotationError(scene, "cam_R_w2c/cam_t_w2c of image %d: %v", imageID, err)
		}
		return cam, false, nil
	}
	cam.WorldToCamera, degraded = spatialmath.InvertOrPseudo(stored)
	return cam, degraded, nil
}
