package dataset

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/pderoovere/dimo-labeling/config"
	"github.com/pderoovere/dimo-labeling/logging"
	"github.com/pderoovere/dimo-labeling/spatialmath"
	"github.com/pderoovere/dimo-labeling/utils"
)

// Saver writes edited scenes back to the annotation files of the dataset.
type Saver struct {
	cfg    config.Config
	logger logging.Logger
}

// NewSaver returns a saver for the dataset described by cfg.
func NewSaver(cfg config.Config, logger logging.Logger) (*Saver, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Saver{cfg: cfg, logger: logger}, nil
}

// Save rewrites scene_gt.json and scene_gt_world.json of every given scene from its world frame
// positioned parts. Scenes are written one after the other; the first failure stops the save.
func (s *Saver) Save(scenes []Scene) error {
	for _, scene := range scenes {
		if err := s.saveScene(scene); err != nil {
			return err
		}
	}
	s.logger.Infow("saved", "path", s.cfg.ImagesPath(), "scenes", len(scenes))
	return nil
}

func (s *Saver) saveScene(scene Scene) error {
	dir, err := utils.SafeJoinDir(s.cfg.ImagesPath(), scene.DirName())
	if err != nil {
		return NewInconsistentAnnotationError(scene.DirName(), "scene directory is outside %s", s.cfg.ImagesPath())
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewMissingAssetError(dir)
	}

	gt := newImageKeyed[[]gtRecord]()
	for _, img := range scene.Images {
		gt.Set(img.ID, cameraFrameRecords(scene.DirName(), img, scene.PositionedParts, s.logger))
	}
	if err := writeJSON(filepath.Join(dir, SceneGTFile), gt); err != nil {
		return errors.Wrapf(err, "saving scene %s", scene.DirName())
	}

	world := make([]worldRecord, 0, len(scene.PositionedParts))
	for _, pp := range scene.PositionedParts {
		world = append(world, newWorldRecord(pp.Part.ID, pp.Pose))
	}
	if err := writeJSON(filepath.Join(dir, SceneGTWorldFile), world); err != nil {
		return errors.Wrapf(err, "saving scene %s", scene.DirName())
	}
	s.logger.Debugw("saved scene", "scene", scene.DirName(), "images", len(scene.Images), "parts", len(world))
	return nil
}

// cameraFrameRecords expresses world frame parts in the camera frame of img. A camera pose that
// cannot be inverted falls back to its pseudo-inverse and is reported at warn level.
func cameraFrameRecords(scene string, img Image, parts []PositionedPart, logger logging.Logger) []gtRecord {
	world2cam, degraded := spatialmath.InvertOrPseudo(img.Camera.Pose)
	if degraded {
		logger.Warnw("degenerate transform", "error", &DegenerateTransformError{Scene: scene, ImageID: img.ID})
	}
	records := make([]gtRecord, 0, len(parts))
	for _, pp := range parts {
		records = append(records, newGTRecord(pp.Part.ID, spatialmath.WorldToCamera(world2cam, pp.Pose)))
	}
	return records
}
