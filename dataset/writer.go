package dataset

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/pderoovere/dimo-labeling/logging"
	"github.com/pderoovere/dimo-labeling/utils"
)

// Writer materializes a dataset as a fresh directory tree.
type Writer struct {
	logger logging.Logger
}

// NewWriter returns a new Writer.
func NewWriter(logger logging.Logger) *Writer {
	return &Writer{logger: logger}
}

// Write replaces dest with ds. The models directory of origRoot is copied verbatim, and every
// scene is written with its annotation files and a copy of its images under rgb/.
// A dest holding origRoot or any image of ds is refused before anything is removed.
func (w *Writer) Write(ds *Dataset, origRoot, modelsDir, dest string) error {
	if err := checkDestination(ds, origRoot, dest); err != nil {
		return err
	}
	if err := os.RemoveAll(dest); err != nil {
		return errors.Wrapf(err, "failed to clear %s", dest)
	}
	if err := copyTree(filepath.Join(origRoot, modelsDir), filepath.Join(dest, modelsDir)); err != nil {
		return err
	}

	for _, stream := range ds.Streams {
		for _, scene := range stream.Scenes {
			dir := filepath.Join(dest, stream.Name, fmt.Sprintf("%06d", scene.ID))
			if err := w.writeScene(scene, dir); err != nil {
				return errors.Wrapf(err, "writing scene %d of %s", scene.ID, stream.Name)
			}
		}
		w.logger.Infow("wrote stream", "stream", stream.Name, "scenes", len(stream.Scenes), "images", stream.ImageCount())
	}
	return nil
}

func (w *Writer) writeScene(scene Scene, dir string) error {
	//nolint:gosec
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	cameras := newImageKeyed[cameraRecord]()
	gt := newImageKeyed[[]gtRecord]()
	for _, img := range scene.Images {
		cameras.Set(img.ID, newCameraRecord(img.Camera))
		records := make([]gtRecord, 0, len(img.Objects))
		for _, obj := range img.Objects {
			records = append(records, newGTRecord(obj.Part.ID, obj.Pose))
		}
		gt.Set(img.ID, records)

		target := filepath.Join(dir, "rgb", fmt.Sprintf("%06d", img.ID)+filepath.Ext(img.Path))
		if err := copyFile(img.Path, target); err != nil {
			return err
		}
	}
	if err := writeJSON(filepath.Join(dir, SceneCameraFile), cameras); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, SceneGTFile), gt); err != nil {
		return err
	}

	world := make([]worldRecord, 0, len(scene.PositionedParts))
	for _, pp := range scene.PositionedParts {
		world = append(world, newWorldRecord(pp.Part.ID, pp.Pose))
	}
	return writeJSON(filepath.Join(dir, SceneGTWorldFile), world)
}

// checkDestination refuses destinations that would delete a source while being cleared.
func checkDestination(ds *Dataset, origRoot, dest string) error {
	inside, err := utils.IsInside(dest, origRoot)
	if err != nil {
		return err
	}
	if inside {
		return errors.Errorf("destination %s contains the source dataset %s", dest, origRoot)
	}
	for _, stream := range ds.Streams {
		for _, scene := range stream.Scenes {
			for _, img := range scene.Images {
				inside, err := utils.IsInside(dest, img.Path)
				if err != nil {
					return err
				}
				if inside {
					return errors.Errorf("destination %s contains source image %s", dest, img.Path)
				}
			}
		}
	}
	return nil
}

// copyFile copies src to dst, creating the parent of dst and overwriting an existing file.
func copyFile(src, dst string) (err error) {
	//nolint:gosec
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return NewMissingAssetError(src)
		}
		return err
	}
	defer in.Close() //nolint:errcheck

	//nolint:gosec
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", filepath.Dir(dst))
	}
	//nolint:gosec
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}

// copyTree copies the directory src to dst recursively.
func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return NewMissingAssetError(src)
		}
		return err
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", src)
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			//nolint:gosec
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}
