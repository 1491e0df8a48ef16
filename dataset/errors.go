package dataset

import (
	"fmt"
)

// MissingAssetError is returned when a file the dataset needs does not exist.
type MissingAssetError struct {
	Path string
}

func (e *MissingAssetError) Error() string {
	return fmt.Sprintf("missing asset %q", e.Path)
}

// NewMissingAssetError returns a MissingAssetError for the given path.
func NewMissingAssetError(path string) error {
	return &MissingAssetError{Path: path}
}

// InconsistentAnnotationError is returned when the annotation files of a scene disagree with each
// other or with the parts of the dataset.
type InconsistentAnnotationError struct {
	Scene  string
	Reason string
}

func (e *InconsistentAnnotationError) Error() string {
	if e.Scene == "" {
		return "inconsistent annotation: " + e.Reason
	}
	return fmt.Sprintf("inconsistent annotation in scene %q: %s", e.Scene, e.Reason)
}

// NewInconsistentAnnotationError returns an InconsistentAnnotationError for a scene.
func NewInconsistentAnnotationError(scene, format string, args ...interface{}) error {
	return &InconsistentAnnotationError{Scene: scene, Reason: fmt.Sprintf(format, args...)}
}

// DegenerateTransformError describes an extrinsic that could only be inverted with the
// pseudo-inverse. It does not stop a load or save; it is logged at warn level.
type DegenerateTransformError struct {
	Scene   string
	ImageID int
}

func (e *DegenerateTransformError) Error() string {
	return fmt.Sprintf("camera extrinsic of image %d in scene %q is not invertible, used pseudo-inverse", e.ImageID, e.Scene)
}
