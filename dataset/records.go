package dataset

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/pderoovere/dimo-labeling/spatialmath"
	"github.com/pderoovere/dimo-labeling/utils"
)

// File names inside a scene directory.
const (
	SceneCameraFile  = "scene_camera.json"
	SceneGTFile      = "scene_gt.json"
	SceneGTWorldFile = "scene_gt_world.json"
	ModelsInfoFile   = "models_info.json"
)

// objectID accepts both the integer and the string form of obj_id.
type objectID int

func (id *objectID) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*id = objectID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Errorf("obj_id must be a number or a numeric string, got %s", data)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return errors.Wrapf(err, "obj_id %q", s)
	}
	*id = objectID(n)
	return nil
}

// cameraRecord is one entry of scene_camera.json.
type cameraRecord struct {
	CamK    []float64 `json:"cam_K"`
	CamRW2C []float64 `json:"cam_R_w2c,omitempty"`
	CamTW2C []float64 `json:"cam_t_w2c,omitempty"`
	CamRM2C []float64 `json:"cam_R_m2c,omitempty"`
	CamTM2C []float64 `json:"cam_t_m2c,omitempty"`
}

// gtRecord is one object of scene_gt.json, in the camera frame.
type gtRecord struct {
	ObjID   objectID  `json:"obj_id"`
	CamRM2C []float64 `json:"cam_R_m2c"`
	CamTM2C []float64 `json:"cam_t_m2c"`
}

// worldRecord is one object of scene_gt_world.json. Files written by DIMO tooling use the
// camera frame key names for the world pose.
type worldRecord struct {
	ObjID   objectID  `json:"obj_id"`
	CamRM2W []float64 `json:"cam_R_m2w,omitempty"`
	CamTM2W []float64 `json:"cam_t_m2w,omitempty"`
	CamRM2C []float64 `json:"cam_R_m2c,omitempty"`
	CamTM2C []float64 `json:"cam_t_m2c,omitempty"`
}

func (r worldRecord) pose() (spatialmath.Pose, error) {
	if r.CamRM2W != nil || r.CamTM2W != nil {
		return spatialmath.NewPoseFromRt(r.CamRM2W, r.CamTM2W)
	}
	return spatialmath.NewPoseFromRt(r.CamRM2C, r.CamTM2C)
}

func newGTRecord(partID int, pose spatialmath.Pose) gtRecord {
	return gtRecord{ObjID: objectID(partID), CamRM2C: pose.Rotation(), CamTM2C: pose.TranslationSlice()}
}

func newWorldRecord(partID int, pose spatialmath.Pose) worldRecord {
	return worldRecord{ObjID: objectID(partID), CamRM2W: pose.Rotation(), CamTM2W: pose.TranslationSlice()}
}

func newCameraRecord(cam Camera) cameraRecord {
	return cameraRecord{
		CamK:    cam.Intrinsics.RowMajor(),
		CamRW2C: cam.WorldToCamera.Rotation(),
		CamTW2C: cam.WorldToCamera.TranslationSlice(),
	}
}

// imageKeyed is a JSON object keyed by image id that is written in ascending id order rather
// than the lexicographic order encoding/json uses for maps.
type imageKeyed[T any] struct {
	ids    []int
	values map[int]T
}

func newImageKeyed[T any]() *imageKeyed[T] {
	return &imageKeyed[T]{values: map[int]T{}}
}

func (m *imageKeyed[T]) Set(id int, v T) {
	if _, ok := m.values[id]; !ok {
		m.ids = append(m.ids, id)
	}
	m.values[id] = v
}

func (m *imageKeyed[T]) MarshalJSON() ([]byte, error) {
	ids := append([]int(nil), m.ids...)
	sort.Ints(ids)
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(id)))
		buf.WriteByte(':')
		value, err := json.Marshal(m.values[id])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// readImageKeyed reads a JSON object keyed by stringified image ids.
func readImageKeyed[T any](path string) (map[int]T, error) {
	raw := map[string]T{}
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}
	out := make(map[int]T, len(raw))
	for key, v := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, errors.Wrapf(err, "image id %q in %s", key, path)
		}
		if _, ok := out[id]; ok {
			return nil, NewInconsistentAnnotationError(filepath.Base(filepath.Dir(path)),
				"image id %d appears more than once in %s", id, filepath.Base(path))
		}
		out[id] = v
	}
	return out, nil
}

func readJSON(path string, v interface{}) error {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewMissingAssetError(path)
		}
		return errors.Wrapf(err, "failed to read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "failed to parse %s", path)
	}
	return nil
}

// writeJSON replaces path with the JSON encoding of v. The data goes to a temporary file in the
// same directory first so readers never observe a partially written file.
func writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	defer utils.RemoveFileNoError(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	//nolint:gosec
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "failed to write %s", path)
}
