// Package testutils builds on-disk datasets for tests.
package testutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"go.viam.com/test"
)

// Identity rotation and zero translation in the on-disk layout.
var (
	IdentityR = []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	ZeroT     = []float64{0, 0, 0}
)

// DefaultK is a row-major camera matrix used when a fixture image does not set one.
var DefaultK = []float64{600, 0, 320, 0, 610, 240, 0, 0, 1}

// Object is one annotated part, as written to scene_gt.json or scene_gt_world.json.
type Object struct {
	ObjID int
	R     []float64
	T     []float64
}

// Camera is one scene_camera.json entry. Nil slices are left out of the file.
type Camera struct {
	K    []float64 `json:"cam_K,omitempty"`
	RW2C []float64 `json:"cam_R_w2c,omitempty"`
	TW2C []float64 `json:"cam_t_w2c,omitempty"`
	RM2C []float64 `json:"cam_R_m2c,omitempty"`
	TM2C []float64 `json:"cam_t_m2c,omitempty"`
}

// Image describes one image of a fixture scene.
type Image struct {
	ID            int
	Width, Height int
	// Ext defaults to .png.
	Ext     string
	Camera  Camera
	Objects []Object
	// NoFile leaves the image out of the image folder while keeping its annotations.
	NoFile bool
	// NoCamera leaves the image out of scene_camera.json.
	NoCamera bool
}

// Scene describes one scene directory.
type Scene struct {
	Dir string
	// ImageFolder defaults to rgb.
	ImageFolder string
	Images      []Image
	// World is written to scene_gt_world.json when not nil.
	World []Object
	// WorldCameraKeys writes the world poses under the cam_R_m2c/cam_t_m2c keys.
	WorldCameraKeys bool
}

// Dataset is a dataset on disk below Root.
type Dataset struct {
	tb        testing.TB
	Root      string
	ModelsDir string
}

// NewDataset creates a dataset in a temporary directory with a models directory holding a CAD
// file and a texture for each of the given parts.
func NewDataset(tb testing.TB, partIDs ...int) *Dataset {
	tb.Helper()
	ds := &Dataset{tb: tb, Root: tb.TempDir(), ModelsDir: "models"}
	info := map[string]interface{}{}
	for _, id := range partIDs {
		info[strconv.Itoa(id)] = map[string]float64{"diameter": 100}
		ds.WriteFile(filepath.Join(ds.ModelsDir, fmt.Sprintf("obj_%06d.ply", id)), []byte("ply\nformat ascii 1.0\nend_header\n"))
		ds.WriteFile(filepath.Join(ds.ModelsDir, fmt.Sprintf("obj_%06d.png", id)), encodeImage(tb, 4, 4, ".png"))
	}
	ds.WriteJSON(filepath.Join(ds.ModelsDir, "models_info.json"), info)
	return ds
}

// Path joins elem to the dataset root.
func (ds *Dataset) Path(elem ...string) string {
	return filepath.Join(append([]string{ds.Root}, elem...)...)
}

// WriteFile writes data to a path relative to the root, creating parent directories.
func (ds *Dataset) WriteFile(rel string, data []byte) {
	ds.tb.Helper()
	path := ds.Path(rel)
	test.That(ds.tb, os.MkdirAll(filepath.Dir(path), 0o755), test.ShouldBeNil)
	test.That(ds.tb, os.WriteFile(path, data, 0o644), test.ShouldBeNil)
}

// WriteJSON writes the JSON encoding of v to a path relative to the root.
func (ds *Dataset) WriteJSON(rel string, v interface{}) {
	ds.tb.Helper()
	data, err := json.Marshal(v)
	test.That(ds.tb, err, test.ShouldBeNil)
	ds.WriteFile(rel, data)
}

// ReadJSON decodes a file relative to the root into v.
func (ds *Dataset) ReadJSON(rel string, v interface{}) {
	ds.tb.Helper()
	//nolint:gosec
	data, err := os.ReadFile(ds.Path(rel))
	test.That(ds.tb, err, test.ShouldBeNil)
	test.That(ds.tb, json.Unmarshal(data, v), test.ShouldBeNil)
}

// AddScene writes scene into the given stream directory and returns the scene directory.
func (ds *Dataset) AddScene(stream string, scene Scene) string {
	ds.tb.Helper()
	dir := filepath.Join(stream, scene.Dir)
	folder := scene.ImageFolder
	if folder == "" {
		folder = "rgb"
	}

	cameras := map[string]Camera{}
	gt := map[string][]map[string]interface{}{}
	for _, img := range scene.Images {
		key := strconv.Itoa(img.ID)
		if !img.NoCamera {
			cam := img.Camera
			if cam.K == nil {
				cam.K = DefaultK
			}
			cameras[key] = cam
		}
		objects := make([]map[string]interface{}, 0, len(img.Objects))
		for _, obj := range img.Objects {
			objects = append(objects, objectJSON(obj, "cam_R_m2c", "cam_t_m2c"))
		}
		gt[key] = objects

		if img.NoFile {
			continue
		}
		ext := img.Ext
		if ext == "" {
			ext = ".png"
		}
		width, height := img.Width, img.Height
		if width == 0 || height == 0 {
			width, height = 8, 6
		}
		ds.WriteFile(filepath.Join(dir, folder, fmt.Sprintf("%06d%s", img.ID, ext)), encodeImage(ds.tb, width, height, ext))
	}
	ds.WriteJSON(filepath.Join(dir, "scene_camera.json"), cameras)
	ds.WriteJSON(filepath.Join(dir, "scene_gt.json"), gt)

	if scene.World != nil {
		rKey, tKey := "cam_R_m2w", "cam_t_m2w"
		if scene.WorldCameraKeys {
			rKey, tKey = "cam_R_m2c", "cam_t_m2c"
		}
		world := make([]map[string]interface{}, 0, len(scene.World))
		for _, obj := range scene.World {
			world = append(world, objectJSON(obj, rKey, tKey))
		}
		ds.WriteJSON(filepath.Join(dir, "scene_gt_world.json"), world)
	}
	return ds.Path(dir)
}

func objectJSON(obj Object, rKey, tKey string) map[string]interface{} {
	return map[string]interface{}{"obj_id": obj.ObjID, rKey: obj.R, tKey: obj.T}
}

func encodeImage(tb testing.TB, width, height int, ext string) []byte {
	tb.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	var err error
	switch ext {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(&buf, img, nil)
	default:
		err = png.Encode(&buf, img)
	}
	test.That(tb, err, test.ShouldBeNil)
	return buf.Bytes()
}
