package web

import (
	"encoding/json"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/pderoovere/dimo-labeling/dataset"
	"github.com/pderoovere/dimo-labeling/spatialmath"
)

// CDNPrefix is the URL prefix under which dataset files are served to the annotation client.
const CDNPrefix = "/api/cdn/"

type wirePart struct {
	ID          int    `json:"id"`
	CADPath     string `json:"cadPath"`
	TexturePath string `json:"texturePath"`
}

type wireImage struct {
	ID     wireID `json:"id"`
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	// CameraMatrix is the 3x3 intrinsic matrix, column-major.
	CameraMatrix []float64 `json:"cameraMatrix"`
	// CameraPose is the 4x4 extrinsic, column-major.
	CameraPose []float64 `json:"cameraPose"`
}

type wirePositionedPart struct {
	Part wirePart  `json:"part"`
	Pose []float64 `json:"pose"`
}

type wireScene struct {
	// ID is the scene directory name.
	ID              string               `json:"id"`
	Images          []wireImage          `json:"images"`
	PositionedParts []wirePositionedPart `json:"positionedParts"`
}

type wireDataset struct {
	Scenes []wireScene `json:"scenes"`
	Parts  []wirePart  `json:"parts"`
}

type poseRequest struct {
	Points       [][]float64 `json:"points"`
	Pixels       [][]float64 `json:"pixels"`
	CameraMatrix []float64   `json:"cameraMatrix"`
}

// wireID is an image id sent either as a number or as the string key of scene_gt.json.
type wireID int

func (id *wireID) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*id = wireID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Errorf("image id must be a number or a numeric string, got %s", data)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return errors.Wrapf(err, "image id %q", s)
	}
	*id = wireID(n)
	return nil
}

// assetURL turns a file below root into the URL the client fetches it from.
func assetURL(root, file string) string {
	if file == "" {
		return ""
	}
	rel, err := filepath.Rel(root, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	return path.Join(CDNPrefix, filepath.ToSlash(rel))
}

func toWirePart(root string, p dataset.Part) wirePart {
	return wirePart{ID: p.ID, CADPath: assetURL(root, p.CADPath), TexturePath: assetURL(root, p.TexturePath)}
}

func toWireDataset(root string, ds *dataset.Dataset) wireDataset {
	out := wireDataset{
		Scenes: []wireScene{},
		Parts:  lo.Map(ds.Parts, func(p dataset.Part, _ int) wirePart { return toWirePart(root, p) }),
	}
	for _, stream := range ds.Streams {
		for _, scene := range stream.Scenes {
			ws := wireScene{
				ID:              scene.DirName(),
				Images:          make([]wireImage, 0, len(scene.Images)),
				PositionedParts: make([]wirePositionedPart, 0, len(scene.PositionedParts)),
			}
			for _, img := range scene.Images {
				ws.Images = append(ws.Images, wireImage{
					ID:           wireID(img.ID),
					Path:         assetURL(root, img.Path),
					Width:        img.Width,
					Height:       img.Height,
					CameraMatrix: img.Camera.Intrinsics.Flat(),
					CameraPose:   img.Camera.Pose.Flat(),
				})
			}
			for _, pp := range scene.PositionedParts {
				ws.PositionedParts = append(ws.PositionedParts, wirePositionedPart{
					Part: toWirePart(root, pp.Part),
					Pose: pp.Pose.Flat(),
				})
			}
			out.Scenes = append(out.Scenes, ws)
		}
	}
	return out
}

// fromWireScene rebuilds the parts of a scene the saver needs. Part ids are resolved against
// the parts of the dataset.
func fromWireScene(ws wireScene, parts []dataset.Part) (dataset.Scene, error) {
	if ws.ID == "" || ws.ID != filepath.Base(ws.ID) || strings.HasPrefix(ws.ID, ".") {
		return dataset.Scene{}, newBadRequestError("invalid scene id %q", ws.ID)
	}
	scene := dataset.Scene{Name: ws.ID}
	if id, err := strconv.Atoi(ws.ID); err == nil {
		scene.ID = id
	}

	for _, wi := range ws.Images {
		pose, err := spatialmath.NewPoseFromFlat(wi.CameraPose)
		if err != nil {
			return dataset.Scene{}, newBadRequestError("scene %s image %d cameraPose: %v", ws.ID, wi.ID, err)
		}
		scene.Images = append(scene.Images, dataset.Image{
			ID:     int(wi.ID),
			Width:  wi.Width,
			Height: wi.Height,
			Camera: dataset.Camera{Pose: pose},
		})
	}

	for _, wp := range ws.PositionedParts {
		part, ok := lo.Find(parts, func(p dataset.Part) bool { return p.ID == wp.Part.ID })
		if !ok {
			return dataset.Scene{}, dataset.NewInconsistentAnnotationError(ws.ID, "unknown part %d", wp.Part.ID)
		}
		pose, err := spatialmath.NewPoseFromFlat(wp.Pose)
		if err != nil {
			return dataset.Scene{}, newBadRequestError("scene %s part %d pose: %v", ws.ID, wp.Part.ID, err)
		}
		scene.PositionedParts = append(scene.PositionedParts, dataset.PositionedPart{Part: part, Pose: pose})
	}
	return scene, nil
}
