// Package dataset loads, saves, merges and writes 6-DoF pose annotation datasets.
//
// On disk a dataset follows the BOP layout: a models directory with models_info.json and one
// obj_XXXXXX.ply per part, and one directory per camera stream holding a directory per scene with
// scene_camera.json, scene_gt.json and optionally scene_gt_world.json. In memory every scene keeps
// its positioned parts in the world frame; per image annotations stay in the camera frame.
package dataset

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"

	"github.com/pderoovere/dimo-labeling/spatialmath"
)

// Part is an object with a CAD model. Parts are created once per dataset and never modified.
type Part struct {
	ID          int
	CADPath     string
	TexturePath string
}

// Camera holds the calibration of the camera that took an image.
type Camera struct {
	Intrinsics spatialmath.Intrinsics
	// Pose is the extrinsic used to move annotations between the world and the image. Under the
	// bop convention it is camera-to-world.
	Pose spatialmath.Pose
	// WorldToCamera is the world-to-camera transform as stored on disk.
	WorldToCamera spatialmath.Pose
}

// PositionedPart places a part with a pose. Scene level parts are in the world frame, image
// level parts in the camera frame of their image.
type PositionedPart struct {
	Part Part
	Pose spatialmath.Pose
}

// Image is a single capture of a scene.
type Image struct {
	ID     int
	Path   string
	Width  int
	Height int
	Camera Camera
	// Objects are the camera frame annotations read from scene_gt.json.
	Objects []PositionedPart
}

// Scene is a set of images of the same static arrangement of parts.
type Scene struct {
	ID int
	// Name is the directory the scene was loaded from, empty for scenes that were never on disk.
	Name            string
	Images          []Image
	PositionedParts []PositionedPart
}

// Stream groups the scenes captured by one camera or source.
type Stream struct {
	Name   string
	Scenes []Scene
}

// Dataset is a set of parts together with the scenes annotating them.
type Dataset struct {
	Parts   []Part
	Streams []Stream
}

// DirName is the directory name of the scene inside its stream.
func (s Scene) DirName() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("%06d", s.ID)
}

// MaxImageID returns the largest image id of the scene, or -1 when it has no images.
func (s Scene) MaxImageID() int {
	if len(s.Images) == 0 {
		return -1
	}
	return lo.MaxBy(s.Images, func(a, b Image) bool { return a.ID > b.ID }).ID
}

// Clone returns a deep copy of the image.
func (img Image) Clone() Image {
	img.Objects = clonePositionedParts(img.Objects)
	return img
}

// Clone returns a deep copy of the scene.
func (s Scene) Clone() Scene {
	images := make([]Image, len(s.Images))
	for i, img := range s.Images {
		images[i] = img.Clone()
	}
	s.Images = images
	s.PositionedParts = clonePositionedParts(s.PositionedParts)
	return s
}

// Clone returns a deep copy of the stream.
func (s Stream) Clone() Stream {
	scenes := make([]Scene, len(s.Scenes))
	for i, scene := range s.Scenes {
		scenes[i] = scene.Clone()
	}
	s.Scenes = scenes
	return s
}

// MaxSceneID returns the largest scene id of the stream, or -1 when it has no scenes.
func (s Stream) MaxSceneID() int {
	if len(s.Scenes) == 0 {
		return -1
	}
	return lo.MaxBy(s.Scenes, func(a, b Scene) bool { return a.ID > b.ID }).ID
}

// ImageCount returns the number of images over all scenes of the stream.
func (s Stream) ImageCount() int {
	return lo.SumBy(s.Scenes, func(scene Scene) int { return len(scene.Images) })
}

// Clone returns a deep copy of the dataset.
func (ds *Dataset) Clone() *Dataset {
	streams := make([]Stream, len(ds.Streams))
	for i, stream := range ds.Streams {
		streams[i] = stream.Clone()
	}
	return &Dataset{Parts: append([]Part(nil), ds.Parts...), Streams: streams}
}

// Part returns the part with the given id.
func (ds *Dataset) Part(id int) (Part, bool) {
	return lo.Find(ds.Parts, func(p Part) bool { return p.ID == id })
}

// Stream returns the stream with the given name.
func (ds *Dataset) Stream(name string) (*Stream, bool) {
	for i := range ds.Streams {
		if ds.Streams[i].Name == name {
			return &ds.Streams[i], true
		}
	}
	return nil, false
}

// String prints out a table of each stream, with columns of name, scene count, image count and
// the number of parts positioned in the world.
func (ds *Dataset) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Stream", "Scenes", "Images", "Positioned parts"})
	for _, stream := range ds.Streams {
		positioned := lo.SumBy(stream.Scenes, func(scene Scene) int { return len(scene.PositionedParts) })
		t.AppendRow(table.Row{stream.Name, len(stream.Scenes), stream.ImageCount(), positioned})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d parts", len(ds.Parts))})
	return t.Render()
}

func clonePositionedParts(in []PositionedPart) []PositionedPart {
	if in == nil {
		return nil
	}
	return append([]PositionedPart(nil), in...)
}

// partIndex resolves part ids while loading annotations.
type partIndex map[int]Part

func newPartIndex(parts []Part) partIndex {
	return lo.SliceToMap(parts, func(p Part) (int, Part) { return p.ID, p })
}

func sortParts(parts []Part) {
	sort.Slice(parts, func(i, j int) bool { return parts[i].ID < parts[j].ID })
}
