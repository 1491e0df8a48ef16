package dataset

import (
	"encoding/json"
	"fmt"
	"image"
	// decoders for image.DecodeConfig.
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/pderoovere/dimo-labeling/config"
	"github.com/pderoovere/dimo-labeling/logging"
	"github.com/pderoovere/dimo-labeling/spatialmath"
)

// Loader reads a dataset from disk into memory.
type Loader struct {
	cfg    config.Config
	policy extrinsicPolicy
	logger logging.Logger
}

// NewLoader returns a loader for the dataset described by cfg.
func NewLoader(cfg config.Config, logger logging.Logger) (*Loader, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := policyFor(cfg.Convention)
	if err != nil {
		return nil, err
	}
	return &Loader{cfg: cfg, policy: policy, logger: logger}, nil
}

// Load reads the parts and the scenes of the configured images directory.
func (l *Loader) Load() (*Dataset, error) {
	return l.LoadStreams(l.cfg.ImagesDir)
}

// LoadStreams reads the parts and the scenes of each named stream directory.
func (l *Loader) LoadStreams(names ...string) (*Dataset, error) {
	parts, err := l.LoadParts()
	if err != nil {
		return nil, err
	}
	index := newPartIndex(parts)

	ds := &Dataset{Parts: parts}
	for _, name := range names {
		stream, err := l.loadStream(name, index)
		if err != nil {
			return nil, err
		}
		ds.Streams = append(ds.Streams, stream)
	}
	return ds, nil
}

// LoadParts reads the parts listed in models_info.json, sorted by id.
func (l *Loader) LoadParts() ([]Part, error) {
	modelsPath := l.cfg.ModelsPath()
	info := map[string]json.RawMessage{}
	if err := readJSON(filepath.Join(modelsPath, ModelsInfoFile), &info); err != nil {
		return nil, err
	}

	parts := make([]Part, 0, len(info))
	for key := range info {
		id, err := strconv.Atoi(key)
		if err != nil || id <= 0 {
			return nil, NewInconsistentAnnotationError("", "%s has invalid part id %q", ModelsInfoFile, key)
		}
		part, err := loadPart(modelsPath, id)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	sortParts(parts)
	l.logger.Debugw("loaded parts", "count", len(parts), "path", modelsPath)
	return parts, nil
}

func loadPart(modelsPath string, id int) (Part, error) {
	part := Part{ID: id, CADPath: filepath.Join(modelsPath, fmt.Sprintf("obj_%06d.ply", id))}
	if !fileExists(part.CADPath) {
		return Part{}, NewMissingAssetError(part.CADPath)
	}
	texturePath := filepath.Join(modelsPath, fmt.Sprintf("obj_%06d.png", id))
	if fileExists(texturePath) {
		part.TexturePath = texturePath
	}
	return part, nil
}

func (l *Loader) loadStream(name string, parts partIndex) (Stream, error) {
	streamPath := filepath.Join(l.cfg.Root, name)
	entries, err := os.ReadDir(streamPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Stream{}, NewMissingAssetError(streamPath)
		}
		return Stream{}, errors.Wrapf(err, "failed to list scenes in %s", streamPath)
	}

	// os.ReadDir sorts by file name, which is the scene order.
	stream := Stream{Name: name}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") || !entry.IsDir() {
			continue
		}
		scene, err := l.loadScene(filepath.Join(streamPath, entry.Name()), parts)
		if err != nil {
			return Stream{}, err
		}
		stream.Scenes = append(stream.Scenes, scene)
	}
	l.logger.Infow("loaded stream", "stream", name, "scenes", len(stream.Scenes), "images", stream.ImageCount())
	return stream, nil
}

// sceneReader holds what is resolved once per scene directory.
type sceneReader struct {
	name     string
	dir      string
	imageDir string
	policy   extrinsicPolicy
	parts    partIndex
	logger   logging.Logger
}

func (l *Loader) loadScene(dir string, parts partIndex) (Scene, error) {
	name := filepath.Base(dir)
	id, err := strconv.Atoi(name)
	if err != nil {
		return Scene{}, NewInconsistentAnnotationError(name, "scene directory name is not a number")
	}
	imageDir, err := resolveImageFolder(dir)
	if err != nil {
		return Scene{}, err
	}
	r := &sceneReader{
		name:     name,
		dir:      dir,
		imageDir: imageDir,
		policy:   l.policy,
		parts:    parts,
		logger:   l.logger,
	}

	images, err := r.readImages()
	if err != nil {
		return Scene{}, err
	}
	positioned, err := r.readPositionedParts(images)
	if err != nil {
		return Scene{}, err
	}
	return Scene{ID: id, Name: name, Images: images, PositionedParts: positioned}, nil
}

// resolveImageFolder returns the first of ImageFolderCandidates present in the scene directory.
func resolveImageFolder(sceneDir string) (string, error) {
	for _, candidate := range ImageFolderCandidates {
		path := filepath.Join(sceneDir, candidate)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path, nil
		}
	}
	return "", NewMissingAssetError(filepath.Join(sceneDir, "{"+strings.Join(ImageFolderCandidates, ",")+"}"))
}

func (r *sceneReader) readImages() ([]Image, error) {
	cameras, err := readImageKeyed[cameraRecord](filepath.Join(r.dir, SceneCameraFile))
	if err != nil {
		return nil, err
	}
	gts, err := readImageKeyed[[]gtRecord](filepath.Join(r.dir, SceneGTFile))
	if err != nil {
		return nil, err
	}

	cameraIDs := sortedKeys(cameras)
	gtIDs := sortedKeys(gts)
	if missing, extra := lo.Difference(gtIDs, cameraIDs); len(missing) > 0 || len(extra) > 0 {
		return nil, NewInconsistentAnnotationError(r.name,
			"%s and %s list different images: only in %s %v, only in %s %v",
			SceneGTFile, SceneCameraFile, SceneGTFile, missing, SceneCameraFile, extra)
	}

	images := make([]Image, 0, len(gtIDs))
	for _, id := range gtIDs {
		img, err := r.readImage(id, cameras[id], gts[id])
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

func (r *sceneReader) readImage(id int, camRec cameraRecord, gt []gtRecord) (Image, error) {
	path, err := r.imagePath(id)
	if err != nil {
		return Image{}, err
	}
	width, height, err := imageSize(path)
	if err != nil {
		return Image{}, err
	}
	cam, degraded, err := r.policy.camera(r.name, id, camRec)
	if err != nil {
		return Image{}, err
	}
	if degraded {
		r.logger.Warnw("degenerate transform", "error", &DegenerateTransformError{Scene: r.name, ImageID: id})
	}

	objects := make([]PositionedPart, 0, len(gt))
	for _, rec := range gt {
		pp, err := r.positionedPart(int(rec.ObjID), rec.CamRM2C, rec.CamTM2C)
		if err != nil {
			return Image{}, err
		}
		objects = append(objects, pp)
	}
	return Image{ID: id, Path: path, Width: width, Height: height, Camera: cam, Objects: objects}, nil
}

func (r *sceneReader) imagePath(id int) (string, error) {
	base := filepath.Join(r.imageDir, fmt.Sprintf("%06d", id))
	for _, ext := range ImageExtensions {
		if fileExists(base + ext) {
			return base + ext, nil
		}
	}
	return "", NewMissingAssetError(base + ImageExtensions[0])
}

// readPositionedParts returns the world frame parts of the scene, from scene_gt_world.json when
// present and otherwise from the annotations of the reference image.
func (r *sceneReader) readPositionedParts(images []Image) ([]PositionedPart, error) {
	worldPath := filepath.Join(r.dir, SceneGTWorldFile)
	if fileExists(worldPath) {
		r.logger.Infow("loading parts w.r.t world", "scene", r.name)
		var records []worldRecord
		if err := readJSON(worldPath, &records); err != nil {
			return nil, err
		}
		parts := make([]PositionedPart, 0, len(records))
		for _, rec := range records {
			pose, err := rec.pose()
			if err != nil {
				return nil, NewInconsistentAnnotationError(r.name, "%s: %v", SceneGTWorldFile, err)
			}
			part, ok := r.parts[int(rec.ObjID)]
			if !ok {
				return nil, NewInconsistentAnnotationError(r.name, "%s references unknown part %d", SceneGTWorldFile, rec.ObjID)
			}
			parts = append(parts, PositionedPart{Part: part, Pose: pose})
		}
		return parts, nil
	}

	if len(images) <= ReferenceImageIndex {
		r.logger.Debugw("scene has no reference image, no parts placed", "scene", r.name)
		return nil, nil
	}
	r.logger.Infow("loading parts w.r.t camera", "scene", r.name)
	reference := images[ReferenceImageIndex]
	parts := make([]PositionedPart, 0, len(reference.Objects))
	for _, obj := range reference.Objects {
		parts = append(parts, PositionedPart{
			Part: obj.Part,
			Pose: spatialmath.CameraToWorld(reference.Camera.Pose, obj.Pose),
		})
	}
	return parts, nil
}

func (r *sceneReader) positionedPart(partID int, rotation, translation []float64) (PositionedPart, error) {
	part, ok := r.parts[partID]
	if !ok {
		return PositionedPart{}, NewInconsistentAnnotationError(r.name, "%s references unknown part %d", SceneGTFile, partID)
	}
	pose, err := spatialmath.NewPoseFromRt(rotation, translation)
	if err != nil {
		return PositionedPart{}, NewInconsistentAnnotationError(r.name, "%s part %d: %v", SceneGTFile, partID, err)
	}
	return PositionedPart{Part: part, Pose: pose}, nil
}

// imageSize reads the dimensions from the image header without decoding pixels.
func imageSize(path string) (int, int, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "failed to open image %s", path)
	}
	defer f.Close() //nolint:errcheck
	conf, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "failed to read image header of %s", path)
	}
	return conf.Width, conf.Height, nil
}

func sortedKeys[T any](m map[int]T) []int {
	keys := lo.Keys(m)
	sort.Ints(keys)
	return keys
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
