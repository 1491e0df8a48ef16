package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/pderoovere/dimo-labeling/config"
	"github.com/pderoovere/dimo-labeling/logging"
	"github.com/pderoovere/dimo-labeling/testutils"
)

func TestWriteMergedDataset(t *testing.T) {
	fixture := testutils.NewDataset(t, 1, 2)
	fixture.AddScene(stream, testutils.Scene{
		Dir: "000000",
		Images: []testutils.Image{
			{
				ID:      0,
				Camera:  testutils.Camera{RW2C: rotZ30, TW2C: []float64{0, 0, 1}},
				Objects: []testutils.Object{{ObjID: 2, R: rotZ30, T: []float64{0, 1, 5}}},
			},
			{ID: 1, Ext: ".jpg", Camera: testutils.Camera{RW2C: testutils.IdentityR, TW2C: []float64{1, 0, 0}}},
		},
	})
	src := loadDataset(t, datasetConfig(fixture.Root, config.ConventionBOP), logging.NewTestLogger(t))
	merged, err := Merge([]*Dataset{src, src}, true)
	test.That(t, err, test.ShouldBeNil)

	dest := filepath.Join(t.TempDir(), "merged")
	test.That(t, os.MkdirAll(filepath.Join(dest, "stale"), 0o755), test.ShouldBeNil)

	writer := NewWriter(logging.NewTestLogger(t))
	test.That(t, writer.Write(merged, fixture.Root, "models", dest), test.ShouldBeNil)

	_, err = os.Stat(filepath.Join(dest, "stale"))
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
	for _, name := range []string{ModelsInfoFile, "obj_000001.ply", "obj_000002.png"} {
		_, err := os.Stat(filepath.Join(dest, "models", name))
		test.That(t, err, test.ShouldBeNil)
	}

	written := loadDataset(t, datasetConfig(dest, config.ConventionBOP), logging.NewTestLogger(t))
	test.That(t, written.Parts, test.ShouldHaveLength, 2)
	test.That(t, written.Parts[0].CADPath, test.ShouldEqual, filepath.Join(dest, "models", "obj_000001.ply"))

	scene := written.Streams[0].Scenes[0]
	want := merged.Streams[0].Scenes[0]
	test.That(t, imageIDs(scene), test.ShouldResemble, []int{0, 1, 2, 3})
	test.That(t, scene.Images[3].Path, test.ShouldEqual, filepath.Join(dest, stream, "000000", "rgb", "000003.jpg"))
	for i, img := range scene.Images {
		test.That(t, img.Camera.WorldToCamera, test.ShouldResemble, want.Images[i].Camera.WorldToCamera)
		test.That(t, img.Camera.Intrinsics, test.ShouldResemble, want.Images[i].Camera.Intrinsics)
		test.That(t, img.Width, test.ShouldEqual, want.Images[i].Width)
		test.That(t, img.Objects, test.ShouldHaveLength, len(want.Images[i].Objects))
		for j, obj := range img.Objects {
			test.That(t, obj.Part.ID, test.ShouldEqual, want.Images[i].Objects[j].Part.ID)
			test.That(t, obj.Pose, test.ShouldResemble, want.Images[i].Objects[j].Pose)
		}
	}
	test.That(t, scene.PositionedParts, test.ShouldHaveLength, 1)
	test.That(t, scene.PositionedParts[0].Pose, test.ShouldResemble, want.PositionedParts[0].Pose)
}

func TestWriteSceneIDsFromMemory(t *testing.T) {
	fixture := testutils.NewDataset(t, 1)
	cam := testutils.Camera{RW2C: testutils.IdentityR, TW2C: testutils.ZeroT}
	fixture.AddScene(stream, testutils.Scene{Dir: "000007", Images: []testutils.Image{{ID: 0, Camera: cam}}})
	src := loadDataset(t, datasetConfig(fixture.Root, config.ConventionBOP), logging.NewTestLogger(t))

	merged, err := Merge([]*Dataset{src, src}, false)
	test.That(t, err, test.ShouldBeNil)
	dest := t.TempDir()
	test.That(t, NewWriter(logging.NewTestLogger(t)).Write(merged, fixture.Root, "models", dest), test.ShouldBeNil)

	for _, dir := range []string{"000007", "000008"} {
		_, err := os.Stat(filepath.Join(dest, stream, dir, SceneCameraFile))
		test.That(t, err, test.ShouldBeNil)
	}
}

func TestWriteRefusesSourceDestination(t *testing.T) {
	fixture := testutils.NewDataset(t, 1)
	writer := NewWriter(logging.NewTestLogger(t))

	err := writer.Write(&Dataset{}, fixture.Root, "models", fixture.Root)
	test.That(t, err, test.ShouldNotBeNil)
	err = writer.Write(&Dataset{}, fixture.Path("models"), ".", fixture.Root)
	test.That(t, err, test.ShouldNotBeNil)

	// nothing was removed
	_, err = os.Stat(fixture.Path("models", ModelsInfoFile))
	test.That(t, err, test.ShouldBeNil)
}

func TestWriteRefusesImageSourceDestination(t *testing.T) {
	models := testutils.NewDataset(t, 1)
	images := testutils.NewDataset(t, 1)
	images.AddScene(stream, testutils.Scene{Dir: "000000", Images: []testutils.Image{
		{ID: 0, Camera: testutils.Camera{RW2C: testutils.IdentityR, TW2C: testutils.ZeroT}},
	}})
	ds := loadDataset(t, datasetConfig(images.Root, config.ConventionBOP), logging.NewTestLogger(t))

	err := NewWriter(logging.NewTestLogger(t)).Write(ds, models.Root, "models", images.Root)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "source image")

	_, err = os.Stat(images.Path(stream, "000000", "rgb", "000000.png"))
	test.That(t, err, test.ShouldBeNil)
}

func TestWriteMissingImage(t *testing.T) {
	fixture := testutils.NewDataset(t, 1)
	ds := &Dataset{Streams: []Stream{{Name: stream, Scenes: []Scene{{ID: 0, Images: []Image{
		{ID: 0, Path: fixture.Path("nowhere.png")},
	}}}}}}
	err := NewWriter(logging.NewTestLogger(t)).Write(ds, fixture.Root, "models", t.TempDir())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "nowhere.png")
}
