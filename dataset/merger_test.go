package dataset

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/samber/lo"
	"go.viam.com/test"

	"github.com/pderoovere/dimo-labeling/spatialmath"
)

var testParts = []Part{{ID: 1, CADPath: "/d/models/obj_000001.ply"}, {ID: 2, CADPath: "/d/models/obj_000002.ply"}}

func testScene(id int, ids ...int) Scene {
	scene := Scene{ID: id, PositionedParts: []PositionedPart{{Part: testParts[0], Pose: spatialmath.NewZeroPose()}}}
	for _, imageID := range ids {
		scene.Images = append(scene.Images, Image{
			ID:      imageID,
			Path:    "/d/rgb/img.png",
			Camera:  Camera{Pose: spatialmath.NewZeroPose(), WorldToCamera: spatialmath.NewZeroPose()},
			Objects: []PositionedPart{{Part: testParts[1], Pose: spatialmath.NewZeroPose()}},
		})
	}
	return scene
}

func imageIDs(scene Scene) []int {
	return lo.Map(scene.Images, func(img Image, _ int) int { return img.ID })
}

func sceneIDs(stream Stream) []int {
	return lo.Map(stream.Scenes, func(s Scene, _ int) int { return s.ID })
}

// datasetDiff compares datasets including the unexported pose matrices.
func datasetDiff(a, b *Dataset) string {
	return cmp.Diff(a, b, cmp.AllowUnexported(spatialmath.Pose{}, spatialmath.Intrinsics{}))
}

func TestMergeNothing(t *testing.T) {
	_, err := Merge(nil, false)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMergeSelfWithoutMergingScenes(t *testing.T) {
	ds := &Dataset{Parts: testParts, Streams: []Stream{{
		Name:   "real",
		Scenes: []Scene{testScene(0, 0, 1, 2), testScene(1, 0, 1)},
	}}}
	before := ds.Clone()

	merged, err := Merge([]*Dataset{ds, ds}, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, datasetDiff(ds, before), test.ShouldBeEmpty)

	test.That(t, merged.Parts, test.ShouldResemble, testParts)
	test.That(t, merged.Streams, test.ShouldHaveLength, 1)
	stream := merged.Streams[0]
	test.That(t, stream.ImageCount(), test.ShouldEqual, 2*ds.Streams[0].ImageCount())
	test.That(t, sceneIDs(stream), test.ShouldResemble, []int{0, 1, 2, 3})
	test.That(t, lo.Uniq(sceneIDs(stream)), test.ShouldHaveLength, 4)

	// the renumbered copies keep their content
	test.That(t, imageIDs(stream.Scenes[2]), test.ShouldResemble, []int{0, 1, 2})
	test.That(t, imageIDs(stream.Scenes[3]), test.ShouldResemble, []int{0, 1})
	test.That(t, stream.Scenes[2].Name, test.ShouldBeEmpty)
	test.That(t, stream.Scenes[2].DirName(), test.ShouldEqual, "000002")
}

func TestMergeScenesByID(t *testing.T) {
	a := &Dataset{Parts: testParts, Streams: []Stream{{
		Name:   "real",
		Scenes: []Scene{testScene(0, 0, 4), testScene(1, 0)},
	}}}
	b := &Dataset{Parts: testParts, Streams: []Stream{
		{Name: "real", Scenes: []Scene{testScene(0, 0, 1, 3), testScene(5, 2)}},
		{Name: "synth", Scenes: []Scene{testScene(0, 0)}},
	}}
	beforeA, beforeB := a.Clone(), b.Clone()

	merged, err := Merge([]*Dataset{a, b}, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, datasetDiff(a, beforeA), test.ShouldBeEmpty)
	test.That(t, datasetDiff(b, beforeB), test.ShouldBeEmpty)

	test.That(t, merged.Streams, test.ShouldHaveLength, 2)
	realStream := merged.Streams[0]
	test.That(t, sceneIDs(realStream), test.ShouldResemble, []int{0, 1, 5})
	// offset is one past the largest existing image id
	test.That(t, imageIDs(realStream.Scenes[0]), test.ShouldResemble, []int{0, 4, 5, 6, 8})
	test.That(t, imageIDs(realStream.Scenes[1]), test.ShouldResemble, []int{0})
	test.That(t, imageIDs(realStream.Scenes[2]), test.ShouldResemble, []int{2})
	// positioned parts of the existing scene win
	test.That(t, realStream.Scenes[0].PositionedParts, test.ShouldHaveLength, 1)

	test.That(t, merged.Streams[1].Name, test.ShouldEqual, "synth")
	test.That(t, sceneIDs(merged.Streams[1]), test.ShouldResemble, []int{0})
}

func TestMergeSelfByID(t *testing.T) {
	ds := &Dataset{Parts: testParts, Streams: []Stream{{Name: "real", Scenes: []Scene{testScene(3, 0, 1, 2)}}}}
	merged, err := Merge([]*Dataset{ds, ds, ds}, true)
	test.That(t, err, test.ShouldBeNil)
	scene := merged.Streams[0].Scenes[0]
	test.That(t, imageIDs(scene), test.ShouldResemble, []int{0, 1, 2, 3, 4, 5, 6, 7, 8})
	test.That(t, imageIDs(ds.Streams[0].Scenes[0]), test.ShouldResemble, []int{0, 1, 2})
}

func TestMergeResultIsIndependent(t *testing.T) {
	ds := &Dataset{Parts: testParts, Streams: []Stream{{Name: "real", Scenes: []Scene{testScene(0, 0)}}}}
	merged, err := Merge([]*Dataset{ds}, false)
	test.That(t, err, test.ShouldBeNil)

	merged.Streams[0].Scenes[0].Images[0].Objects[0].Pose = spatialmath.Pose{}
	merged.Streams[0].Scenes[0].PositionedParts[0].Part = testParts[1]
	merged.Parts[0].ID = 9
	test.That(t, ds.Streams[0].Scenes[0].Images[0].Objects[0].Pose, test.ShouldResemble, spatialmath.NewZeroPose())
	test.That(t, ds.Streams[0].Scenes[0].PositionedParts[0].Part, test.ShouldResemble, testParts[0])
	test.That(t, testParts[0].ID, test.ShouldEqual, 1)
}

func TestDatasetString(t *testing.T) {
	ds := &Dataset{Parts: testParts, Streams: []Stream{
		{Name: "real", Scenes: []Scene{testScene(0, 0, 1, 2), testScene(1, 0)}},
		{Name: "synthetic"},
	}}
	lines := strings.Split(strings.ToLower(ds.String()), "\n")
	row, ok := lo.Find(lines, func(line string) bool { return strings.Contains(line, "| real ") })
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, strings.Fields(strings.ReplaceAll(row, "|", " ")), test.ShouldResemble, []string{"real", "2", "4", "2"})
	test.That(t, ds.String(), test.ShouldContainSubstring, "synthetic")
	test.That(t, strings.ToLower(ds.String()), test.ShouldContainSubstring, "2 parts")
}
