package dataset

import (
	"github.com/pkg/errors"
)

// Merge combines datasets that share the same parts into a new dataset. The inputs are not
// modified and may be passed more than once.
//
// Datasets are merged in order and the ids of earlier datasets win: streams not yet present are
// copied as is, and a scene whose id is already taken in its stream is either appended to the
// existing scene (mergeScenesByID) with its image ids shifted past the existing ones, or added as
// a new scene with the next free scene id. Parts are taken from the first dataset.
func Merge(datasets []*Dataset, mergeScenesByID bool) (*Dataset, error) {
	if len(datasets) == 0 {
		return nil, errors.New("nothing to merge")
	}

	result := &Dataset{Parts: append([]Part(nil), datasets[0].Parts...)}
	for _, ds := range datasets {
		for _, stream := range ds.Streams {
			existing, ok := result.Stream(stream.Name)
			if !ok {
				result.Streams = append(result.Streams, stream.Clone())
				continue
			}
			for _, scene := range stream.Scenes {
				mergeScene(existing, scene, mergeScenesByID)
			}
		}
	}
	return result, nil
}

func mergeScene(stream *Stream, incoming Scene, mergeScenesByID bool) {
	for i := range stream.Scenes {
		if stream.Scenes[i].ID != incoming.ID {
			continue
		}
		if mergeScenesByID {
			stream.Scenes[i] = appendImages(stream.Scenes[i], incoming)
			return
		}
		renamed := incoming.Clone()
		renamed.ID = stream.MaxSceneID() + 1
		renamed.Name = ""
		stream.Scenes = append(stream.Scenes, renamed)
		return
	}
	stream.Scenes = append(stream.Scenes, incoming.Clone())
}

// appendImages returns a copy of scene with the images of incoming appended. Incoming image ids
// are shifted by one past the largest id already in the scene, keeping their relative order.
func appendImages(scene, incoming Scene) Scene {
	offset := scene.MaxImageID() + 1
	images := make([]Image, 0, len(scene.Images)+len(incoming.Images))
	images = append(images, scene.Images...)
	for _, img := range incoming.Images {
		img = img.Clone()
		img.ID += offset
		images = append(images, img)
	}
	scene.Images = images
	return scene
}
