package cli

import (
	"context"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/pderoovere/dimo-labeling/config"
	"github.com/pderoovere/dimo-labeling/dataset"
	"github.com/pderoovere/dimo-labeling/utils"
)

// MergeAction loads the source datasets in parallel, merges them in the order given and writes the result.
// Models are copied from the first source.
func MergeAction(c *cli.Context) error {
	logger := newLogger(c, "merge")
	sources := c.StringSlice(flagSrc)
	streams := c.StringSlice(flagStreams)
	if len(streams) == 0 {
		return errors.New("no streams to merge")
	}
	convention, err := config.ParseConvention(c.String(flagMode))
	if err != nil {
		return err
	}
	modelsDir := c.String(flagModelsDir)

	datasets, err := utils.MapInParallel(c.Context, sources, func(ctx context.Context, src string) (*dataset.Dataset, error) {
		cfg := config.Config{Root: src, ModelsDir: modelsDir, ImagesDir: streams[0], Convention: convention}
		loader, err := dataset.NewLoader(cfg, logger.Sublogger("loader"))
		if err != nil {
			return nil, errors.Wrapf(err, "dataset %s", src)
		}
		ds, err := loader.LoadStreams(streams...)
		if err != nil {
			return nil, errors.Wrapf(err, "loading %s", src)
		}
		return ds, nil
	})
	if err != nil {
		return err
	}

	merged, err := dataset.Merge(datasets, c.Bool(flagMergeScenes))
	if err != nil {
		return err
	}
	dest := c.Path(flagDest)
	if err := dataset.NewWriter(logger.Sublogger("writer")).Write(merged, sources[0], modelsDir, dest); err != nil {
		return err
	}
	printf(c.App.Writer, "%s", merged)
	printf(c.App.Writer, "merged %d datasets into %s", len(sources), dest)
	return logger.Sync()
}
