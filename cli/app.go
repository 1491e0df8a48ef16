// Package cli contains the labeler command line: serving a dataset to the annotation client and
// merging datasets.
package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/pderoovere/dimo-labeling/config"
	"github.com/pderoovere/dimo-labeling/logging"
)

// Flags.
const (
	flagConfig      = "config"
	flagDebug       = "debug"
	flagPath        = "path"
	flagModelsDir   = "models-dir"
	flagImagesDir   = "images-dir"
	flagMode        = "mode"
	flagPort        = "port"
	flagSrc         = "src"
	flagDest        = "dest"
	flagStreams     = "streams"
	flagMergeScenes = "merge-scenes"
)

// DefaultPort is the port the annotation client expects the server on.
const DefaultPort = 4321

// NewApp returns a new app with the labeler commands, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "labeler",
		Usage:           "annotate and merge 6D pose datasets",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve a dataset to the annotation client",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:    flagConfig,
						Aliases: []string{"c"},
						Usage:   "load configuration from `FILE`",
					},
					&cli.PathFlag{
						Name:  flagPath,
						Usage: "dataset root directory",
					},
					&cli.StringFlag{
						Name:  flagModelsDir,
						Usage: "models directory inside the dataset",
						Value: config.DefaultModelsDir,
					},
					&cli.StringFlag{
						Name:  flagImagesDir,
						Usage: "scenes directory inside the dataset",
						Value: config.DefaultImagesDir,
					},
					&cli.StringFlag{
						Name:  flagMode,
						Usage: "extrinsic convention of scene_camera.json: bop or dimo",
						Value: string(config.ConventionBOP),
					},
					&cli.IntFlag{
						Name:  flagPort,
						Usage: "port to listen on",
						Value: DefaultPort,
					},
				},
				Action: ServeAction,
			},
			{
				Name:  "merge",
				Usage: "merge datasets into a new dataset directory",
				UsageText: fmt.Sprintf("labeler merge --%s <dataset> [--%s <dataset> ...] --%s <directory> [other options]",
					flagSrc, flagSrc, flagDest),
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     flagSrc,
						Required: true,
						Usage:    "dataset to merge, repeat in order of precedence",
					},
					&cli.PathFlag{
						Name:     flagDest,
						Required: true,
						Usage:    "output directory, replaced if it exists",
					},
					&cli.StringFlag{
						Name:  flagModelsDir,
						Usage: "models directory inside each dataset",
						Value: config.DefaultModelsDir,
					},
					&cli.StringSliceFlag{
						Name:  flagStreams,
						Usage: "scene directories to merge",
						Value: cli.NewStringSlice(config.DefaultImagesDir),
					},
					&cli.StringFlag{
						Name:  flagMode,
						Usage: "extrinsic convention of scene_camera.json: bop or dimo",
						Value: string(config.ConventionBOP),
					},
					&cli.BoolFlag{
						Name:  flagMergeScenes,
						Usage: "append images of scenes with the same id instead of renumbering the scene",
					},
				},
				Action: MergeAction,
			},
		},
	}
}

// newLogger returns the logger of a command, writing to the app's error writer.
func newLogger(c *cli.Context, name string) logging.Logger {
	logger := logging.NewBlankLogger(name)
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	logger.SetLevel(logging.INFO)
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	logging.ReplaceGlobal(logger)
	return logger
}

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}
