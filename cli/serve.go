package cli

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/pderoovere/dimo-labeling/config"
	"github.com/pderoovere/dimo-labeling/web"
)

// ServeAction serves the configured dataset until the command is interrupted.
func ServeAction(c *cli.Context) error {
	logger := newLogger(c, "labeler")
	cfg, err := serveConfig(c)
	if err != nil {
		return err
	}
	if !c.Bool(flagDebug) {
		logger.SetLevel(cfg.LogLevel)
	}
	srv, err := web.NewServer(cfg, nil, logger)
	if err != nil {
		return err
	}
	return web.RunWeb(c.Context, srv, web.Options{Port: c.Int(flagPort)}, logger)
}

// serveConfig reads the config file, if any, and applies the flags given on the command line
// on top of it.
func serveConfig(c *cli.Context) (config.Config, error) {
	var cfg config.Config
	if path := c.Path(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return config.Config{}, errors.Wrapf(err, "reading config %s", path)
		}
	}

	if c.IsSet(flagPath) || cfg.Root == "" {
		cfg.Root = c.Path(flagPath)
	}
	if c.IsSet(flagModelsDir) || cfg.ModelsDir == "" {
		cfg.ModelsDir = c.String(flagModelsDir)
	}
	if c.IsSet(flagImagesDir) || cfg.ImagesDir == "" {
		cfg.ImagesDir = c.String(flagImagesDir)
	}
	if c.IsSet(flagMode) || cfg.Convention == "" {
		convention, err := config.ParseConvention(c.String(flagMode))
		if err != nil {
			return config.Config{}, err
		}
		cfg.Convention = convention
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
