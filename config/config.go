// Package config defines the configuration handed to the dataset loader, saver and server.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/pderoovere/dimo-labeling/logging"
)

// Defaults used when a field is left empty.
const (
	DefaultModelsDir = "models"
	DefaultImagesDir = "real_jaigo"
)

// Convention selects how the camera extrinsics stored in scene_camera.json are interpreted.
type Convention string

const (
	// ConventionBOP treats cam_R_w2c/cam_t_w2c as world-to-camera and inverts them to obtain the
	// camera pose in the world.
	ConventionBOP Convention = "bop"
	// ConventionDIMO takes cam_R_m2c/cam_t_m2c as the per image pose without inversion.
	ConventionDIMO Convention = "dimo"
)

// ParseConvention resolves a convention name. The empty string selects ConventionBOP.
func ParseConvention(name string) (Convention, error) {
	switch Convention(strings.ToLower(name)) {
	case ConventionBOP, "":
		return ConventionBOP, nil
	case ConventionDIMO:
		return ConventionDIMO, nil
	default:
		return "", errors.Errorf("unknown dataset convention %q, expected %q or %q", name, ConventionBOP, ConventionDIMO)
	}
}

// UnmarshalText lets a Convention be read from JSON strings and flags.
func (c *Convention) UnmarshalText(text []byte) error {
	parsed, err := ParseConvention(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Config describes where a dataset lives and how to read it.
type Config struct {
	// Root is the dataset directory.
	Root string `json:"path"`
	// ModelsDir is the directory, relative to Root, holding models_info.json and the CAD files.
	ModelsDir string `json:"models_dir,omitempty"`
	// ImagesDir is the directory, relative to Root, holding one directory per scene.
	ImagesDir  string     `json:"images_dir,omitempty"`
	Convention Convention `json:"mode,omitempty"`
	// LogLevel is the level of the command logger. Defaults to info.
	LogLevel logging.Level `json:"log_level,omitempty"`
}

// Default returns a config for the given root with every other field defaulted.
func Default(root string) Config {
	cfg := Config{Root: root}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in empty fields.
func (c *Config) ApplyDefaults() {
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.ImagesDir == "" {
		c.ImagesDir = DefaultImagesDir
	}
	if c.Convention == "" {
		c.Convention = ConventionBOP
	}
}

// Validate returns every problem with the config at once.
func (c Config) Validate() error {
	var err error
	if c.Root == "" {
		err = multierr.Append(err, newFieldRequiredError("path"))
	}
	for _, field := range []struct{ name, dir string }{
		{"models_dir", c.ModelsDir},
		{"images_dir", c.ImagesDir},
	} {
		name, dir := field.name, field.dir
		if dir == "" {
			err = multierr.Append(err, newFieldRequiredError(name))
			continue
		}
		if filepath.IsAbs(dir) || strings.HasPrefix(filepath.Clean(dir), "..") {
			err = multierr.Append(err, errors.Errorf("%q must be a directory inside the dataset, got %q", name, dir))
		}
	}
	if _, convErr := ParseConvention(string(c.Convention)); convErr != nil {
		err = multierr.Append(err, convErr)
	}
	if c.LogLevel < logging.DEBUG || c.LogLevel > logging.ERROR {
		err = multierr.Append(err, errors.Errorf("unknown log level %d", int(c.LogLevel)))
	}
	return err
}

// ModelsPath is the absolute location of the models directory.
func (c Config) ModelsPath() string {
	return filepath.Join(c.Root, c.ModelsDir)
}

// ImagesPath is the absolute location of the scenes directory.
func (c Config) ImagesPath() string {
	return filepath.Join(c.Root, c.ImagesDir)
}

func newFieldRequiredError(field string) error {
	return fmt.Errorf("config field %q is required", field)
}
