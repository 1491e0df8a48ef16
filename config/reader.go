package config

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// Read reads a config from the given file, expanding environment variables first. A relative
// dataset path is resolved against the directory of the config file.
func Read(filePath string) (Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config %q", filePath)
	}
	cfg, err := FromReader(bytes.NewReader(buf))
	if err != nil {
		return Config{}, err
	}
	if cfg.Root != "" && !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(filepath.Dir(filePath), cfg.Root)
	}
	return cfg, nil
}

// FromReader decodes a config from JSON5, so hand-written files may carry comments, unquoted
// keys and trailing commas. Unknown fields are rejected. Defaults are applied and the result is
// validated.
func FromReader(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config")
	}
	var doc interface{}
	if err := json5.Unmarshal(data, &doc); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config from json5")
	}
	canonical, err := json.Marshal(doc)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config from json5")
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(canonical))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}
