package config

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	OUTPUT_SPEW = "spew"
	OUTPUT_YAML = "yaml"
)

// Config is the tool configuration file. Decoders only read the encoding it
// selects.
type Config struct {
	Encoding      string   `yaml:"encoding"`
	Output        string   `yaml:"output"`
	DumpDepth     int      `yaml:"dump_depth"`
	SkeletonCache int      `yaml:"skeleton_cache"`
	Skeletons     []string `yaml:"skeletons,omitempty"`
}

func Default() Config {
	return Config{
		Encoding:      GetEncoding().String(),
		Output:        OUTPUT_SPEW,
		SkeletonCache: 16,
	}
}

func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "Unmarshaling error")
	}
	switch cfg.Output {
	case OUTPUT_SPEW, OUTPUT_YAML:
	default:
		return cfg, errors.Errorf("Unknown output %q", cfg.Output)
	}
	if cfg.SkeletonCache <= 0 {
		return cfg, errors.Errorf("skeleton_cache must be positive, got %d", cfg.SkeletonCache)
	}
	return cfg, nil
}

// Load reads a YAML config file and applies its encoding.
func Load(path string) (Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "Cannot read file %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return cfg, errors.Wrapf(err, "config %s", path)
	}
	if err := SetEncoding(cfg.Encoding); err != nil {
		return cfg, err
	}
	return cfg, nil
}
