package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"annmerge/common"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

// CommentsField is the name of the built-in library field, everything else
// must be a custom field name starting with '#'.
const CommentsField = "Comments"

type (
	LibraryConfig struct {
		Path        string `yaml:"path" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
		Destination string `yaml:"destination" validate:"required,eq=Comments|startswith=#"`
		// Title of synthetic book receiving annotations for books which could
		// not be matched to the library.
		ClippingsTitle string `yaml:"clippings_title" validate:"required"`
	}

	// AppearanceConfig controls how annotations are rendered. Changing any of
	// these values requires re-rendering already stored annotations.
	AppearanceConfig struct {
		DividerText     string              `yaml:"divider_text"`
		SortKey         common.SortKey      `yaml:"sort_key" validate:"required"`
		Colors          map[string]string   `yaml:"colors" validate:"dive,keys,required,endkeys"`
		ContainerStyle  string              `yaml:"container_style"`
		HighlightStyle  string              `yaml:"highlight_style"`
		NoteStyle       string              `yaml:"note_style"`
		LocationStyle   string              `yaml:"location_style"`
		ShowLocation    bool                `yaml:"show_location"`
		TimestampFormat string              `yaml:"timestamp_format"`
		Legacy          common.LegacyPolicy `yaml:"legacy" validate:"required"`
	}

	ImportConfig struct {
		WatchDir string `yaml:"watch_dir,omitempty" sanitize:"path_clean" validate:"omitempty,dirpath"`
		// Reader name to assume when dump does not specify one.
		DefaultReader string `yaml:"default_reader" validate:"required"`
		// Import only books marked as active by the source.
		ActiveOnly bool `yaml:"active_only"`
	}

	Config struct {
		Version    int              `yaml:"version" validate:"eq=1"`
		Library    LibraryConfig    `yaml:"library"`
		Appearance AppearanceConfig `yaml:"appearance"`
		Import     ImportConfig     `yaml:"import"`
		Logging    LoggingConfig    `yaml:"logging"`
		Reporting  ReporterConfig   `yaml:"reporting"`
	}
)

// IsCustomField reports whether the field name refers to user defined column.
func IsCustomField(name string) bool {
	return len(name) > 1 && name[0] == '#'
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
		for name := range cfg.Appearance.Colors {
			if _, err := common.ParseHighlightColor(name); err != nil {
				return nil, fmt.Errorf("appearance colors: %w", err)
			}
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
