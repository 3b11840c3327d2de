package shatter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration consumed by the host program. The core
// never reads it; descriptor and translator sections are handed to their
// owners as typed models via Section. Layout:
//
//	api_descriptors:
//	  users:
//	    config:
//	      page_size: 50
type Config struct {
	Descriptors map[string]*SectionConfig `yaml:"api_descriptors"`
	Translators map[string]*SectionConfig `yaml:"api_translators"`
}

// SectionConfig is one named section's raw, not-yet-typed payload.
type SectionConfig struct {
	Config map[string]any `yaml:"config"`
}

// ConfigError reports a missing or invalid config section with
// human-readable problem lines.
type ConfigError struct {
	Section  string
	Problems []string
}

func (e *ConfigError) Error() string {
	if len(e.Problems) == 0 {
		return fmt.Sprintf("shatter: config section %q is invalid", e.Section)
	}
	return fmt.Sprintf("shatter: config section %q: %s", e.Section, strings.Join(e.Problems, "; "))
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseConfig(f)
}

// ParseConfig parses YAML config from a reader.
func ParseConfig(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Section: "", Problems: []string{err.Error()}}
	}
	return &cfg, nil
}

// Section decodes a descriptor's config section into a typed model and runs
// constraint validation on it. A missing optional section yields (nil, nil);
// a missing required section, or a section that fails validation, yields a
// ConfigError whose problems name the offending fields.
func Section[T any](c *Config, name string, required bool) (*T, error) {
	sc, ok := c.Descriptors[name]
	if !ok {
		if required {
			return nil, &ConfigError{Section: name, Problems: []string{"section not found in config file, please add it"}}
		}
		return nil, nil
	}
	if sc == nil || sc.Config == nil {
		if required {
			return nil, &ConfigError{Section: name, Problems: []string{"config section is empty, please add it"}}
		}
		return nil, nil
	}

	raw, err := yaml.Marshal(sc.Config)
	if err != nil {
		return nil, &ConfigError{Section: name, Problems: []string{err.Error()}}
	}
	out := new(T)
	if err := yaml.Unmarshal(raw, out); err != nil {
		return nil, &ConfigError{Section: name, Problems: []string{err.Error()}}
	}

	if errs := validateConstraints(out); len(errs) > 0 {
		problems := make([]string, len(errs))
		for i, fe := range errs {
			problems[i] = formatFieldError(fe, "api_descriptors."+name)
		}
		return nil, &ConfigError{Section: name, Problems: problems}
	}
	return out, nil
}

// formatFieldError renders one validation failure as
// "<message>: <field> at .<path>", matching the config loader's log format.
func formatFieldError(fe FieldError, basePath string) string {
	msg := strings.ToLower(fe.Msg)
	if len(fe.Loc) == 0 {
		return msg + " at {unknown location}"
	}
	field := fe.Loc[len(fe.Loc)-1]
	parents := fe.Loc[:len(fe.Loc)-1]

	path := field
	if basePath != "" || len(parents) > 0 {
		path += " at"
		if basePath != "" {
			path += " ." + basePath
		}
		for _, p := range parents {
			path += "." + p
		}
	}
	return msg + ": " + path
}
