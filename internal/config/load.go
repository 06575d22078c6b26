package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// LoadError represents a configuration file that could not be read or
// decoded. Pos is set for CUE sources.
type LoadError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// InvalidError wraps the validation errors of a decoded configuration.
type InvalidError struct {
	Path   string
	Errors []ValidationError
}

func (e *InvalidError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s: %v", e.Path, e.Errors[0])
	}
	return fmt.Sprintf("%s: %d validation errors, first: %v", e.Path, len(e.Errors), e.Errors[0])
}

// Load reads a configuration file and overlays it on Default.
// Files ending in .cue are unified with the embedded schema; .yaml/.yml files
// are decoded strictly (unknown keys are errors). The result is validated.
// An empty path returns Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("read config: %v", err)}
	}

	switch ext := filepath.Ext(path); ext {
	case ".cue":
		err = decodeCUE(path, data, cfg)
	case ".yaml", ".yml":
		err = decodeYAML(path, data, cfg)
	default:
		err = &LoadError{Path: path, Message: fmt.Sprintf("unsupported config extension %q (want .cue, .yaml or .yml)", ext)}
	}
	if err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, &InvalidError{Path: path, Errors: errs}
	}
	return cfg, nil
}

// decodeYAML overlays YAML onto cfg. Keys present in the file replace the
// defaults; map-valued tables are merged key by key.
func decodeYAML(path string, data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &LoadError{Path: path, Message: fmt.Sprintf("parse YAML: %v", err)}
	}
	return nil
}

// decodeCUE unifies the file with #Config and overlays the concrete result.
func decodeCUE(path string, data []byte, cfg *Config) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return formatCUEError(path, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(path, err)
	}
	if err := unified.Decode(cfg); err != nil {
		return formatCUEError(path, err)
	}
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(path string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Path: path, Message: err.Error()}
	}

	first := errs[0]
	loadErr := &LoadError{Path: path, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		loadErr.Pos = positions[0]
	}
	return loadErr
}
