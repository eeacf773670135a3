package loaders

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// ShaderConfig is the content of a .shadercfg file. Stage files are
// relative to the config and default to <name>.<stage>.spv.
type ShaderConfig struct {
	Name             string                `toml:"name"`
	PushConstantSize uint32                `toml:"push_constant_size"`
	Stages           []ShaderStageConfig   `toml:"stages"`
	Bindings         []ShaderBindingConfig `toml:"bindings"`
}

type ShaderStageConfig struct {
	Stage      string `toml:"stage"`
	File       string `toml:"file"`
	EntryPoint string `toml:"entry_point"`
}

type ShaderBindingConfig struct {
	Binding uint32 `toml:"binding"`
	Kind    string `toml:"kind"`
}

type ShaderLoader struct{}

func ParseShaderConfig(data []byte) (*ShaderConfig, error) {
	cfg := &ShaderConfig{}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidConfig, err)
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: shader config has no name", core.ErrInvalidConfig)
	}
	if len(cfg.Stages) == 0 {
		return nil, fmt.Errorf("%w: shader %q has no stages", core.ErrInvalidConfig, cfg.Name)
	}
	return cfg, nil
}

// Load reads the config at path and the SPIR-V of every stage.
func (sl *ShaderLoader) Load(path string) (*metadata.ShaderProgram, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseShaderConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	program := &metadata.ShaderProgram{
		Name:             cfg.Name,
		PushConstantSize: cfg.PushConstantSize,
	}
	dir := filepath.Dir(path)
	for _, sc := range cfg.Stages {
		stage, err := metadata.ParseShaderStage(sc.Stage)
		if err != nil {
			return nil, fmt.Errorf("%w: shader %q: %s", core.ErrInvalidConfig, cfg.Name, err)
		}
		file := sc.File
		if file == "" {
			file = StageFileName(cfg.Name, stage)
		}
		code, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			return nil, fmt.Errorf("shader %q: %w", cfg.Name, err)
		}
		entry := sc.EntryPoint
		if entry == "" {
			entry = "main"
		}
		program.Stages = append(program.Stages, metadata.ShaderStageModule{
			Stage:      stage,
			EntryPoint: entry,
			Code:       code,
		})
	}
	for _, bc := range cfg.Bindings {
		kind, err := metadata.ParseBindingKind(bc.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: shader %q: %s", core.ErrInvalidConfig, cfg.Name, err)
		}
		program.Bindings = append(program.Bindings, metadata.ShaderBinding{Binding: bc.Binding, Kind: kind})
	}
	return program, nil
}

func StageFileName(program string, stage metadata.ShaderStage) string {
	short := map[metadata.ShaderStage]string{
		metadata.ShaderStageVertex:   "vert",
		metadata.ShaderStageGeometry: "geom",
		metadata.ShaderStageFragment: "frag",
		metadata.ShaderStageCompute:  "comp",
	}[stage]
	return program + "." + short + ".spv"
}

// ProgramOf returns the program a shader file belongs to: the part of the
// file name before the first dot.
func ProgramOf(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}
