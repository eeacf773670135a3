package views

import (
	"encoding/binary"
	"fmt"
	m "math"
	"sync"

	"github.com/spaghettifunk/framegraph/engine/assets"
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/components"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// Image and buffer names of the built-in views, as seen by
// GraphResources.GetImageByName.
const (
	DepthImage      = "Depth"
	HDRImage        = "HDR"
	LDRImage        = "LDR"
	OutputImage     = "FXAA"
	HistogramBuffer = "LuminanceHistogram"
)

const (
	HistogramBins = 256
	// histogramGroupSize is the local size of the histogram compute shader
	// in both dimensions.
	histogramGroupSize = 16
)

/** @brief Procedural geometry drawn by the depth prepass. */
type Draw struct {
	VertexCount   uint32
	InstanceCount uint32
}

type Light struct {
	Direction math.Vec3
	Intensity float32
}

// Frame is the per frame argument of graphs made of the built-in views.
type Frame struct {
	Camera *components.Camera
	Draws  []Draw
	Light  Light
	// Exposure is used as is when no histogram feeds the tonemapper.
	Exposure float32
}

// Shaders holds the programs of the built-in views. Passes read it while
// recording, so a program swapped with Replace is used from the next frame.
type Shaders struct {
	mu        sync.RWMutex
	programs  map[string]*metadata.ShaderProgram
	reloaded  int
	libraries []*assets.ShaderLibrary
}

const (
	DepthShader     = "depth"
	LightingShader  = "lighting"
	HistogramShader = "histogram"
	TonemapShader   = "tonemap"
	FXAAShader      = "fxaa"
)

var builtinPrograms = []*metadata.ShaderProgram{
	{
		Name:             DepthShader,
		PushConstantSize: 64,
		Stages:           stages(metadata.ShaderStageVertex, metadata.ShaderStageFragment),
	},
	{
		Name:             LightingShader,
		PushConstantSize: 32,
		Stages:           stages(metadata.ShaderStageVertex, metadata.ShaderStageFragment),
		Bindings:         []metadata.ShaderBinding{{Binding: 0, Kind: metadata.BindingSampledImage}},
	},
	{
		Name:             HistogramShader,
		PushConstantSize: 16,
		Stages:           stages(metadata.ShaderStageCompute),
		Bindings: []metadata.ShaderBinding{
			{Binding: 0, Kind: metadata.BindingSampledImage},
			{Binding: 1, Kind: metadata.BindingStorageBuffer},
		},
	},
	{
		Name:             TonemapShader,
		PushConstantSize: 16,
		Stages:           stages(metadata.ShaderStageVertex, metadata.ShaderStageFragment),
		Bindings: []metadata.ShaderBinding{
			{Binding: 0, Kind: metadata.BindingSampledImage},
			{Binding: 1, Kind: metadata.BindingStorageBuffer},
		},
	},
	{
		Name:             FXAAShader,
		PushConstantSize: 16,
		Stages:           stages(metadata.ShaderStageVertex, metadata.ShaderStageFragment),
		Bindings:         []metadata.ShaderBinding{{Binding: 0, Kind: metadata.BindingSampledImage}},
	},
}

// stages builds placeholder modules. Their code is only good for backends
// that never look at it.
func stages(list ...metadata.ShaderStage) []metadata.ShaderStageModule {
	out := make([]metadata.ShaderStageModule, len(list))
	for i, s := range list {
		out[i] = metadata.ShaderStageModule{Stage: s, EntryPoint: "main", Code: []byte(s.String())}
	}
	return out
}

// BuiltinShaders returns placeholder programs with the layouts the views
// expect, for the headless device and tests.
func BuiltinShaders() *Shaders {
	s := &Shaders{programs: make(map[string]*metadata.ShaderProgram)}
	for _, p := range builtinPrograms {
		cp := *p
		s.programs[p.Name] = &cp
	}
	return s
}

// LoadShaders loads every built-in program from the library.
func LoadShaders(lib *assets.ShaderLibrary) (*Shaders, error) {
	s := &Shaders{programs: make(map[string]*metadata.ShaderProgram)}
	for _, p := range builtinPrograms {
		program, err := lib.Load(p.Name)
		if err != nil {
			return nil, err
		}
		if err := checkLayout(p, program); err != nil {
			return nil, err
		}
		s.programs[p.Name] = program
	}
	s.libraries = append(s.libraries, lib)
	return s, nil
}

func checkLayout(want, got *metadata.ShaderProgram) error {
	if len(want.Bindings) != len(got.Bindings) {
		return fmt.Errorf("shader %q declares %d bindings, the view binds %d", got.Name, len(got.Bindings), len(want.Bindings))
	}
	if got.PushConstantSize < want.PushConstantSize {
		return fmt.Errorf("shader %q has %d bytes of push constants, the view pushes %d", got.Name, got.PushConstantSize, want.PushConstantSize)
	}
	return nil
}

func (s *Shaders) Get(name string) *metadata.ShaderProgram {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.programs[name]
}

// Replace swaps a program after checking it keeps the layout of the one it
// replaces.
func (s *Shaders) Replace(program *metadata.ShaderProgram) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.programs[program.Name]
	if !ok {
		return fmt.Errorf("no view uses shader %q", program.Name)
	}
	if err := checkLayout(old, program); err != nil {
		return err
	}
	s.programs[program.Name] = program
	s.reloaded++
	return nil
}

// Reload reloads the named program from the library it was loaded from.
func (s *Shaders) Reload(name string) error {
	s.mu.RLock()
	libs := s.libraries
	s.mu.RUnlock()
	if len(libs) == 0 {
		return fmt.Errorf("shader %q was not loaded from disk", name)
	}
	program, err := libs[0].Load(name)
	if err != nil {
		return err
	}
	return s.Replace(program)
}

func (s *Shaders) Reloaded() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reloaded
}

func float32Bytes(values ...float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], m.Float32bits(v))
	}
	return out
}

func groups(size, group uint32) uint32 {
	return (size + group - 1) / group
}
