//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

const shaderDir = "assets/shaders"

// Compiles every GLSL stage under assets/shaders to SPIR-V next to it.
func (Build) Shaders() error {
	return buildShaders()
}

// Compiles the shaders and builds the framegraph binary.
func (Build) All() error {
	mg.Deps(Build.Shaders)
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/framegraph", "."), withStream()); err != nil {
		return err
	}
	return nil
}

func buildShaders() error {
	var sources []string
	for _, ext := range []string{"vert", "geom", "frag", "comp"} {
		matches, err := filepath.Glob(filepath.Join(shaderDir, "*."+ext))
		if err != nil {
			return err
		}
		sources = append(sources, matches...)
	}
	for _, src := range sources {
		// fxaa.frag -> fxaa.frag.spv, the name the shader loader expects
		out := src + ".spv"
		if _, err := executeCmd("glslc", withArgs(src, "-o", out), withStream()); err != nil {
			return err
		}
	}
	if len(sources) == 0 {
		fmt.Printf("No shaders found in %s\n", shaderDir)
	}
	return nil
}
