//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed on the headless device.
func (Run) Demo() error {
	fmt.Println("Run demo...")
	if _, err := executeCmd("go", withArgs("run", ".", "run", "--frames", "600"), withStream()); err != nil {
		return err
	}
	return nil
}

// Compiles the shaders and runs the testbed on the Vulkan device.
func (Run) Vulkan() error {
	mg.Deps(Build.Shaders)
	if _, err := executeCmd("go", withArgs("run", ".", "run", "--backend", "vulkan", "--shaders", shaderDir, "--validation"), withStream()); err != nil {
		return err
	}
	return nil
}

// Prints the barrier plan of the built-in views.
func (Run) Plan() error {
	_, err := executeCmd("go", withArgs("run", ".", "plan"), withStream())
	return err
}
