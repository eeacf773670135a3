//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs the unit tests of every package.
func (Test) Unit() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}

// Runs the tests with coverage into coverage.out.
func (Test) Cover() error {
	_, err := executeCmd("go", withArgs("test", "-coverprofile=coverage.out", "./..."), withStream())
	return err
}
