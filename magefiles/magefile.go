//go:build mage

// Package main provides build targets for unisql using Mage.
//
// Usage:
//
//	mage build          Compile the unisql binary to bin/
//	mage buildCGO       Compile with the mattn/go-sqlite3 driver linked in
//	mage test:all       Run all tests
//	mage test:race      Run all tests with the race detector
//	mage test:cgo       Run all tests with the cgo_sqlite tag
//	mage generate       Regenerate mocks
//	mage lint           Run golangci-lint
//	mage clean          Remove build artifacts
//	mage install        Install unisql to GOPATH/bin
//	mage stats          Print Go lines of code per package
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "unisql"
	binaryDir  = "bin"
	cmdDir     = "./cmd/unisql"
	cgoTag     = "cgo_sqlite"
)

// Test groups test targets.
type Test mg.Namespace

func build(extra ...string) error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := append([]string{"build", "-v"}, extra...)
	args = append(args, "-o", filepath.Join(binaryDir, binaryName), cmdDir)
	return sh.RunV(binGo, args...)
}

// Build compiles the unisql binary to bin/ with the pure-Go driver.
func Build() error {
	return build()
}

// BuildCGO compiles the binary with the cgo driver linked in.
func BuildCGO() error {
	return sh.RunWithV(map[string]string{"CGO_ENABLED": "1"}, binGo,
		"build", "-v", "-tags", cgoTag, "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// All runs every test.
func (Test) All() error {
	return sh.RunV(binGo, "test", "./...")
}

// Race runs every test with the race detector.
func (Test) Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Cgo runs every test with the cgo driver linked in.
func (Test) Cgo() error {
	return sh.RunWithV(map[string]string{"CGO_ENABLED": "1"}, binGo, "test", "-tags", cgoTag, "./...")
}

// Generate runs go generate, which regenerates the driver mocks.
func Generate() error {
	return sh.RunV(binGo, "generate", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
