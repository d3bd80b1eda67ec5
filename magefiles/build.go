//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the showcase project using Mage.
//
// Usage:
//
//	mage build       Compile the showcase binary to bin/
//	mage test:all    Run every test with the race detector
//	mage test:unit   Run tests in short mode (no filesystem watchers)
//	mage test:cover  Write coverage.out and print the total
//	mage lint        Check gofmt, go vet and golangci-lint
//	mage clean       Remove build artifacts
//	mage install     Install showcase to GOPATH/bin
//	mage stats       Print Go LOC and documentation word counts
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "showcase"
	binaryDir  = "bin"
	cmdDir     = "./cmd/showcase"
	versionVar = "github.com/mesh-intelligence/showcase/internal/cli.Version"
)

// Build compiles the showcase binary to bin/. SHOWCASE_VERSION, when set,
// is stamped into the binary.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v", "-o", filepath.Join(binaryDir, binaryName)}
	if v := os.Getenv("SHOWCASE_VERSION"); v != "" {
		args = append(args, "-ldflags", "-X "+versionVar+"="+v)
	}
	return sh.RunV(binGo, append(args, cmdDir)...)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	if err := os.Remove(coverProfile); err != nil && !os.IsNotExist(err) {
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
