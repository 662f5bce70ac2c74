//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for shelf using Mage.
//
// Usage:
//
//	mage build        Compile the shelf binary to bin/
//	mage install      Install shelf to GOPATH/bin
//	mage mock         Run the development admin API with sample data
//	mage test:all     Run every test
//	mage test:race    Run every test with the race detector
//	mage test:cover   Write a coverage profile to bin/
//	mage lint         Run golangci-lint
//	mage stats        Print Go lines of code
//	mage clean        Remove build artifacts
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "shelf"
	binaryDir  = "bin"
	cmdDir     = "./cmd/shelf"
)

// Build compiles the shelf binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
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

// Mock builds shelf and runs the development admin API on :8080 with the
// sample catalogue in bin/data. SHELF_ADMIN_PASSWORD defaults to "admin".
func Mock() error {
	mg.Deps(Build)
	env := map[string]string{}
	if os.Getenv("SHELF_ADMIN_PASSWORD") == "" {
		env["SHELF_ADMIN_PASSWORD"] = "admin"
	}
	return sh.RunWithV(env, filepath.Join(binaryDir, binaryName), "serve-mock",
		"--seed",
		"--data-dir", filepath.Join(binaryDir, "data"),
		"--admin-email", "admin@example.com",
	)
}
