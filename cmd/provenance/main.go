// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command provenance scores source code for signs of machine generation.
//
// Usage:
//
//	provenance detect path/to/file.py
//	cat file.py | provenance detect -
//	provenance batch a.py b.py c.py
//	provenance serve --addr :8080
//	provenance config
//
// Configuration comes from defaults, an optional YAML file (--config) and
// PROVENANCE_* environment variables, in that order. A .env file in the
// working directory is loaded first when present.
//
// Exit codes:
//
//	0  every submission scored CLEAN or LOW
//	1  at least one submission was judged AI-generated
//	2  usage, configuration or detection error
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
)

// Exit codes.
const (
	exitClean = 0
	exitAI    = 1
	exitError = 2
)

// exitCodeError carries a non-zero exit code without an error message.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()

	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	return execute(os.Stdin, os.Stdout, os.Stderr, args)
}

// execute runs the command tree and maps its outcome to an exit code.
func execute(stdin io.Reader, stdout, stderr io.Writer, args []string) int {
	cmd := newRootCmd(stdin, stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return exitClean
	}
	var ec *exitCodeError
	if errors.As(err, &ec) {
		return ec.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitError
}
