// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for Deckhand.
//
// Usage:
//
//	go run . [flags]
//	./deckhand [flags]
//
// This launches the Deckhand CLI. See --help for options.
package main

import (
	"fmt"
	"os"

	"github.com/toeirei/deckhand/ui/cli"
)

// main is the entrypoint for the Deckhand CLI. Exit codes: 0 on success,
// 2 when a run completed with a partial outcome, 1 on any failure.
func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if cli.IsPartial(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
