package main

import (
	"fmt"
	"os"
)

// Injected at build time via -ldflags; defaults to "dev".
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
