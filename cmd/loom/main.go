// Package main is the loom entry point.
package main

import (
	"fmt"
	"os"

	"loom/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
