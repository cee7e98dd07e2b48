// Package main is the entry point for the versus CLI.
package main

import (
	"os"

	"github.com/versusfit/versus/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
