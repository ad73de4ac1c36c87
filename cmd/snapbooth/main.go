// Package main is the entry point for the snapbooth daemon.
package main

import (
	"os"

	"github.com/snapbooth/snapbooth/cmd/snapbooth/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
