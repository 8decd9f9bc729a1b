// Package main provides the entry point for the amanvis CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/amanvis/cmd/amanvis/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
