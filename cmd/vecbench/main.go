// Package main is the vecbench entry point.
package main

import (
	"os"

	"github.com/Aman-CERP/vecbench/cmd/vecbench/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
