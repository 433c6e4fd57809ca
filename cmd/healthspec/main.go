// Package main provides the healthspec CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/healthspec-ai/healthspec/cmd/healthspec/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
