// ./main.go
package main

import (
	"github.com/varga-labs/sherpa-cli/cmd"
)

// main is the entry point for the Sherpa CLI application.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
