// Package main provides the entry point for the acpthread CLI.
package main

import (
	"fmt"
	"os"

	"github.com/opencode-ai/acpthread/cmd/acpthread/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
