// Package main provides the entry point for the operator CLI.
package main

import (
	"fmt"
	"os"

	"github.com/untra/operator-go/cmd/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
