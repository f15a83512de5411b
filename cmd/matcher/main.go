// Package main provides the entry point for the matcher CLI.
package main

import (
	"fmt"
	"os"

	"go-catmat-matcher/internal/cli"
)

func main() {
	if err := cli.Execute(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
