// Package main is the entry point for the veld CLI.
package main

import (
	"fmt"
	"os"

	"github.com/go-veld/veld/cmd/veld/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
