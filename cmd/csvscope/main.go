// Package main provides the csvscope command.
package main

import (
	"os"

	"github.com/leapstack-labs/csvscope/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
