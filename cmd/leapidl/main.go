// Package main provides the leapidl command.
package main

import (
	"os"

	"github.com/leapstack-labs/leapidl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
