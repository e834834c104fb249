// Package main provides the entry point for the webmondiag CLI.
package main

import (
	"fmt"
	"os"

	"github.com/webmondiag/webmondiag/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
