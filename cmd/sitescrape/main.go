// Package main is the entry point for the sitescrape CLI.
package main

import (
	"os"

	"github.com/jmylchreest/sitescrape/cmd/sitescrape/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
