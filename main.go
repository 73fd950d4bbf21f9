// Package main is the entry point for the news portal.
package main

import (
	"os"

	"newsportal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		cmd.PrintError(err)
		os.Exit(1)
	}
}
