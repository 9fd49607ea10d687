// Package main provides the entry point for the studyrag CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/studyrag/cmd/studyrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
