package main

import (
	"os"

	"github.com/ceyewan/flake/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
