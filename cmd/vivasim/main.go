package main

import (
	"os"

	"github.com/vivasim/vivasim/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
