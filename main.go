package main

import (
	"os"

	"github.com/brevera/stackmatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
