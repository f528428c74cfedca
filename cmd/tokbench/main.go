package main

import (
	"os"

	"github.com/shivanshkc/tokbench/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
