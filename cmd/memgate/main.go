package main

import (
	"os"

	"github.com/memgate/memgate/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
