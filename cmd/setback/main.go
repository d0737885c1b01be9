package main

import (
	"os"

	"github.com/stridecoach/setback/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
