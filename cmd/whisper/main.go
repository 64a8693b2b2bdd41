package main

import (
	"os"

	"github.com/avelkaya/whisperline/internal/buildinfo"
	"github.com/avelkaya/whisperline/internal/client/cli"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
