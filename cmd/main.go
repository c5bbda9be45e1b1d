package main

import (
	"context"
	"os"

	"github.com/desertthunder/dmm/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	workDir, err := os.Getwd()
	if err != nil {
		logger.Fatalf("cannot determine working directory: %v", err)
	}

	runner := NewRunner(RunnerOpts{
		WorkDir: workDir,
		Logger:  logger,
	})

	app := &cli.Command{
		Name:     "dmm",
		Usage:    "Declarative music manager: define playlists, fetch tracks, play them",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("%v", err)
	}
}
