package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/dmm/internal/library"
	"github.com/desertthunder/dmm/internal/shared"
	"github.com/urfave/cli/v3"
)

const gitignoreContent = `run/
cache/
`

const exampleSource = `name = "yt-dlp"
format = "mp3"

[kind.shell]
cmd = "yt-dlp"
args = ["-x", "--audio-format", "mp3", "-o", "${output}", "${input}"]
`

const examplePlaylist = `name = "Example Playlist"
import = ["yt-dlp"]

[[tracks]]
src = "yt-dlp"
input = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

[tracks.meta]
name = "Never Gonna Give You Up"
artist = "Rick Astley"
`

// initCommand scaffolds a new music directory.
func initCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Scaffold a music directory with an example source and playlist",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "path",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip the confirmation prompt",
			},
		},
		Action: r.Init,
	}
}

// Init creates the music directory tree, configuration and example
// declarations after an explicit confirmation.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		path = r.workDir
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.workDir, path)
	}

	if !cmd.Bool("yes") && !r.confirm(fmt.Sprintf("Initialize music directory at %s?", path)) {
		r.writePlainln("aborted")
		return nil
	}

	dirs := library.DirectoriesFromRoot(path)
	if err := dirs.Create(); err != nil {
		return fmt.Errorf("failed to create directory tree: %w", err)
	}

	configPath := filepath.Join(path, shared.ConfigFileName)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	files := map[string]string{
		filepath.Join(path, ".gitignore"):             gitignoreContent,
		filepath.Join(dirs.Sources, "yt-dlp.toml"):    exampleSource,
		filepath.Join(dirs.Playlists, "example.toml"): examplePlaylist,
	}
	for file, content := range files {
		if _, err := os.Stat(file); err == nil {
			continue
		}
		if err := os.WriteFile(file, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", filepath.Base(file), err)
		}
	}

	r.logger.Info("music directory initialized", "path", path)
	r.writePlainln("Initialized music directory at %s", path)
	return nil
}
