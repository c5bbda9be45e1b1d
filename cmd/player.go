package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/dmm/internal/player"
	"github.com/desertthunder/dmm/internal/shared"
	"github.com/desertthunder/dmm/internal/ui"
	"github.com/urfave/cli/v3"
)

// playerCommand launches the interactive player for one playlist.
func playerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "player",
		Aliases: []string{"play"},
		Usage:   "Play a downloaded playlist in the terminal",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "playlist",
			},
		},
		Action: r.Player,
	}
}

// Player resolves the playlist fragment, starts the playback engine
// and hands the terminal to the TUI until the user quits.
func (r *Runner) Player(ctx context.Context, cmd *cli.Command) error {
	fragment := cmd.StringArg("playlist")
	if fragment == "" {
		return fmt.Errorf("%w: expected a playlist name", shared.ErrMissingArgument)
	}

	lib, err := r.resolveLibrary()
	if err != nil {
		return err
	}
	pl, err := r.resolvePlaylist(lib, fragment)
	if err != nil {
		return err
	}
	if len(pl.Tracks) == 0 {
		return fmt.Errorf("%w: %q has no tracks", shared.ErrPlaylistNotFound, pl.Name)
	}

	// Redirect logs to the run directory so they don't corrupt the TUI
	fileLogger, err := shared.NewFileLogger(lib.Dirs.RunFile("player.log"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(shared.WithLogger(fileLogger, "playlist", pl.Name))

	engine, err := player.NewEngine(lib, pl, r.logger)
	if err != nil {
		return err
	}

	engineCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	engineErr := make(chan error, 1)
	go func() {
		engineErr <- engine.Run(engineCtx)
	}()

	model := ui.NewModel(pl, engine.Commands(), engine.Status(), lib.Config.Keybinds)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		cancel()
		<-engineErr
		return fmt.Errorf("error running player: %w", err)
	}

	cancel()
	if err := <-engineErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
