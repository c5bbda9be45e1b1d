package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dmm/internal/library"
	"github.com/desertthunder/dmm/internal/match"
	"github.com/desertthunder/dmm/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	workDir string
	logger  *log.Logger
	output  io.Writer
	input   io.Reader
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	WorkDir string
	Logger  *log.Logger
	Output  io.Writer
	Input   io.Reader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	return &Runner{
		workDir: opts.WorkDir,
		logger:  opts.Logger,
		output:  opts.Output,
		input:   opts.Input,
	}
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		initCommand, downloadCommand, gcCommand, playerCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// resolveLibrary loads the music directory active in the runner's
// working directory, honoring a link file redirect.
func (r *Runner) resolveLibrary() (*library.Library, error) {
	root, err := shared.ResolveMusicDir(r.workDir)
	if err != nil {
		return nil, err
	}
	return library.Resolve(root)
}

// resolvePlaylist matches a name fragment against the library's
// playlists. An ambiguous match asks for confirmation of the best
// candidate and fails if it is declined.
func (r *Runner) resolvePlaylist(lib *library.Library, fragment string) (*library.Playlist, error) {
	m := match.Resolve(fragment, lib.PlaylistNames())
	switch m.Kind {
	case match.Unique:
		return lib.FindPlaylist(m.Name)
	case match.Ambiguous:
		r.writePlainln("%q is ambiguous:", fragment)
		for _, name := range m.Candidates {
			r.writePlain("  %s\n", name)
		}
		if r.confirm(fmt.Sprintf("Did you mean %q?", m.Candidates[0])) {
			return lib.FindPlaylist(m.Candidates[0])
		}
		return nil, fmt.Errorf("%w: %q", shared.ErrAmbiguousPlaylist, fragment)
	default:
		return nil, fmt.Errorf("%w: no playlist matches %q", shared.ErrPlaylistNotFound, fragment)
	}
}

// confirm prints a y/N prompt and reads one line of input. Anything
// but an explicit yes declines.
func (r *Runner) confirm(prompt string) bool {
	r.writePlain("%s [y/N] ", prompt)
	scanner := bufio.NewScanner(r.input)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
