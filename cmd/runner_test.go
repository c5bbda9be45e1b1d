package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dmm/internal/library"
	"github.com/desertthunder/dmm/internal/shared"
	"github.com/urfave/cli/v3"
)

func newTestApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:     "dmm",
		Commands: r.register(),
	}
}

func scaffold(t *testing.T, dir string) {
	t.Helper()
	runner := NewRunner(RunnerOpts{WorkDir: dir, Output: &bytes.Buffer{}})
	app := newTestApp(runner)
	if err := app.Run(context.Background(), []string{"dmm", "init", "--yes", dir}); err != nil {
		t.Fatalf("init failed: %v", err)
	}
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			input := strings.NewReader("")

			runner := NewRunner(RunnerOpts{
				WorkDir: "/tmp/music",
				Logger:  logger,
				Output:  output,
				Input:   input,
			})

			if runner.workDir != "/tmp/music" {
				t.Error("expected workDir to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.input != input {
				t.Error("expected input to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()
		if len(commands) != 4 {
			t.Fatalf("expected 4 commands, got %d", len(commands))
		}
		names := map[string]bool{}
		for _, cmd := range commands {
			names[cmd.Name] = true
		}
		for _, want := range []string{"init", "download", "gc", "player"} {
			if !names[want] {
				t.Errorf("expected %q command to be registered", want)
			}
		}
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writePlain("hello %s", "world"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if output.String() != "hello world" {
			t.Errorf("expected 'hello world', got %q", output.String())
		}
	})

	t.Run("confirm", func(t *testing.T) {
		cases := []struct {
			input string
			want  bool
		}{
			{"y\n", true},
			{"Y\n", true},
			{"yes\n", true},
			{"n\n", false},
			{"\n", false},
			{"", false},
		}
		for _, tc := range cases {
			runner := NewRunner(RunnerOpts{
				Output: &bytes.Buffer{},
				Input:  strings.NewReader(tc.input),
			})
			if got := runner.confirm("proceed?"); got != tc.want {
				t.Errorf("confirm with input %q: expected %v, got %v", tc.input, tc.want, got)
			}
		}
	})

	t.Run("Init", func(t *testing.T) {
		t.Run("ScaffoldsTree", func(t *testing.T) {
			dir := t.TempDir()
			scaffold(t, dir)

			for _, rel := range []string{
				"dmm.toml", ".gitignore", "run", "sources", "playlists", "cache",
				"sources/yt-dlp.toml", "playlists/example.toml",
			} {
				if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
					t.Errorf("expected %s to exist: %v", rel, err)
				}
			}

			// the scaffold must resolve as a valid music directory
			lib, err := library.Resolve(dir)
			if err != nil {
				t.Fatalf("scaffolded directory should resolve: %v", err)
			}
			if len(lib.Playlists) != 1 {
				t.Errorf("expected 1 example playlist, got %d", len(lib.Playlists))
			}
		})

		t.Run("DeclinedPromptLeavesNothing", func(t *testing.T) {
			dir := t.TempDir()
			runner := NewRunner(RunnerOpts{
				WorkDir: dir,
				Output:  &bytes.Buffer{},
				Input:   strings.NewReader("n\n"),
			})
			app := newTestApp(runner)
			if err := app.Run(context.Background(), []string{"dmm", "init", dir}); err != nil {
				t.Fatalf("declined init should not error: %v", err)
			}
			if _, err := os.Stat(filepath.Join(dir, "dmm.toml")); !os.IsNotExist(err) {
				t.Error("declined init should not create config")
			}
		})

		t.Run("Idempotent", func(t *testing.T) {
			dir := t.TempDir()
			scaffold(t, dir)

			// hand-edited files survive a re-run
			playlist := filepath.Join(dir, "playlists", "example.toml")
			edited := []byte("name = \"Edited\"\n")
			if err := os.WriteFile(playlist, edited, 0644); err != nil {
				t.Fatal(err)
			}

			scaffold(t, dir)
			data, err := os.ReadFile(playlist)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != string(edited) {
				t.Error("re-running init must not overwrite existing files")
			}
		})
	})

	t.Run("resolvePlaylist", func(t *testing.T) {
		dir := t.TempDir()
		scaffold(t, dir)
		if err := os.Remove(filepath.Join(dir, "playlists", "example.toml")); err != nil {
			t.Fatal(err)
		}

		christmas := `name = "Christmas Songs"
import = ["yt-dlp"]
`
		summer := `name = "Summer Hits"
import = ["yt-dlp"]
`
		slow := `name = "Slow Jams"
import = ["yt-dlp"]
`
		for file, content := range map[string]string{
			"christmas.toml": christmas,
			"summer.toml":    summer,
			"slow.toml":      slow,
		} {
			if err := os.WriteFile(filepath.Join(dir, "playlists", file), []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
		}

		lib, err := library.Resolve(dir)
		if err != nil {
			t.Fatalf("failed to resolve library: %v", err)
		}

		t.Run("UniqueFragment", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			pl, err := runner.resolvePlaylist(lib, "xmas")
			if err != nil {
				t.Fatalf("expected unique match, got %v", err)
			}
			if pl.Name != "Christmas Songs" {
				t.Errorf("expected Christmas Songs, got %s", pl.Name)
			}
		})

		t.Run("AmbiguousConfirmed", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{
				Output: output,
				Input:  strings.NewReader("y\n"),
			})
			pl, err := runner.resolvePlaylist(lib, "s")
			if err != nil {
				t.Fatalf("confirmed ambiguous match should resolve, got %v", err)
			}
			if pl == nil {
				t.Fatal("expected a playlist")
			}
			if !strings.Contains(output.String(), "ambiguous") {
				t.Error("expected the candidates to be printed")
			}
		})

		t.Run("AmbiguousDeclined", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Output: &bytes.Buffer{},
				Input:  strings.NewReader("n\n"),
			})
			if _, err := runner.resolvePlaylist(lib, "s"); err == nil {
				t.Fatal("declined ambiguous match must fail, never auto-select")
			}
		})

		t.Run("NoMatch", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			if _, err := runner.resolvePlaylist(lib, "zzzzzz"); err == nil {
				t.Fatal("expected no-match error")
			}
		})
	})

	t.Run("Gc", func(t *testing.T) {
		t.Run("VerboseLowersLogLevel", func(t *testing.T) {
			dir := t.TempDir()
			scaffold(t, dir)

			logs := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{
				WorkDir: dir,
				Logger:  shared.NewLogger(logs),
				Output:  &bytes.Buffer{},
			})
			app := newTestApp(runner)
			if err := app.Run(context.Background(), []string{"dmm", "gc", "--verbose"}); err != nil {
				t.Fatalf("gc failed: %v", err)
			}
			if runner.logger.GetLevel() > log.DebugLevel {
				t.Error("expected --verbose to lower the log level to debug")
			}
		})
	})

	t.Run("Download", func(t *testing.T) {
		t.Run("MissingArgument", func(t *testing.T) {
			dir := t.TempDir()
			scaffold(t, dir)
			runner := NewRunner(RunnerOpts{WorkDir: dir, Output: &bytes.Buffer{}})
			app := newTestApp(runner)
			if err := app.Run(context.Background(), []string{"dmm", "download"}); err == nil {
				t.Fatal("download without an argument should fail")
			}
		})

		t.Run("OutsideMusicDirFails", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{WorkDir: t.TempDir(), Output: &bytes.Buffer{}})
			app := newTestApp(runner)
			if err := app.Run(context.Background(), []string{"dmm", "download", "all"}); err == nil {
				t.Fatal("download outside a music directory should fail")
			}
		})
	})
}
