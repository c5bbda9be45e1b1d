package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Download.Workers != 4 {
			t.Errorf("expected 4 download workers, got %d", config.Download.Workers)
		}

		if config.Download.FetchTimeoutSecs != 300 {
			t.Errorf("expected fetch timeout 300s, got %d", config.Download.FetchTimeoutSecs)
		}

		if config.Player.Volume != 1.0 {
			t.Errorf("expected volume 1.0, got %f", config.Player.Volume)
		}

		if config.Keybinds["space"] != "toggle_pause" {
			t.Errorf("expected space bound to toggle_pause, got %s", config.Keybinds["space"])
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, ConfigFileName)

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Download.Workers != defaultConfig.Download.Workers {
			t.Errorf("created config workers doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, ConfigFileName)

		testConfig := `play_on_start = false

[download]
workers = 8
fetch_timeout_secs = 60
fetch_rate = 2.5

[player]
volume = 0.5
buffer_ms = 100
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Download.Workers != 8 {
			t.Errorf("expected 8 workers, got %d", config.Download.Workers)
		}

		if config.Player.Volume != 0.5 {
			t.Errorf("expected volume 0.5, got %f", config.Player.Volume)
		}

		// fields absent from the file keep their embedded defaults
		if config.Keybinds["q"] != "quit" {
			t.Errorf("expected default keybind for q, got %s", config.Keybinds["q"])
		}
	})
}

func TestResolveMusicDir(t *testing.T) {
	t.Run("NoLinkFile", func(t *testing.T) {
		tmpDir := t.TempDir()

		dir, err := ResolveMusicDir(tmpDir)
		if err != nil {
			t.Fatalf("failed to resolve music dir: %v", err)
		}

		if dir != tmpDir {
			t.Errorf("expected %s, got %s", tmpDir, dir)
		}
	})

	t.Run("LinkRedirect", func(t *testing.T) {
		workDir := t.TempDir()
		musicDir := t.TempDir()

		link := "music_directory = \"" + musicDir + "\"\n"
		if err := os.WriteFile(filepath.Join(workDir, LinkFileName), []byte(link), 0644); err != nil {
			t.Fatalf("failed to write link file: %v", err)
		}

		dir, err := ResolveMusicDir(workDir)
		if err != nil {
			t.Fatalf("failed to resolve music dir: %v", err)
		}

		if dir != musicDir {
			t.Errorf("expected redirect to %s, got %s", musicDir, dir)
		}
	})

	t.Run("EmptyLinkFails", func(t *testing.T) {
		workDir := t.TempDir()

		if err := os.WriteFile(filepath.Join(workDir, LinkFileName), []byte(""), 0644); err != nil {
			t.Fatalf("failed to write link file: %v", err)
		}

		if _, err := ResolveMusicDir(workDir); err == nil {
			t.Error("empty link file should fail to resolve")
		}
	})
}
