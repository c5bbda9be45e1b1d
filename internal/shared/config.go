package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

//go:embed dmm.example.toml
var exampleConf []byte

// ConfigFileName is the per-directory configuration file read from the
// root of a music directory.
const ConfigFileName = "dmm.toml"

// LinkFileName is the optional override file read from the working
// directory to redirect the active music directory.
const LinkFileName = ".dmm-link.toml"

// Config represents a music directory's configuration loaded from dmm.toml.
type Config struct {
	PlayOnStart bool              `toml:"play_on_start"`
	Download    DownloadConfig    `toml:"download"`
	Player      PlayerConfig      `toml:"player"`
	Keybinds    map[string]string `toml:"keybinds"`
}

// DownloadConfig contains fetch batch settings.
type DownloadConfig struct {
	Workers          int     `toml:"workers"`
	FetchTimeoutSecs int     `toml:"fetch_timeout_secs"`
	FetchRate        float64 `toml:"fetch_rate"`
}

// PlayerConfig contains playback session settings.
type PlayerConfig struct {
	Volume   float64 `toml:"volume"`
	BufferMs int     `toml:"buffer_ms"`
}

// Link redirects the active music directory when a .dmm-link.toml file
// is present in the working directory.
type Link struct {
	MusicDirectory string `toml:"music_directory"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a dmm.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ResolveMusicDir returns the active music directory for the given
// working directory.
//
// A .dmm-link.toml file containing a music_directory field redirects
// the lookup; otherwise the working directory itself is used. The
// returned path is absolute.
func ResolveMusicDir(workDir string) (string, error) {
	linkPath := filepath.Join(workDir, LinkFileName)
	if data, err := os.ReadFile(linkPath); err == nil {
		var link Link
		if err := toml.Unmarshal(data, &link); err != nil {
			return "", fmt.Errorf("%w: bad link file %s: %v", ErrInvalidConfig, linkPath, err)
		}
		if link.MusicDirectory == "" {
			return "", fmt.Errorf("%w: link file %s has no music_directory", ErrInvalidConfig, linkPath)
		}
		dir := link.MusicDirectory
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(workDir, dir)
		}
		return filepath.Abs(dir)
	}

	return filepath.Abs(workDir)
}
