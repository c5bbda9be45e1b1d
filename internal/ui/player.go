package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/dmm/internal/library"
	"github.com/desertthunder/dmm/internal/player"
	"github.com/desertthunder/dmm/internal/shared"
)

const (
	seekStep   = 5 * time.Second
	volumeStep = 0.1
)

// statusMsg carries one engine snapshot into the Elm loop.
type statusMsg player.Status

// engineDoneMsg signals that the engine closed its status channel.
type engineDoneMsg struct{}

// Model represents the player TUI state.
type Model struct {
	playlist *library.Playlist
	commands chan<- player.Command
	status   <-chan player.Status

	current player.Status
	binds   map[string]string
	bar     progress.Model
	help    help.Model
	helpKey []key.Binding
	width   int
}

// NewModel creates a player view wired to a running engine. binds maps
// key names to transport actions and normally comes straight from the
// music directory's configuration.
func NewModel(pl *library.Playlist, commands chan<- player.Command, status <-chan player.Status, binds map[string]string) *Model {
	if len(binds) == 0 {
		binds = shared.DefaultConfig().Keybinds
	}
	return &Model{
		playlist: pl,
		commands: commands,
		status:   status,
		binds:    binds,
		bar:      progress.New(progress.WithDefaultGradient()),
		help:     help.New(),
		helpKey:  helpBindings(binds),
	}
}

// helpBindings inverts the key->action map into display bindings,
// keeping a stable action order.
func helpBindings(binds map[string]string) []key.Binding {
	order := []struct{ action, label string }{
		{"toggle_pause", "play/pause"},
		{"next", "next"},
		{"previous", "previous"},
		{"shuffle", "shuffle"},
		{"repeat", "repeat"},
		{"seek_back", "seek -"},
		{"seek_forward", "seek +"},
		{"volume_up", "vol +"},
		{"volume_down", "vol -"},
		{"quit", "quit"},
	}

	keysFor := map[string][]string{}
	for k, action := range binds {
		keysFor[action] = append(keysFor[action], k)
	}

	var out []key.Binding
	for _, entry := range order {
		keys := keysFor[entry.action]
		if len(keys) == 0 {
			continue
		}
		out = append(out, key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], entry.label)))
	}
	return out
}

// Init starts listening for engine status.
func (m *Model) Init() tea.Cmd {
	return m.waitForStatus()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 8
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case statusMsg:
		m.current = player.Status(msg)
		return m, m.waitForStatus()

	case engineDoneMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	name := msg.String()
	if name == " " {
		name = "space"
	}
	if name == "ctrl+c" {
		m.send(player.Command{Kind: player.CmdQuit})
		return m, tea.Quit
	}

	switch m.binds[name] {
	case "toggle_pause":
		if m.current.State == player.Stopped {
			m.send(player.Command{Kind: player.CmdPlay})
		} else {
			m.send(player.Command{Kind: player.CmdTogglePause})
		}
	case "next":
		m.send(player.Command{Kind: player.CmdNext})
	case "previous":
		m.send(player.Command{Kind: player.CmdPrevious})
	case "shuffle":
		m.send(player.Command{Kind: player.CmdSetShuffle, On: !m.current.Shuffle})
	case "repeat":
		m.send(player.Command{Kind: player.CmdSetRepeat, Mode: nextRepeat(m.current.Repeat)})
	case "seek_back":
		m.send(player.Command{Kind: player.CmdSeek, Offset: m.current.Position - seekStep})
	case "seek_forward":
		m.send(player.Command{Kind: player.CmdSeek, Offset: m.current.Position + seekStep})
	case "volume_up":
		m.send(player.Command{Kind: player.CmdSetVolume, Level: m.current.Volume + volumeStep})
	case "volume_down":
		m.send(player.Command{Kind: player.CmdSetVolume, Level: m.current.Volume - volumeStep})
	case "quit":
		m.send(player.Command{Kind: player.CmdQuit})
		return m, tea.Quit
	}
	return m, nil
}

func nextRepeat(mode player.RepeatMode) player.RepeatMode {
	switch mode {
	case player.RepeatOff:
		return player.RepeatAll
	case player.RepeatAll:
		return player.RepeatSingle
	default:
		return player.RepeatOff
	}
}

// send issues a command without blocking the Elm loop.
func (m *Model) send(cmd player.Command) {
	select {
	case m.commands <- cmd:
	default:
	}
}

func (m *Model) waitForStatus() tea.Cmd {
	return func() tea.Msg {
		st, ok := <-m.status
		if !ok {
			return engineDoneMsg{}
		}
		return statusMsg(st)
	}
}

// View renders the now-playing screen.
func (m *Model) View() string {
	title := styles.title.Render(m.playlist.Name)

	var track string
	if m.current.Track.Name != "" {
		track = fmt.Sprintf("%s - %s", m.current.Track.Artist, m.current.Track.Name)
	} else {
		track = styles.help.Render("nothing playing")
	}

	position := fmt.Sprintf("%s / %s", clock(m.current.Position), clock(m.current.Duration))
	var percent float64
	if m.current.Duration > 0 {
		percent = float64(m.current.Position) / float64(m.current.Duration)
	}
	if percent > 1 {
		percent = 1
	}

	state := m.renderState()
	counter := fmt.Sprintf("track %d/%d", m.current.TrackIndex+1, m.current.TrackCount)
	flags := fmt.Sprintf("shuffle %s  repeat %s  volume %.0f%%",
		onOff(m.current.Shuffle), m.current.Repeat, m.current.Volume*100)

	return fmt.Sprintf("%s\n%s\n\n%s\n%s  %s\n\n%s %s\n\n%s\n",
		title, track,
		m.bar.ViewAs(percent),
		position, counter,
		state, flags,
		m.help.ShortHelpView(m.helpKey),
	)
}

func (m *Model) renderState() string {
	switch m.current.State {
	case player.Playing:
		return styles.ok.Render("▶ playing")
	case player.Paused:
		return styles.warn.Render("⏸ paused")
	case player.Loading, player.Seeking:
		return styles.warn.Render("… " + m.current.State.String())
	default:
		return styles.help.Render("■ stopped")
	}
}

func clock(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", m, s)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
