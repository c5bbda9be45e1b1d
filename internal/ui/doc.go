// Package ui implements the terminal player interface using bubbletea's Elm architecture.
//
// The [Model] renders a single now-playing view: track metadata, a
// seek bar built on charmbracelet/bubbles/progress, and the transport
// indicators (state, shuffle, repeat, volume). Key bindings come from
// the music directory's configuration, so the displayed help always
// matches what the keys actually do.
//
// Status snapshots flow in from the playback engine's status channel;
// key presses flow out as engine commands. The model never touches the
// transport state directly, keeping all transitions serialized in the
// engine's control loop.
package ui
