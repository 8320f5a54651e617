package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the interview room key bindings.
type KeyMap struct {
	Answer      key.Binding
	ToggleMic   key.Binding
	ToggleCam   key.Binding
	ScreenShare key.Binding
	ReactThumb  key.Binding
	ReactClap   key.Binding
	ReactHeart  key.Binding
	End         key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Answer: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "answer"),
		),
		ToggleMic: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mic"),
		),
		ToggleCam: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "camera"),
		),
		ScreenShare: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "share screen"),
		),
		ReactThumb: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "👍"),
		),
		ReactClap: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "👏"),
		),
		ReactHeart: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "❤️"),
		),
		End: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "end interview"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the status bar bindings.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Answer, k.ToggleMic, k.ToggleCam, k.ScreenShare, k.End}
}
