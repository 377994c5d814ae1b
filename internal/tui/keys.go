package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Left, Right, Up, Down key.Binding

	Move     key.Binding
	Open     key.Binding
	Cancel   key.Binding
	Reload   key.Binding
	Product  key.Binding
	Mile     key.Binding
	Assignee key.Binding
	Filter   key.Binding
	Backlog  key.Binding
	Comments key.Binding
	AutoRef  key.Binding
	Mine     key.Binding
	Watching key.Binding
	Login    key.Binding
	New      key.Binding
	CopyURL  key.Binding
	OpenURL  key.Binding
	Dismiss  key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "column")),
		Right:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "column")),
		Up:       key.NewBinding(key.WithKeys("up", "k", "ctrl+p"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j", "ctrl+n"), key.WithHelp("↓/j", "down")),
		Move:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pick up/drop")),
		Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Cancel:   key.NewBinding(key.WithKeys("esc", "ctrl+g"), key.WithHelp("esc", "cancel")),
		Reload:   key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh")),
		Product:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "product")),
		Mile:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "milestone")),
		Assignee: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "assignee")),
		Filter:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Backlog:  key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "backlog")),
		Comments: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "comment counts")),
		AutoRef:  key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "auto refresh")),
		Mine:     key.NewBinding(key.WithKeys("M"), key.WithHelp("M", "my bugs")),
		Watching: key.NewBinding(key.WithKeys("I"), key.WithHelp("I", "interested")),
		Login:    key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "log in/out")),
		New:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new bug")),
		CopyURL:  key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy link")),
		OpenURL:  key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open in browser")),
		Dismiss:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp and FullHelp satisfy help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Move, k.Open, k.New, k.Reload, k.Product, k.Mile, k.Filter, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down, k.Move, k.Open, k.Cancel},
		{k.Product, k.Mile, k.Assignee, k.Filter, k.Backlog, k.Reload},
		{k.Mine, k.Watching, k.Comments, k.AutoRef, k.Login, k.New},
		{k.CopyURL, k.OpenURL, k.Dismiss, k.Help, k.Quit},
	}
}
