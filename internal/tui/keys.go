package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Left      key.Binding
	Right     key.Binding
	Up        key.Binding
	Down      key.Binding
	MovePrev  key.Binding
	MoveNext  key.Binding
	SetStage  key.Binding
	Priority  key.Binding
	Unassign  key.Binding
	Detail    key.Binding
	Refresh   key.Binding
	Cancel    key.Binding
	Help      key.Binding
	Quit      key.Binding
	SubmitMsg key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Left:      key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "prev column")),
		Right:     key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "next column")),
		Up:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		MovePrev:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "move to prev stage")),
		MoveNext:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "move to next stage")),
		SetStage:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "set stage")),
		Priority:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "cycle priority")),
		Unassign:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unassign")),
		Detail:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		SubmitMsg: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.MoveNext, k.SetStage, k.Detail, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.MovePrev, k.MoveNext, k.SetStage},
		{k.Priority, k.Unassign, k.Detail},
		{k.Refresh, k.Cancel, k.Help, k.Quit},
	}
}
