package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"taskboard/internal/board"
	"taskboard/internal/model"
)

// Config configures the interactive board.
type Config struct {
	Filter model.Filter
	Logger logrus.FieldLogger
	// Touch uses press-and-hold activation instead of distance-based activation.
	Touch   bool
	Context context.Context
	Now     func() time.Time
}

// Run opens the board for auth and blocks until the user quits.
func Run(auth board.Authority, cfg Config) error {
	applyThemePreference()
	applyColorProfilePreference()

	m := newAppModel(auth, cfg)
	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()}
	if cfg.Context != nil {
		opts = append(opts, tea.WithContext(cfg.Context))
	}
	_, err := tea.NewProgram(m, opts...).Run()
	return err
}
