package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"taskboard/internal/board"
	"taskboard/internal/format"
	"taskboard/internal/model"
)

type boardPayload struct {
	Columns []board.Column `json:"columns"`
	Summary model.Summary  `json:"summary"`
	Alerts  []string       `json:"alerts"`
}

func newBoardCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Board commands",
	}
	cmd.AddCommand(newBoardShowCmd(app))
	return cmd
}

func newBoardShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the board grouped by stage",
		Example: strings.TrimSpace(`
taskboard board show
taskboard board show --project proj-web --format text
taskboard board show --assignee none
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openBoard(cmd, app.filter(), "")
			if err != nil {
				return writeErr(cmd, err)
			}
			v := s.ctl.View()
			alerts := v.Alerts
			if alerts == nil {
				alerts = []string{}
			}
			return writeOut(cmd, app, format.Envelope{
				Data: boardPayload{Columns: v.Board.Columns, Summary: v.Board.Summary, Alerts: alerts},
				Meta: filterMeta(v.Filter),
			})
		},
	}
}

func filterMeta(f model.Filter) map[string]any {
	meta := map[string]any{}
	for k, vs := range f.Values() {
		if len(vs) > 0 {
			meta[k] = vs[0]
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return map[string]any{"filter": meta}
}
