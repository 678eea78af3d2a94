package cli

import (
	"errors"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"taskboard/internal/board"
	"taskboard/internal/format"
	"taskboard/internal/model"
	"taskboard/internal/stageutil"
)

type taskDetail struct {
	Task     model.Task      `json:"task"`
	Comments []model.Comment `json:"comments"`
}

type commentList []model.Comment

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Task commands",
	}

	cmd.AddCommand(newTasksListCmd(app))
	cmd.AddCommand(newTasksShowCmd(app))
	cmd.AddCommand(newTasksMoveCmd(app))
	cmd.AddCommand(newTasksEditCmd(app))
	cmd.AddCommand(newTasksCommentsCmd(app))

	return cmd
}

func newTasksListCmd(app *App) *cobra.Command {
	var status string
	var sortBy string
	var completed string
	var page int
	var pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks (flat, paged)",
		Example: strings.TrimSpace(`
taskboard tasks list --status todo
taskboard tasks list --sort due_date --completed=false
taskboard tasks list --sort -priority --page 2 --page-size 20
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := app.filter()
			f.Sort = strings.TrimSpace(sortBy)
			f.Page = page
			f.PageSize = pageSize
			if s := strings.TrimSpace(status); s != "" {
				stage, err := stageutil.Parse(s)
				if err != nil {
					return writeErr(cmd, err)
				}
				f.Status = stage
			}
			if s := strings.TrimSpace(completed); s != "" {
				b, err := strconv.ParseBool(s)
				if err != nil {
					return writeErr(cmd, errors.New("--completed must be true or false"))
				}
				f.Completed = &b
			}

			client, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := client.Tasks(app.context(cmd), f)
			if err != nil {
				return writeErr(cmd, err)
			}
			env := format.Envelope{
				Data: taskPage(res),
				Meta: map[string]any{"total": res.Total, "page": res.Page, "pageSize": res.PageSize},
			}
			if res.Page*res.PageSize < res.Total {
				env.Hints = []string{"next page: --page " + strconv.Itoa(res.Page+1)}
			}
			return writeOut(cmd, app, env)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only tasks in this stage")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort key (due_date|priority|title|created_at|updated_at; prefix - for descending)")
	cmd.Flags().StringVar(&completed, "completed", "", "true: only finished tasks; false: only open tasks")
	cmd.Flags().IntVar(&page, "page", 0, "Page number (1-based)")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Tasks per page")
	return cmd
}

func newTasksShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task with its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := app.context(cmd)
			t, err := client.Task(ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			cs, err := client.Comments(ctx, t.ID)
			if err != nil {
				return writeErr(cmd, err)
			}
			if cs == nil {
				cs = []model.Comment{}
			}
			return writeOut(cmd, app, format.Envelope{Data: taskDetail{Task: t, Comments: cs}})
		},
	}
}

func newTasksCommentsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "comments <task-id>",
		Short: "List a task's comments, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			cs, err := client.Comments(app.context(cmd), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if cs == nil {
				cs = []model.Comment{}
			}
			return writeOut(cmd, app, format.Envelope{Data: commentList(cs)})
		},
	}
}

func newTasksMoveCmd(app *App) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "move <task-id> <stage>",
		Short: "Move a task to another stage",
		Long: strings.TrimSpace(`
Move a task to another stage, the same way a drag on the board does.

Stages that need a reason (blocked) require --note; the note is stored as a comment.
`),
		Example: strings.TrimSpace(`
taskboard tasks move T-101 in_progress
taskboard tasks move T-101 "In Progress"
taskboard tasks move T-101 blocked --note "waiting on legal"
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := stageutil.Parse(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := app.openBoard(cmd, model.Filter{}, note)
			if err != nil {
				return writeErr(cmd, err)
			}
			from, t, err := s.task(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			d := board.Classify(board.Proposal{Task: t, From: from, To: to})
			if err := s.run(s.ctl.MoveTask(t.ID, to)); err != nil {
				return writeErr(cmd, err)
			}
			var hints []string
			if d == board.DecisionNoOp {
				hints = append(hints, "task was already in "+stageutil.Label(to))
			}
			return writeTaskChange(cmd, app, s, t.ID, from, d, hints)
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Reason for the move (required for blocked)")
	return cmd
}

func newTasksEditCmd(app *App) *cobra.Command {
	var status string
	var priority string
	var assign string
	var unassign bool
	var note string

	cmd := &cobra.Command{
		Use:   "edit <task-id>",
		Short: "Change a task's priority, assignee and/or stage",
		Example: strings.TrimSpace(`
taskboard tasks edit T-101 --priority urgent
taskboard tasks edit T-101 --assign ana
taskboard tasks edit T-101 --unassign --status blocked --note "owner left"
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch model.TaskPatch
			if s := strings.TrimSpace(status); s != "" {
				stage, err := stageutil.Parse(s)
				if err != nil {
					return writeErr(cmd, err)
				}
				patch.Status = &stage
			}
			if p := model.Priority(strings.ToLower(strings.TrimSpace(priority))); p != "" {
				if !p.Valid() {
					return writeErr(cmd, errors.New("invalid --priority (want low|medium|high|urgent)"))
				}
				patch.Priority = &p
			}
			switch a := strings.TrimSpace(assign); {
			case unassign && a != "":
				return writeErr(cmd, errors.New("--assign and --unassign are mutually exclusive"))
			case unassign:
				patch.Unassign = true
			case a != "":
				patch.AssignedTo = &a
			}
			if patch.IsEmpty() {
				return writeErr(cmd, errors.New("nothing to change (use --status, --priority, --assign or --unassign)"))
			}

			s, err := app.openBoard(cmd, model.Filter{}, note)
			if err != nil {
				return writeErr(cmd, err)
			}
			from, t, err := s.task(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			to := from
			if patch.Status != nil {
				to = *patch.Status
			}
			d := board.Classify(board.Proposal{Task: t, From: from, To: to})
			if n := strings.TrimSpace(note); n != "" && d != board.DecisionDeferred {
				patch.Comment = &n
			}
			if err := s.run(s.ctl.EditTask(t.ID, patch)); err != nil {
				return writeErr(cmd, err)
			}
			return writeTaskChange(cmd, app, s, t.ID, from, d, nil)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "New stage")
	cmd.Flags().StringVar(&priority, "priority", "", "New priority (low|medium|high|urgent)")
	cmd.Flags().StringVar(&assign, "assign", "", "Assign to this person")
	cmd.Flags().BoolVar(&unassign, "unassign", false, "Clear the assignee")
	cmd.Flags().StringVar(&note, "note", "", "Reason for the change (required when moving to blocked)")
	return cmd
}

func writeTaskChange(cmd *cobra.Command, app *App, s *boardSession, id string, from model.Stage, d board.Decision, hints []string) error {
	stage, t, err := s.task(id)
	if err != nil {
		return writeErr(cmd, err)
	}
	env := format.Envelope{
		Data:  taskText(t),
		Meta:  map[string]any{"from": from, "to": stage, "decision": d.String()},
		Hints: hints,
	}
	return writeOut(cmd, app, env)
}
