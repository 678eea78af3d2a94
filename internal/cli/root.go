package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskboard/internal/authority"
	"taskboard/internal/format"
	"taskboard/internal/model"
	"taskboard/internal/tui"
)

type App struct {
	API        string
	Token      string
	PrettyJSON bool
	Format     string

	ProjectID  string
	AssignedTo string
	Query      string

	LogFile  string
	LogLevel string

	touch bool

	log     *logrus.Logger
	logFile io.Closer
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "taskboard",
		Short:        "Task board client (TUI + scriptable commands) and reference server",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive board against a local server
  taskboard --api http://127.0.0.1:3340

  # Run the reference server with demo data
  taskboard serve --seed

  # Scriptable commands
  taskboard board show --project proj-web
  taskboard tasks move T-101 in_progress
  taskboard tasks move T-101 blocked --note "waiting on legal"

  # Direct task lookup (shortcut for: taskboard tasks show <task-id>)
  taskboard T-101
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive board.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setupLogging(cmd.ErrOrStderr())
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if app.logFile != nil {
			return app.logFile.Close()
		}
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.API, "api", envOr("TASKBOARD_API", "http://127.0.0.1:3340"), "Task authority base URL")
	cmd.PersistentFlags().StringVar(&app.Token, "token", envOr("TASKBOARD_TOKEN", ""), "Bearer token for the task authority")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON/EDN output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("TASKBOARD_FORMAT", "json"), "Output format ("+strings.Join(format.Formats, "|")+")")
	cmd.PersistentFlags().StringVar(&app.ProjectID, "project", envOr("TASKBOARD_PROJECT", ""), "Only show tasks of this project id")
	cmd.PersistentFlags().StringVar(&app.AssignedTo, "assignee", "", "Only show tasks assigned to this person (\"none\" for unassigned)")
	cmd.PersistentFlags().StringVar(&app.Query, "q", "", "Only show tasks whose title or description contains this text")
	cmd.PersistentFlags().StringVar(&app.LogFile, "log-file", envOr("TASKBOARD_LOG", ""), "Append logs to this file (TUI logs are discarded otherwise)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("TASKBOARD_LOG_LEVEL", "warn"), "Log level (debug|info|warn|error)")

	cmd.Flags().BoolVar(&app.touch, "touch", envOr("TASKBOARD_TOUCH", "") != "", "Press-and-hold to start drags (touch screens)")

	cmd.AddCommand(newBoardCmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newServeCmd(app))

	return cmd
}

func runTUI(cmd *cobra.Command, app *App) error {
	client, err := app.client()
	if err != nil {
		return writeErr(cmd, err)
	}
	if app.logFile == nil {
		app.log.SetOutput(io.Discard)
	}
	return tui.Run(client, tui.Config{
		Filter:  app.filter(),
		Logger:  app.log,
		Touch:   app.touch,
		Context: cmd.Context(),
	})
}

func (app *App) client() (*authority.Client, error) {
	return authority.New(app.API,
		authority.WithToken(app.Token),
		authority.WithLogger(app.log),
	)
}

func (app *App) filter() model.Filter {
	return model.Filter{
		ProjectID:  strings.TrimSpace(app.ProjectID),
		AssignedTo: strings.TrimSpace(app.AssignedTo),
		Query:      strings.TrimSpace(app.Query),
	}
}

// setupLogging sends logs to --log-file when set. Without it the logger writes to stderr
// for commands and is silenced for the full-screen board.
func (app *App) setupLogging(stderr io.Writer) error {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(strings.TrimSpace(app.LogLevel))
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	l.SetLevel(lvl)
	l.SetOutput(stderr)

	if p := strings.TrimSpace(app.LogFile); p != "" {
		f, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		l.SetOutput(f)
		l.SetFormatter(&logrus.JSONFormatter{})
		app.logFile = f
	}
	app.log = l
	return nil
}

func (app *App) context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
