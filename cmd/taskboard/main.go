package main

import (
	"os"
	"strings"

	"taskboard/internal/cli"
)

func isTaskID(s string) bool {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"T-", "task-"} {
		if strings.HasPrefix(s, prefix) && len(s) > len(prefix) {
			return true
		}
	}
	return false
}

// rewriteTaskLookupArgs turns `taskboard <task-id>` into `taskboard tasks show <task-id>`.
//
// Cobra reads the first positional token as a subcommand, so argv is rewritten before
// parsing. Persistent flags may come first; unknown flags are skipped without consuming
// a value so the task id is never swallowed.
func rewriteTaskLookupArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--api":       true,
		"--token":     true,
		"--format":    true,
		"--project":   true,
		"--assignee":  true,
		"--q":         true,
		"--log-file":  true,
		"--log-level": true,
	}
	boolFlags := map[string]bool{
		"--pretty": true,
		"--touch":  true,
	}

	insertShow := func(at int) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:at]...)
		out = append(out, "tasks", "show")
		return append(out, argv[at:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		switch {
		case a == "":
			continue
		case a == "--":
			if i+1 < len(argv) && isTaskID(argv[i+1]) {
				return insertShow(i + 1)
			}
			return argv
		case strings.HasPrefix(a, "-"):
			if !strings.Contains(a, "=") && !boolFlags[a] && valueFlags[a] {
				i++
			}
			continue
		case isTaskID(a):
			return insertShow(i)
		default:
			return argv
		}
	}
	return argv
}

func main() {
	os.Args = rewriteTaskLookupArgs(os.Args)

	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
