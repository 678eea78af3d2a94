package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"taskboard/internal/model"
)

// Plain-text renderings for --format text. No colors: the output is meant for pipes and
// terminals alike.

type taskPage model.TaskPage

type taskText model.Task

func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style { return lipgloss.NewStyle().PaddingRight(2) })
	return t.String()
}

func taskRow(t model.Task) []string {
	due := t.DueDate
	if due == "" {
		due = "-"
	}
	who := t.Assignee()
	if who == "" {
		who = "(unassigned)"
	}
	return []string{t.ID, string(t.Priority), due, who, t.Title}
}

var taskHeaders = []string{"ID", "PRIORITY", "DUE", "ASSIGNEE", "TITLE"}

func (p boardPayload) Text() string {
	var b strings.Builder
	for i, c := range p.Columns {
		if i > 0 {
			b.WriteString("\n")
		}
		head := fmt.Sprintf("%s (%d)", c.Label, c.Count)
		if c.OverdueCount > 0 {
			head = fmt.Sprintf("%s (%d, %d overdue)", c.Label, c.Count, c.OverdueCount)
		}
		b.WriteString(head + "\n")
		if len(c.Tasks) == 0 {
			b.WriteString("  (empty)\n")
			continue
		}
		rows := make([][]string, 0, len(c.Tasks))
		for _, t := range c.Tasks {
			rows = append(rows, taskRow(t))
		}
		b.WriteString(renderTable(taskHeaders, rows) + "\n")
	}
	if len(p.Alerts) > 0 {
		b.WriteString("\n" + strings.Join(p.Alerts, " · ") + "\n")
	}
	return b.String()
}

func (p taskPage) Text() string {
	if len(p.Tasks) == 0 {
		return "No tasks."
	}
	rows := make([][]string, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		r := taskRow(t)
		rows = append(rows, []string{r[0], string(t.Status), r[1], r[2], r[3], r[4]})
	}
	headers := []string{"ID", "STATUS", "PRIORITY", "DUE", "ASSIGNEE", "TITLE"}
	first := (p.Page-1)*p.PageSize + 1
	return renderTable(headers, rows) + fmt.Sprintf("\n%d-%d of %d", first, first+len(p.Tasks)-1, p.Total)
}

func (t taskText) Text() string {
	return taskDetail{Task: model.Task(t)}.Text()
}

func (d taskDetail) Text() string {
	t := d.Task
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", t.ID, t.Title)
	fmt.Fprintf(&b, "status:   %s\n", t.Status)
	fmt.Fprintf(&b, "priority: %s\n", t.Priority)
	if t.DueDate != "" {
		fmt.Fprintf(&b, "due:      %s\n", t.DueDate)
	}
	who := t.Assignee()
	if who == "" {
		who = "(unassigned)"
	}
	fmt.Fprintf(&b, "assignee: %s\n", who)
	if t.ProjectName != "" || t.ProjectID != "" {
		fmt.Fprintf(&b, "project:  %s\n", strings.TrimSpace(t.ProjectName+" "+paren(t.ProjectID)))
	}
	if desc := strings.TrimSpace(t.Description); desc != "" {
		b.WriteString("\n" + desc + "\n")
	}
	if len(d.Comments) > 0 {
		b.WriteString("\n" + commentList(d.Comments).Text())
	}
	return b.String()
}

func (cs commentList) Text() string {
	if len(cs) == 0 {
		return "No comments."
	}
	var b strings.Builder
	for _, c := range cs {
		fmt.Fprintf(&b, "%s  %s\n", c.CreatedAt.UTC().Format("2006-01-02 15:04"), c.Body)
	}
	return b.String()
}

func paren(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return ""
	}
	return "(" + s + ")"
}
