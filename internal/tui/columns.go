package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"taskboard/internal/board"
	"taskboard/internal/model"
)

const (
	columnGap    = 1
	minColumnW   = 14
	cardPaddingX = 1
)

// selection tracks the focused column and card. TaskID is preferred over an index so
// focus follows a card across reloads and moves.
type selection struct {
	Col    int
	TaskID string
}

// clamp makes sel point at an existing column and, when the column has cards, an existing card.
func (sel selection) clamp(snap board.Snapshot) selection {
	if len(snap.Columns) == 0 {
		return selection{}
	}
	if id := strings.TrimSpace(sel.TaskID); id != "" {
		for ci, c := range snap.Columns {
			for _, t := range c.Tasks {
				if t.ID == id {
					return selection{Col: ci, TaskID: id}
				}
			}
		}
	}
	if sel.Col < 0 {
		sel.Col = 0
	}
	if sel.Col >= len(snap.Columns) {
		sel.Col = len(snap.Columns) - 1
	}
	sel.TaskID = ""
	if tasks := snap.Columns[sel.Col].Tasks; len(tasks) > 0 {
		sel.TaskID = tasks[0].ID
	}
	return sel
}

// step moves the card focus by delta within the selected column.
func (sel selection) step(snap board.Snapshot, delta int) selection {
	sel = sel.clamp(snap)
	if len(snap.Columns) == 0 {
		return sel
	}
	tasks := snap.Columns[sel.Col].Tasks
	if len(tasks) == 0 {
		return sel
	}
	i := 0
	for j, t := range tasks {
		if t.ID == sel.TaskID {
			i = j
			break
		}
	}
	i += delta
	if i < 0 {
		i = 0
	}
	if i >= len(tasks) {
		i = len(tasks) - 1
	}
	sel.TaskID = tasks[i].ID
	return sel
}

// column moves focus to another column, landing on its first card.
func (sel selection) column(snap board.Snapshot, delta int) selection {
	sel = sel.clamp(snap)
	return selection{Col: sel.Col + delta}.clamp(snap)
}

type renderState struct {
	sel      selection
	dragging string      // task being dragged
	over     model.Stage // stage currently under the pointer while dragging
	agg      board.Aggregator
	glyphs   glyphs
}

// boardLayout is the rendered board plus the on-screen drop surfaces, in the same
// coordinates as mouse events.
type boardLayout struct {
	View     string
	Surfaces []board.Surface
}

// cardAt returns the task whose card contains p.
func (l boardLayout) cardAt(p board.Point) (string, bool) {
	for _, s := range l.Surfaces {
		if s.Target.TaskID != "" && s.Rect.Contains(p) {
			return s.Target.TaskID, true
		}
	}
	return "", false
}

func columnWidth(n, width int) int {
	if n <= 0 {
		return 0
	}
	w := (width - columnGap*(n-1)) / n
	if w < minColumnW {
		w = minColumnW
	}
	return w
}

// renderColumns lays the board out starting at screen row top.
func renderColumns(snap board.Snapshot, st renderState, top, width, height int) boardLayout {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	n := len(snap.Columns)
	if n == 0 || height == 0 {
		return boardLayout{View: fitPane("", width, height)}
	}
	st.sel = st.sel.clamp(snap)
	colW := columnWidth(n, width)

	var (
		rendered []string
		surfaces []board.Surface
	)
	for ci, c := range snap.Columns {
		x := ci * (colW + columnGap)
		if x >= width {
			break
		}
		view, cards := renderColumn(c, ci == st.sel.Col, st, colW, height)
		rendered = append(rendered, view)
		surfaces = append(surfaces, board.Surface{
			Target: board.DropTarget{Stage: c.Stage},
			Rect:   board.Rect{X: x, Y: top, W: colW, H: height},
		})
		for _, cb := range cards {
			surfaces = append(surfaces, board.Surface{
				Target: board.DropTarget{TaskID: cb.taskID},
				Rect:   board.Rect{X: x, Y: top + cb.line, W: colW, H: cb.lines},
			})
		}
	}

	out := rendered[0]
	sep := strings.Repeat(" ", columnGap)
	for _, r := range rendered[1:] {
		out = lipgloss.JoinHorizontal(lipgloss.Top, out, sep, r)
	}
	return boardLayout{View: fitPane(out, width, height), Surfaces: surfaces}
}

type cardBox struct {
	taskID string
	line   int
	lines  int
}

func renderColumn(c board.Column, focused bool, st renderState, colW, height int) (string, []cardBox) {
	head := fmt.Sprintf("%s (%d)", stageLabel(c), c.Count)
	if c.OverdueCount > 0 {
		head += fmt.Sprintf(" %s%d", st.glyphs.Overdue, c.OverdueCount)
	}
	hs := headerStyle
	switch {
	case st.dragging != "" && st.over == c.Stage:
		hs = headerDropStyle
	case focused:
		hs = headerSelectedStyle
	}
	lines := []string{hs.Width(colW).Render(fitLine(" "+head, colW))}

	if len(c.Tasks) == 0 {
		lines = append(lines, "", styleMuted().Render(" (empty)"))
		return fitPane(strings.Join(lines, "\n"), colW, height), nil
	}
	lines = append(lines, "")

	innerW := colW - 2*cardPaddingX
	if innerW < 1 {
		innerW = 1
	}
	blocks := make([][]string, len(c.Tasks))
	selIdx := -1
	for i, t := range c.Tasks {
		selected := focused && t.ID == st.sel.TaskID
		if selected {
			selIdx = i
		}
		blocks[i] = renderCard(t, c.Stage, selected, t.ID == st.dragging, st, innerW)
	}

	// Scroll so the selected card stays visible.
	first := 0
	if selIdx > 0 {
		used := 0
		for i := selIdx; i >= 0; i-- {
			used += len(blocks[i]) + 1
			if used > height-len(lines) {
				break
			}
			first = i
		}
	}
	if first > 0 {
		lines[1] = styleMuted().Render(fmt.Sprintf(" ↑ %d more", first))
	}

	var cards []cardBox
	for i := first; i < len(blocks); i++ {
		if len(lines) >= height {
			break
		}
		cards = append(cards, cardBox{taskID: c.Tasks[i].ID, line: len(lines), lines: len(blocks[i])})
		lines = append(lines, blocks[i]...)
		if i < len(blocks)-1 {
			lines = append(lines, styleMuted().Render(" "+strings.Repeat(st.glyphs.HRule, max(colW-2, 0))+" "))
		}
	}
	for i := range cards {
		// The last visible card may be cut by the pane height.
		if end := cards[i].line + cards[i].lines; end > height {
			cards[i].lines = height - cards[i].line
		}
	}
	return fitPane(strings.Join(lines, "\n"), colW, height), cards
}

func stageLabel(c board.Column) string {
	if strings.TrimSpace(c.Label) != "" {
		return c.Label
	}
	return string(c.Stage)
}

func renderCard(t model.Task, stage model.Stage, selected, dragged bool, st renderState, innerW int) []string {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = "(untitled)"
	}
	prefix := "  "
	if dragged {
		prefix = st.glyphs.Grip + " "
	}
	titleStyle := lipgloss.NewStyle().Bold(true)
	if stage == model.StageDone {
		titleStyle = faintIfDark(lipgloss.NewStyle()).Foreground(colorMuted).Strikethrough(true)
	}

	var out []string
	for _, ln := range wrapText(title, innerW, prefix, "  ") {
		out = append(out, titleStyle.Render(ln))
	}
	out = append(out, wrapTokens(cardMeta(t, stage, st), innerW, "  ")...)

	cardStyle := lipgloss.NewStyle().Padding(0, cardPaddingX).Width(innerW + 2*cardPaddingX)
	switch {
	case dragged:
		cardStyle = cardStyle.Faint(true)
	case selected:
		cardStyle = cardStyle.Foreground(colorSelectedFg).Background(colorSelectedBg)
	}
	return strings.Split(cardStyle.Render(fitPane(strings.Join(out, "\n"), innerW, 0)), "\n")
}

func cardMeta(t model.Task, stage model.Stage, st renderState) []string {
	tokens := []string{styleMuted().Render(t.ID)}
	if t.Priority != "" && t.Priority != model.PriorityMedium {
		tokens = append(tokens, priorityStyle(string(t.Priority)).Render(string(t.Priority)))
	}
	if due, ok := t.Due(); ok {
		label := "due " + due.Format("Jan 02")
		if st.agg.IsOverdue(t, stage) {
			tokens = append(tokens, overdueStyle.Render(st.glyphs.Overdue+" "+label))
		} else {
			tokens = append(tokens, metaStyle.Render(label))
		}
	}
	if a := t.Assignee(); a != "" {
		tokens = append(tokens, metaStyle.Render("@"+a))
	} else {
		tokens = append(tokens, alertStyle.Render("unassigned"))
	}
	return tokens
}

// wrapText word-wraps s to maxW columns, hard-cutting words that don't fit on a line.
func wrapText(s string, maxW int, firstPrefix, contPrefix string) []string {
	words := strings.Fields(s)
	var (
		lines  []string
		cur    string
		prefix = firstPrefix
	)
	avail := func() int { return max(maxW-xansi.StringWidth(prefix), 1) }
	flush := func() {
		lines = append(lines, prefix+cur)
		prefix = contPrefix
		cur = ""
	}
	for _, w := range words {
		for xansi.StringWidth(w) > avail() {
			if cur != "" {
				flush()
			}
			lines = append(lines, prefix+xansi.Cut(w, 0, avail()))
			w = xansi.Cut(w, avail(), xansi.StringWidth(w))
			prefix = contPrefix
		}
		switch {
		case cur == "":
			cur = w
		case xansi.StringWidth(cur)+1+xansi.StringWidth(w) <= avail():
			cur += " " + w
		default:
			flush()
			cur = w
		}
	}
	if cur != "" || len(lines) == 0 {
		flush()
	}
	return lines
}

// wrapTokens packs styled tokens into lines of at most maxW columns.
func wrapTokens(tokens []string, maxW int, indent string) []string {
	avail := max(maxW-xansi.StringWidth(indent), 1)
	var (
		lines []string
		cur   []string
		used  int
	)
	for _, tok := range tokens {
		w := xansi.StringWidth(tok)
		need := w
		if used > 0 {
			need++
		}
		if used+need > avail && len(cur) > 0 {
			lines = append(lines, indent+strings.Join(cur, " "))
			cur, used, need = nil, 0, w
		}
		if w > avail {
			tok = xansi.Cut(tok, 0, avail)
			need = avail
		}
		cur = append(cur, tok)
		used += need
	}
	if len(cur) > 0 {
		lines = append(lines, indent+strings.Join(cur, " "))
	}
	return lines
}

// fitLine truncates s to width columns with an ellipsis.
func fitLine(s string, width int) string {
	switch {
	case width <= 0:
		return ""
	case xansi.StringWidth(s) <= width:
		return s
	case width == 1:
		return xansi.Cut(s, 0, 1)
	default:
		return xansi.Cut(s, 0, width-1) + "…"
	}
}

// fitPane pads or cuts every line of s to exactly width columns and, when height > 0,
// pads or cuts to exactly height lines. Joined panes then line up.
func fitPane(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if height > 0 {
		if len(lines) > height {
			lines = lines[:height]
		}
		for len(lines) < height {
			lines = append(lines, "")
		}
	}
	for i, ln := range lines {
		ln = fitLine(ln, width)
		if w := xansi.StringWidth(ln); w < width {
			ln += strings.Repeat(" ", width-w)
		}
		lines[i] = ln
	}
	return strings.Join(lines, "\n")
}

func dueLabel(t model.Task, now time.Time) string {
	due, ok := t.Due()
	if !ok {
		return "no due date"
	}
	days := int(due.Sub(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)).Hours() / 24)
	switch {
	case days == 0:
		return "due today"
	case days == 1:
		return "due tomorrow"
	case days < 0:
		return fmt.Sprintf("%d days overdue", -days)
	default:
		return fmt.Sprintf("due in %d days", days)
	}
}
