package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"taskboard/internal/board"
	"taskboard/internal/model"
	"taskboard/internal/stageutil"
)

func strPtr(s string) *string { return &s }

var testToday = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func plainColors(t *testing.T) {
	t.Helper()
	prev := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.Ascii)
	t.Cleanup(func() { lipgloss.SetColorProfile(prev) })
}

func testSnapshot() board.Snapshot {
	cols := make([]board.Column, 0, len(model.StageDefs))
	for _, stage := range model.Stages() {
		cols = append(cols, board.Column{Stage: stage, Label: stageutil.Label(stage), Tasks: []model.Task{}})
	}
	cols[0].Tasks = []model.Task{
		{ID: "T1", Title: "Write launch notes", Priority: model.PriorityHigh, DueDate: "2024-05-08"},
		{ID: "T2", Title: "Fix footer", Priority: model.PriorityLow, AssignedTo: strPtr("ana")},
	}
	cols[0].Count, cols[0].OverdueCount = 2, 1
	cols[2].Tasks = []model.Task{{ID: "R1", Title: "Review copy", Priority: model.PriorityMedium, AssignedTo: strPtr("mei")}}
	cols[2].Count = 1
	return board.Snapshot{Columns: cols, Loaded: true, Summary: model.Summary{Overdue: 1, Unassigned: 1}}
}

func testRenderState() renderState {
	return renderState{
		agg:    board.Aggregator{Now: func() time.Time { return testToday }},
		glyphs: glyphsFor(glyphSetASCII),
	}
}

func TestRenderColumns_HeadersCountsAndEmptyColumns(t *testing.T) {
	plainColors(t)
	out := renderColumns(testSnapshot(), testRenderState(), 0, 100, 20).View

	for _, want := range []string{"To Do (2) !1", "In Progress (0)", "Review (1)", "(empty)", "Write", "@ana", "unassigned", "high"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in board, got=\n%s", want, out)
		}
	}
	if got := len(strings.Split(out, "\n")); got != 20 {
		t.Fatalf("expected board to fill 20 lines, got %d", got)
	}
	for i, ln := range strings.Split(out, "\n") {
		if w := lipgloss.Width(ln); w != 100 {
			t.Fatalf("line %d: expected width 100, got %d (%q)", i, w, ln)
		}
	}
}

func TestRenderColumns_SurfacesMatchLayout(t *testing.T) {
	plainColors(t)
	layout := renderColumns(testSnapshot(), testRenderState(), 1, 100, 20)

	colW := columnWidth(5, 100)
	var stages []model.Stage
	cards := map[string]board.Rect{}
	for _, s := range layout.Surfaces {
		if s.Target.TaskID != "" {
			cards[s.Target.TaskID] = s.Rect
			continue
		}
		i := len(stages)
		stages = append(stages, s.Target.Stage)
		if s.Rect.X != i*(colW+columnGap) || s.Rect.Y != 1 || s.Rect.W != colW || s.Rect.H != 20 {
			t.Fatalf("column %s: unexpected rect %+v", s.Target.Stage, s.Rect)
		}
	}
	if len(stages) != 5 || stages[0] != model.StageTodo || stages[4] != model.StageDone {
		t.Fatalf("expected a surface per stage in display order, got %v", stages)
	}

	t1, t2, r1 := cards["T1"], cards["T2"], cards["R1"]
	if t1.Y != 3 || t1.X != 0 {
		t.Fatalf("expected first card below header and spacer, got %+v", t1)
	}
	if t2.Y != t1.Y+t1.H+1 {
		t.Fatalf("expected second card after separator: T1=%+v T2=%+v", t1, t2)
	}
	if r1.X != 2*(colW+columnGap) {
		t.Fatalf("expected review card in third column, got %+v", r1)
	}

	p := board.Point{X: t2.X + 1, Y: t2.Y}
	if id, ok := layout.cardAt(p); !ok || id != "T2" {
		t.Fatalf("expected T2 at %+v, got %q %v", p, id, ok)
	}
	target, ok := board.NearestSurface(p, layout.Surfaces, dropSlack)
	if !ok || target.TaskID != "T2" {
		t.Fatalf("expected card to win over its column, got %+v", target)
	}
}

func TestRenderColumns_DraggedCardAndHoverTarget(t *testing.T) {
	plainColors(t)
	st := testRenderState()
	st.dragging = "T2"
	st.over = model.StageReview
	out := renderColumns(testSnapshot(), st, 0, 100, 20).View
	if !strings.Contains(out, "= Fix") {
		t.Fatalf("expected grip on dragged card, got=\n%s", out)
	}
}

func TestRenderColumns_ScrollKeepsSelectionVisible(t *testing.T) {
	plainColors(t)
	snap := testSnapshot()
	var tasks []model.Task
	for i := 0; i < 12; i++ {
		tasks = append(tasks, model.Task{ID: "X" + string(rune('A'+i)), Title: "Card " + string(rune('A'+i)), AssignedTo: strPtr("ana")})
	}
	snap.Columns[1].Tasks, snap.Columns[1].Count = tasks, len(tasks)

	st := testRenderState()
	st.sel = selection{TaskID: "XL"}
	layout := renderColumns(snap, st, 0, 100, 12)
	if id, ok := layout.cardAt(board.Point{X: columnWidth(5, 100) + columnGap + 1, Y: 9}); !ok || id != "XL" {
		t.Fatalf("expected selected card near the bottom of the scrolled column, got %q", id)
	}
	var found bool
	for _, s := range layout.Surfaces {
		if s.Target.TaskID == "XL" {
			found = true
		}
		if s.Target.TaskID == "XA" {
			t.Fatalf("expected first card to be scrolled out of view")
		}
	}
	if !found {
		t.Fatalf("expected selected card to stay visible, got=\n%s", layout.View)
	}
	if !strings.Contains(layout.View, "more") {
		t.Fatalf("expected scroll hint, got=\n%s", layout.View)
	}
}

func TestSelection_ClampAndStep(t *testing.T) {
	snap := testSnapshot()

	sel := selection{}.clamp(snap)
	if sel.Col != 0 || sel.TaskID != "T1" {
		t.Fatalf("expected first card, got %+v", sel)
	}
	if sel = sel.step(snap, 5); sel.TaskID != "T2" {
		t.Fatalf("expected step to stop at last card, got %+v", sel)
	}
	if sel = sel.column(snap, 1); sel.Col != 1 || sel.TaskID != "" {
		t.Fatalf("expected empty column selection, got %+v", sel)
	}
	if sel = sel.column(snap, 1); sel.Col != 2 || sel.TaskID != "R1" {
		t.Fatalf("expected review card, got %+v", sel)
	}
	// A card that moved is followed to its new column.
	if sel = (selection{Col: 0, TaskID: "R1"}).clamp(snap); sel.Col != 2 {
		t.Fatalf("expected selection to follow the card, got %+v", sel)
	}
	if sel = (selection{Col: 9, TaskID: "gone"}).clamp(snap); sel.Col != 4 || sel.TaskID != "" {
		t.Fatalf("expected clamp to last column, got %+v", sel)
	}
}

func TestWrapText_HardCutsLongWords(t *testing.T) {
	got := wrapText("supercalifragilistic is long", 10, "", "")
	want := []string{"supercalif", "ragilistic", "is long"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestDueLabel(t *testing.T) {
	cases := map[string]string{
		"":           "no due date",
		"2024-05-10": "due today",
		"2024-05-11": "due tomorrow",
		"2024-05-14": "due in 4 days",
		"2024-05-07": "3 days overdue",
	}
	for due, want := range cases {
		if got := dueLabel(model.Task{DueDate: due}, testToday); got != want {
			t.Fatalf("due %q: expected %q, got %q", due, want, got)
		}
	}
}
