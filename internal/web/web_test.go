package web

import (
	"context"
	"html/template"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"taskboard/internal/model"
	"taskboard/internal/store"
)

var testNow = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func newTestPages(t *testing.T) (*echo.Echo, *store.Store) {
	t.Helper()
	clock := func() time.Time { return testNow }
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "board.sqlite"), store.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	_, err = st.Seed(context.Background())
	require.NoError(t, err)

	p, err := New(st, WithClock(clock), WithDatastarURL("/static/datastar.js"))
	require.NoError(t, err)
	e := echo.New()
	p.Register(e)
	return e, st
}

func get(t *testing.T, e *echo.Echo, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestBoardPage(t *testing.T) {
	e, _ := newTestPages(t)

	rec := get(t, e, "/?project_id=proj-web&sort=title")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	require.Contains(t, body, `src="/static/datastar.js"`)
	require.Contains(t, body, `data-on:click="@get('/board/refresh' + location.search)"`)
	require.NotContains(t, body, "data-init")
	require.Contains(t, body, "2 overdue · 1 unassigned")
	require.Contains(t, body, `<section class="column" data-stage="blocked">`)
	require.Contains(t, body, `class="card is-overdue" id="card-T-101"`)
	require.Contains(t, body, `class="card" id="card-T-102"`)
	require.NotContains(t, body, "DNS cutover")

	// Column order follows the workflow.
	require.Less(t, strings.Index(body, `data-stage="todo"`), strings.Index(body, `data-stage="in_progress"`))
	require.Less(t, strings.Index(body, `data-stage="blocked"`), strings.Index(body, `data-stage="done"`))
}

func TestTaskPage(t *testing.T) {
	e, _ := newTestPages(t)

	rec := get(t, e, "/tasks/T-104")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "<strong>contrast</strong>")
	require.Contains(t, rec.Body.String(), "Review")
	require.Contains(t, rec.Body.String(), "No comments.")

	rec = get(t, e, "/tasks/T-105")
	require.Contains(t, rec.Body.String(), "Comments (1)")
	require.Contains(t, rec.Body.String(), "Waiting on the registrar")

	rec = get(t, e, "/tasks/T-999")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkdown(t *testing.T) {
	for _, render := range []func(string) template.HTML{renderDescription, renderComment} {
		out := string(render("hi <script>alert(1)</script> :smile:"))
		require.NotContains(t, out, "<script>")
		require.NotContains(t, out, ":smile:")
		require.Empty(t, string(render("   ")))
	}

	require.Contains(t, string(renderComment("line one\nline two")), "<br")
	require.NotContains(t, string(renderDescription("line one\nline two")), "<br")
}

func TestBoardRefresh_OnlyOnRequest(t *testing.T) {
	e, st := newTestPages(t)

	first := get(t, e, "/board/refresh?project_id=proj-web")
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, 1, strings.Count(first.Body.String(), "event: datastar-patch-elements"))
	require.Contains(t, first.Body.String(), "#board")
	require.Contains(t, first.Body.String(), "2 overdue · 1 unassigned")
	require.NotContains(t, first.Body.String(), "DNS cutover")

	doneStage := model.StageDone
	_, err := st.Patch(context.Background(), "T-101", model.TaskPatch{Status: &doneStage})
	require.NoError(t, err)

	// Nothing reaches the earlier response; the next reload sees the write.
	require.NotContains(t, first.Body.String(), "1 overdue · 1 unassigned")
	second := get(t, e, "/board/refresh?project_id=proj-web")
	require.Equal(t, 1, strings.Count(second.Body.String(), "event: datastar-patch-elements"))
	require.Contains(t, second.Body.String(), "1 overdue · 1 unassigned")
}
