// Package web serves a read-only HTML view of the board next to the task API.
//
// Pages are rendered on the server. The board's Reload button asks /board/refresh for a
// Datastar element patch that swaps #board in place; nothing is pushed unasked.
package web

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/starfederation/datastar-go/datastar"

	"taskboard/internal/board"
	"taskboard/internal/model"
	"taskboard/internal/stageutil"
	"taskboard/internal/store"
)

type Pages struct {
	backend     store.Backend
	tmpl        *template.Template
	log         *log.Logger
	agg         board.Aggregator
	datastarURL string
}

type Option func(*Pages)

func WithLogger(l *log.Logger) Option {
	return func(p *Pages) {
		if l != nil {
			p.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pages) { p.agg.Now = now }
}

// WithDatastarURL points pages at a self-hosted copy of the Datastar bundle.
func WithDatastarURL(u string) Option {
	return func(p *Pages) {
		if u = strings.TrimSpace(u); u != "" {
			p.datastarURL = u
		}
	}
}

func New(backend store.Backend, opts ...Option) (*Pages, error) {
	if backend == nil {
		return nil, fmt.Errorf("web: backend is nil")
	}
	tmpl, err := template.New("web").Funcs(template.FuncMap{
		"description": renderDescription,
		"comment":     renderComment,
		"stamp":       func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04") },
	}).Parse(pageTemplates)
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}
	discard := log.New()
	discard.SetOutput(io.Discard)
	p := &Pages{
		backend:     backend,
		tmpl:        tmpl,
		log:         discard,
		datastarURL: defaultDatastarURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Register mounts the pages on e.
func (p *Pages) Register(e *echo.Echo) {
	e.GET("/", p.handleBoard)
	e.GET("/board/refresh", p.handleBoardRefresh)
	e.GET("/tasks/:id", p.handleTask)
}

type pageVM struct {
	Title       string
	DatastarURL string
	CSS         template.CSS
	Filter      string
	Board       *boardVM
	Task        *taskVM
}

type boardVM struct {
	Summary model.Summary
	Columns []columnVM
}

type columnVM struct {
	Stage        model.Stage
	Label        string
	Count        int
	OverdueCount int
	Cards        []cardVM
}

type cardVM struct {
	model.Task
	Overdue bool
}

type taskVM struct {
	Task       model.Task
	StageLabel string
	Comments   []model.Comment
}

func (p *Pages) page(title string, f model.Filter) pageVM {
	return pageVM{
		Title:       title,
		DatastarURL: p.datastarURL,
		CSS:         template.CSS(pageCSS),
		Filter:      f.Values().Encode(),
	}
}

func (p *Pages) boardVM(ctx context.Context, f model.Filter) (*boardVM, error) {
	out, err := p.backend.Grouped(ctx, f)
	if err != nil {
		return nil, err
	}
	vm := &boardVM{Summary: out.Summary}
	for _, def := range model.StageDefs {
		g := out.Groups[def.ID]
		col := columnVM{Stage: def.ID, Label: def.Label, Count: g.Count, OverdueCount: g.OverdueCount}
		for _, t := range g.Tasks {
			col.Cards = append(col.Cards, cardVM{Task: t, Overdue: p.agg.IsOverdue(t, def.ID)})
		}
		vm.Columns = append(vm.Columns, col)
	}
	return vm, nil
}

func (p *Pages) render(name string, data any) (string, error) {
	var b strings.Builder
	if err := p.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (p *Pages) writeHTML(c echo.Context, name string, data any) error {
	html, err := p.render(name, data)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.HTML(http.StatusOK, html)
}

func (p *Pages) handleBoard(c echo.Context) error {
	f := model.ParseFilter(c.QueryParams()).Grouped()
	vm, err := p.boardVM(c.Request().Context(), f)
	if err != nil {
		p.log.WithError(err).Warn("load board page")
		return c.String(http.StatusBadGateway, "could not load board: "+err.Error())
	}
	page := p.page("Taskboard", f)
	page.Board = vm
	return p.writeHTML(c, "page", page)
}

func (p *Pages) handleTask(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := p.backend.Get(ctx, c.Param("id"))
	if err != nil {
		if board.IsNotFound(err) {
			return c.String(http.StatusNotFound, err.Error())
		}
		return c.String(http.StatusBadGateway, err.Error())
	}
	cs, err := p.backend.Comments(ctx, t.ID)
	if err != nil {
		return c.String(http.StatusBadGateway, err.Error())
	}
	page := p.page(t.ID+" · "+t.Title, model.Filter{})
	page.Task = &taskVM{Task: t, StageLabel: stageutil.Label(t.Status), Comments: cs}
	return p.writeHTML(c, "page", page)
}

// handleBoardRefresh answers the Reload button with a single #board patch.
func (p *Pages) handleBoardRefresh(c echo.Context) error {
	f := model.ParseFilter(c.QueryParams()).Grouped()
	sse := datastar.NewSSE(c.Response(), c.Request())

	vm, err := p.boardVM(sse.Context(), f)
	if err == nil {
		var html string
		if html, err = p.render("board", vm); err == nil {
			return sse.PatchElements(html, datastar.WithSelector("#board"), datastar.WithMode(datastar.ElementPatchModeOuter))
		}
	}
	p.log.WithError(err).Warn("board refresh")
	return sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
}
