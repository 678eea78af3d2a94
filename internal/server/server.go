package server

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"taskboard/internal/board"
	"taskboard/internal/model"
	"taskboard/internal/store"
)

const (
	patchMaxSize    = 16 << 10
	requestIDHeader = "X-Request-ID"
)

type Config struct {
	// Token, when set, is required as a bearer token on every /api route.
	Token string
}

type errorResponse struct {
	Message string `json:"message"`
}

// New returns an echo instance with the task routes registered.
func New(backend store.Backend, cfg Config, logger *log.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	Register(e, backend, cfg, logger)
	return e
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, backend store.Backend, cfg Config, logger *log.Logger) {
	if logger == nil {
		logger = log.New()
		logger.SetOutput(io.Discard)
	}
	e.JSONSerializer = sonicSerializer{}
	e.Use(requestLogger(logger))

	e.GET("/healthz", healthz(backend))

	api := e.Group("/api")
	if cfg.Token != "" {
		api.Use(bearerAuth(cfg.Token))
	}
	api.GET("/tasks/grouped", getGrouped(backend))
	api.GET("/tasks", getTasks(backend))
	api.GET("/tasks/:id", getTask(backend))
	api.PATCH("/tasks/:id", patchTask(backend, logger))
	api.GET("/tasks/:id/comments", getComments(backend))
	api.GET("/summary", getSummary(backend))
}

func requestLogger(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := strings.TrimSpace(req.Header.Get(requestIDHeader))
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(requestIDHeader, id)

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			entry := logger.WithFields(log.Fields{
				"request_id": id,
				"method":     req.Method,
				"path":       c.Path(),
				"status":     c.Response().Status,
				"elapsed":    time.Since(start),
			})
			if c.Response().Status >= http.StatusInternalServerError {
				entry.Error("request failed")
			} else {
				entry.Debug("request")
			}
			return nil
		}
	}
}

func bearerAuth(token string) echo.MiddlewareFunc {
	want := []byte("Bearer " + token)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := []byte(c.Request().Header.Get(echo.HeaderAuthorization))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				return c.JSON(http.StatusUnauthorized, errorResponse{Message: "missing or invalid token"})
			}
			return next(c)
		}
	}
}

func healthz(backend store.Backend) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := backend.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, errorResponse{Message: err.Error()})
		}
		return c.NoContent(http.StatusOK)
	}
}

func getGrouped(backend store.Backend) echo.HandlerFunc {
	return func(c echo.Context) error {
		f := model.ParseFilter(c.QueryParams()).Grouped()
		out, err := backend.Grouped(c.Request().Context(), f)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, out)
	}
}

func getTasks(backend store.Backend) echo.HandlerFunc {
	return func(c echo.Context) error {
		out, err := backend.List(c.Request().Context(), model.ParseFilter(c.QueryParams()))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, out)
	}
}

func getTask(backend store.Backend) echo.HandlerFunc {
	return func(c echo.Context) error {
		t, err := backend.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func getComments(backend store.Backend) echo.HandlerFunc {
	return func(c echo.Context) error {
		out, err := backend.Comments(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, out)
	}
}

func getSummary(backend store.Backend) echo.HandlerFunc {
	return func(c echo.Context) error {
		f := model.Filter{ProjectID: strings.TrimSpace(c.QueryParam("project_id"))}
		out, err := backend.Grouped(c.Request().Context(), f)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, out.Summary)
	}
}

func patchTask(backend store.Backend, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		lr := io.LimitReader(c.Request().Body, patchMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.UseNumber()

		var fields map[string]any
		if err := dec.Decode(&fields); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid body"})
		}
		patch, err := model.PatchFromFields(fields)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error()})
		}
		t, err := backend.Patch(c.Request().Context(), c.Param("id"), patch)
		if err != nil {
			if errors.Is(err, board.ErrNoteRequired) {
				logger.WithField("task", c.Param("id")).Info("rejected transition without a note")
			}
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

// writeError maps domain errors onto status codes.
func writeError(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch {
	case board.IsNotFound(err):
		code = http.StatusNotFound
	case errors.Is(err, board.ErrNoteRequired):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, board.ErrInvalidStage), errors.Is(err, store.ErrInvalidPatch):
		code = http.StatusBadRequest
	default:
		c.Logger().Error(err)
	}
	return c.JSON(code, errorResponse{Message: err.Error()})
}
