package authority

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard/internal/model"
)

const (
	// RequestIDHeader carries a per-request id so client and server logs can be joined.
	RequestIDHeader = "X-Request-ID"

	maxErrorBody = 4 << 10
)

// StatusError is returned when the authority answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authority: %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("authority: %d %s", e.Code, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Client talks to the task authority over HTTP.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
	log   log.FieldLogger
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithLogger(l log.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("authority: base url is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("authority: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("authority: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	l := log.New()
	l.SetOutput(io.Discard)
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 15 * time.Second},
		log:  l,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GroupedTasks fetches every stage group for the board, scoped by filter.
// Flat-listing parameters in filter are not sent.
func (c *Client) GroupedTasks(ctx context.Context, filter model.Filter) (model.GroupedTasks, error) {
	var out model.GroupedTasks
	err := c.do(ctx, http.MethodGet, "/api/tasks/grouped", filter.Grouped().Values(), nil, &out)
	if err != nil {
		return model.GroupedTasks{}, err
	}
	if out.Groups == nil {
		out.Groups = map[model.Stage]model.Group{}
	}
	return out, nil
}

// Tasks fetches one page of the flat listing.
func (c *Client) Tasks(ctx context.Context, filter model.Filter) (model.TaskPage, error) {
	var out model.TaskPage
	if err := c.do(ctx, http.MethodGet, "/api/tasks", filter.Values(), nil, &out); err != nil {
		return model.TaskPage{}, err
	}
	return out, nil
}

// PatchTask applies a partial update and returns the task as the authority stored it.
func (c *Client) PatchTask(ctx context.Context, taskID string, patch model.TaskPatch) (model.Task, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return model.Task{}, fmt.Errorf("authority: task id is required")
	}
	var out model.Task
	err := c.do(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(taskID), nil, patch.Fields(), &out)
	if err != nil {
		return model.Task{}, err
	}
	return out, nil
}

func (c *Client) Task(ctx context.Context, taskID string) (model.Task, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return model.Task{}, fmt.Errorf("authority: task id is required")
	}
	var out model.Task
	err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(taskID), nil, nil, &out)
	return out, err
}

// Comments lists the notes attached to a task, oldest first.
func (c *Client) Comments(ctx context.Context, taskID string) ([]model.Comment, error) {
	var out []model.Comment
	err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(strings.TrimSpace(taskID))+"/comments", nil, nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("authority: encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	entry := c.log.WithFields(log.Fields{"method": method, "path": path, "request_id": reqID})
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		entry.WithError(err).Warn("authority request failed")
		return fmt.Errorf("authority: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	entry = entry.WithFields(log.Fields{"status": resp.StatusCode, "elapsed": time.Since(start)})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		entry.Warn("authority returned an error")
		return decodeError(resp)
	}
	entry.Debug("authority request done")

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("authority: decode %s %s: %w", method, path, err)
	}
	return nil
}

// decodeError reads {"message": "..."} (what the reference server and echo send);
// anything else becomes the trimmed body text.
func decodeError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &StatusError{Code: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
	}
	if err := sonic.Unmarshal(b, &payload); err == nil && payload.Message != "" {
		se.Message = payload.Message
	} else {
		se.Message = strings.TrimSpace(string(b))
	}
	return se
}
