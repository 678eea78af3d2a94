package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"taskboard/internal/format"
	"taskboard/internal/server"
	"taskboard/internal/store"
	"taskboard/internal/web"
)

func defaultDBPath() string {
	if p := os.Getenv("TASKBOARD_DB"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "taskboard.sqlite"
	}
	return filepath.Join(home, ".taskboard", "board.sqlite")
}

func newServeCmd(app *App) *cobra.Command {
	var addr string
	var dbPath string
	var redisURL string
	var cacheTTL time.Duration
	var seed bool
	var token string
	var pages bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference task authority (HTTP + SQLite)",
		Long: strings.TrimSpace(`
Run the task authority the board talks to.

Tasks live in SQLite. With --redis, grouped board reads are cached in Redis and
invalidated on every successful update.

Unless --web=false, a read-only HTML board is served at /. Its Reload button
re-renders the board in place.
`),
		Example: strings.TrimSpace(`
# Local server with demo data
taskboard serve --seed

# Shared cache and a bearer token
taskboard serve --addr :3340 --redis redis://localhost:6379/0 --server-token s3cret
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(app.context(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				return writeErr(cmd, errors.New("serve: missing --addr"))
			}

			st, err := store.Open(ctx, dbPath, store.WithLogger(app.log))
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			seeded := 0
			if seed {
				if seeded, err = st.Seed(ctx); err != nil {
					return writeErr(cmd, err)
				}
			}

			var backend store.Backend = st
			if u := strings.TrimSpace(redisURL); u != "" {
				rc, err := openRedis(ctx, u)
				if err != nil {
					return writeErr(cmd, err)
				}
				defer rc.Close()
				backend = store.NewCache(st, rc, cacheTTL)
			}

			var site *web.Pages
			if pages {
				if site, err = web.New(backend, web.WithLogger(app.log)); err != nil {
					return writeErr(cmd, err)
				}
			}
			e := server.New(backend, server.Config{Token: strings.TrimSpace(token)}, app.log)
			if site != nil {
				site.Register(e)
			}
			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}
			actualAddr := ln.Addr().String()

			hints := []string{"taskboard --api http://" + actualAddr}
			_ = writeOut(cmd, app, format.Envelope{
				Data: map[string]any{
					"addr":      actualAddr,
					"url":       "http://" + actualAddr + "/",
					"db":        dbPath,
					"cache":     strings.TrimSpace(redisURL) != "",
					"seeded":    seeded,
					"auth":      strings.TrimSpace(token) != "",
					"web":       pages,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
				Hints: hints,
			})
			app.log.WithField("addr", actualAddr).Info("task authority listening")

			srv := &http.Server{Handler: e, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", envOr("TASKBOARD_ADDR", "127.0.0.1:3340"), "Bind address (host:port or :port)")
	cmd.Flags().StringVar(&dbPath, "db", defaultDBPath(), "SQLite database path (:memory: for a throwaway board)")
	cmd.Flags().StringVar(&redisURL, "redis", envOr("REDIS_URL", ""), "Redis URL for the board cache (disabled when empty)")
	cmd.Flags().DurationVar(&cacheTTL, "cache-ttl", 30*time.Second, "How long cached board reads live")
	cmd.Flags().BoolVar(&seed, "seed", false, "Load demo projects and tasks into an empty database")
	cmd.Flags().BoolVar(&pages, "web", true, "Serve the read-only HTML board at /")
	cmd.Flags().StringVar(&token, "server-token", envOr("TASKBOARD_SERVER_TOKEN", ""), "Require this bearer token on /api requests")
	return cmd
}

func openRedis(ctx context.Context, u string) (*redis.Client, error) {
	opts, err := redis.ParseURL(u)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	rc := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}
