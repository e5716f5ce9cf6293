package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/eringen/mdxblog"
	"github.com/eringen/mdxblog/postcache"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	app := &cli.App{
		Name:    "mdxblog",
		Usage:   "Serve and maintain an MDX blog",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, EnvVars: []string{"MDXBLOG_CONFIG"}, Usage: "Path to a YAML config file"},
		},
		Commands: []*cli.Command{
			serveCmd(),
			rebuildCmd(),
			queryCmd(),
		},
	}
	// Return errors to the caller instead of exiting, so tests can assert them.
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// openApp loads configuration and opens the store and snapshot pipeline.
func openApp(c *cli.Context) (*mdxblog.App, error) {
	cfg, err := mdxblog.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	app := mdxblog.New(cfg)
	if err := app.Open(); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (overrides config)"},
			&cli.BoolFlag{Name: "rebuild", Usage: "Rebuild the snapshot before serving"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := mdxblog.LoadConfig(c.String("config"))
			if err != nil {
				return err
			}
			if addr := c.String("addr"); addr != "" {
				cfg.Addr = addr
			}
			if c.Bool("rebuild") {
				cfg.RebuildOnStart = true
			}
			app := mdxblog.New(cfg)
			defer app.Close()

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = app.Echo.Shutdown(shutdownCtx)
			}()
			return app.Start()
		},
	}
}

func rebuildCmd() *cli.Command {
	return &cli.Command{
		Name:  "rebuild",
		Usage: "Regenerate the post snapshot from the content directory",
		Action: func(c *cli.Context) error {
			app, err := openApp(c)
			if err != nil {
				return err
			}
			defer app.Close()

			snap, err := app.Rebuild(c.Context)
			if err != nil {
				return err
			}
			return outputJSON(c.App.Writer, map[string]int{
				"all":       len(snap.All),
				"published": len(snap.Published),
			})
		},
	}
}

func queryCmd() *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "Query the current snapshot",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Content type (default from config)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Page size"},
			&cli.IntFlag{Name: "page", Aliases: []string{"p"}, Value: 1, Usage: "1-based page number"},
			&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "Case-insensitive search term"},
			&cli.StringFlag{Name: "sort", Value: postcache.SortDateDesc, Usage: "date_desc|date_asc|title_asc|title_desc|likes_desc"},
			&cli.StringFlag{Name: "category", Usage: "Category filter"},
			&cli.BoolFlag{Name: "drafts", Usage: "Include drafts and scheduled posts"},
		},
		Action: func(c *cli.Context) error {
			app, err := openApp(c)
			if err != nil {
				return err
			}
			defer app.Close()

			q := postcache.Query{
				Type:          c.String("type"),
				PageSize:      c.Int("limit"),
				Page:          c.Int("page"),
				Search:        c.String("search"),
				Sort:          c.String("sort"),
				Category:      c.String("category"),
				IncludeDrafts: c.Bool("drafts"),
			}
			if q.Type == "" {
				q.Type = app.Config.DefaultType
			}
			if q.PageSize == 0 {
				q.PageSize = app.Config.PostsPerPage
			}
			res, err := app.Posts.Query(c.Context, q)
			if err != nil {
				return err
			}
			return outputJSON(c.App.Writer, res)
		},
	}
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
