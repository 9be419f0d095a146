// Command recipectl is the operator CLI: it ingests a recipe corpus and runs
// match and search requests against the configured store from a terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recipematch/internal/app"
	"github.com/kailas-cloud/recipematch/internal/config"
	"github.com/kailas-cloud/recipematch/internal/domain"
	dommatch "github.com/kailas-cloud/recipematch/internal/domain/match"
	logpkg "github.com/kailas-cloud/recipematch/internal/logger"
	"github.com/kailas-cloud/recipematch/internal/usecase/ingest"
	"github.com/kailas-cloud/recipematch/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "recipectl",
		Usage:   "Operate the recipematch corpus and pipelines",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Config environment (selects config/<env>.yaml)",
				Value:   config.GetEnv(),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override logging level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Create the index and load a JSON or JSON-lines recipe file",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the corpus file",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Embedding workers (0 keeps the configured value)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Recipes per embedding call (0 keeps the configured value)",
					},
				},
			},
			{
				Name:      "match",
				Usage:     "Run the AI match pipeline for a query",
				ArgsUsage: "<text>",
				Action:    matchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "free, strict or lexical",
						Value:   string(dommatch.ModeFree),
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Keyword search over titles and ingredients",
				ArgsUsage: "<query>",
				Action:    searchCommand,
			},
			{
				Name:   "drop-index",
				Usage:  "Drop the vector index, keeping recipe documents",
				Action: dropIndexCommand,
			},
		},
	}
}

// bootstrap loads configuration and wires services. Callers validate their
// arguments first so that usage errors never touch the network.
func bootstrap(c *cli.Context, mutate func(*config.Config)) (*app.App, *zap.Logger, error) {
	env := c.String("env")
	cfg, err := config.Load(env)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if mutate != nil {
		mutate(&cfg)
	}

	level := c.String("log-level")
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logpkg.NewLogger(env, level)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	a, err := app.New(c.Context, &cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

func ingestCommand(c *cli.Context) error {
	path := c.String("file")
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	rows, err := ingest.ReadRows(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return errors.New("corpus file has no rows")
	}

	a, logger, err := bootstrap(c, func(cfg *config.Config) {
		if n := c.Int("workers"); n > 0 {
			cfg.Ingest.Workers = n
		}
		if n := c.Int("batch-size"); n > 0 {
			cfg.Ingest.BatchSize = n
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()
	defer func() { _ = logger.Sync() }()

	ctx := logpkg.ContextWithLogger(c.Context, logger)
	rep, err := a.Ingest.Ingest(ctx, rows)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	for _, e := range rep.Errors {
		fmt.Fprintf(c.App.ErrWriter, "row %d (%s): %s\n", e.Row, e.ID, e.Err)
	}
	return printJSON(c.App.Writer, map[string]any{
		"total":         rep.Total,
		"indexed":       rep.Indexed,
		"failed":        rep.Failed,
		"ingredients":   rep.Ingredients,
		"index_created": rep.IndexCreated,
		"tokens":        rep.Tokens,
		"duration":      rep.Duration.String(),
	})
}

func matchCommand(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return errors.New("match: text argument is required")
	}
	mode, err := dommatch.ParseMode(c.String("mode"))
	if err != nil {
		return fmt.Errorf("match: %w", err)
	}

	a, logger, err := bootstrap(c, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := logpkg.ContextWithLogger(c.Context, logger)
	ctx, usage := domain.NewContextWithUsage(ctx)
	out, err := a.Match.Match(ctx, dommatch.Request{Text: text, Mode: mode, User: "recipectl"})
	if err != nil {
		return fmt.Errorf("match: %w", err)
	}

	items := make([]map[string]any, len(out.Candidates))
	for i, cand := range out.Candidates {
		items[i] = map[string]any{
			"rank":       cand.Rank,
			"title":      cand.Recipe.Title,
			"url":        cand.Recipe.URL,
			"similarity": dommatch.FormatSimilarity(cand.Similarity),
		}
	}
	return printJSON(c.App.Writer, map[string]any{
		"items":            items,
		"reason":           string(out.Reason),
		"rewritten":        out.Rewritten,
		"threshold":        out.Threshold,
		"embedding_tokens": usage.TotalTokens(),
	})
}

func searchCommand(c *cli.Context) error {
	q := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(q) == "" {
		return errors.New("search: query argument is required")
	}

	a, logger, err := bootstrap(c, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	recs, err := a.Lexical.Search(logpkg.ContextWithLogger(c.Context, logger), q)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	items := make([]map[string]string, len(recs))
	for i, r := range recs {
		items[i] = map[string]string{
			"id":             r.ID,
			"title_original": r.Title,
			"title_core":     r.TitleCore,
			"url":            r.URL,
			"category":       r.Category,
		}
	}
	return printJSON(c.App.Writer, map[string]any{"items": items})
}

func dropIndexCommand(c *cli.Context) error {
	a, logger, err := bootstrap(c, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Recipes.DropIndex(c.Context); err != nil {
		return err //nolint:wrapcheck // already carries the index name
	}
	logger.Info("Index dropped")
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
