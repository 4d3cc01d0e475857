// Command partprice prices part queries from the command line and prints one
// JSON object per query. Queries come from the arguments, or from stdin one
// per line when there are none.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/WessleyAI/wessley-parts/engine/bootstrap"
	"github.com/WessleyAI/wessley-parts/engine/domain"
	"github.com/WessleyAI/wessley-parts/pkg/config"
)

// Line is one query and its outcome.
type Line struct {
	Query  string         `json:"query"`
	Result *domain.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

type pricer interface {
	ResolveAndPrice(ctx context.Context, query string) (domain.Result, error)
}

func main() {
	parallel := flag.Int("parallel", 2, "queries priced at once")
	pretty := flag.Bool("pretty", false, "indent JSON output")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	queries := flag.Args()
	if len(queries) == 0 {
		if queries, err = readQueries(os.Stdin); err != nil {
			logger.Error("read stdin", "err", err)
			os.Exit(1)
		}
	}

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap", "err", err)
		os.Exit(1)
	}
	defer app.Close(context.Background())

	lines, err := priceAll(ctx, app.Engine, queries, *parallel)
	if err != nil {
		logger.Error("pricing interrupted", "err", err)
	}
	if err := writeLines(os.Stdout, lines, *pretty); err != nil {
		logger.Error("write output", "err", err)
		os.Exit(1)
	}
}

func readQueries(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			out = append(out, q)
		}
	}
	return out, sc.Err()
}

// priceAll prices queries with at most parallel in flight. Lines keep input
// order. Per-query failures are reported in their line; only cancellation
// stops the batch.
func priceAll(ctx context.Context, p pricer, queries []string, parallel int) ([]Line, error) {
	if parallel < 1 {
		parallel = 1
	}
	lines := make([]Line, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, q := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lines[i].Query = q
			res, err := p.ResolveAndPrice(gctx, q)
			if err != nil {
				lines[i].Error = err.Error()
				return gctx.Err()
			}
			lines[i].Result = &res
			return nil
		})
	}
	err := g.Wait()
	for i := range lines {
		lines[i].Query = queries[i]
	}
	return lines, err
}

func writeLines(w io.Writer, lines []Line, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	for _, l := range lines {
		if err := enc.Encode(l); err != nil {
			return err
		}
	}
	return nil
}
