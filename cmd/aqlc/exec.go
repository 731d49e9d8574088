package main

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/birdie-ai/arangoql/aql"
	"github.com/birdie-ai/arangoql/arango"
	"github.com/birdie-ai/arangoql/doc"
	"github.com/birdie-ai/arangoql/querylog"
	"github.com/birdie-ai/arangoql/slog"
	"github.com/birdie-ai/arangoql/xjson"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
)

type (
	execOptions struct {
		concurrency  int
		querylogURL  string
		metricsAddr  string
		shutdownWait time.Duration
	}

	// result is the outcome of a spec, written as a JSON line.
	result struct {
		Index   int               `json:"index"`
		Kind    aql.Kind          `json:"kind"`
		Rows    []json.RawMessage `json:"rows,omitempty"`
		Indexed map[string]doc.D  `json:"indexed,omitempty"`
		Count   *int64            `json:"count,omitempty"`
		Writes  *int64            `json:"writes,omitempty"`
		Error   string            `json:"error,omitempty"`
	}
)

func newExecCmd() *cobra.Command {
	var opts execOptions
	cmd := &cobra.Command{
		Use:   "exec [file]",
		Short: "Execute each spec on ArangoDB and print its result as a JSON line",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.concurrency <= 0 {
				return fmt.Errorf("concurrency must be > 0: %d", opts.concurrency)
			}
			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer func() {
				_ = in.Close()
			}()

			cfg, err := arango.LoadConfig(envPrefix + "_")
			if err != nil {
				return err
			}
			client, err := arango.NewClient(cfg)
			if err != nil {
				return err
			}
			runner := arango.NewRunner(client)

			ctx := cmd.Context()
			var services []shutdowner
			defer func() {
				if err := shutdownAll(opts.shutdownWait, services...); err != nil {
					slog.Error("aqlc: shutting down", "error", err)
				}
			}()
			if opts.querylogURL != "" {
				publisher, err := querylog.OpenPublisher(ctx, opts.querylogURL)
				if err != nil {
					return err
				}
				services = append(services, publisher)
				runner = runner.WithQueryLog(publisher)
			}
			if opts.metricsAddr != "" {
				services = append(services, serveMetrics(opts.metricsAddr))
			}

			return execute(ctx, runner, in, cmd.OutOrStdout(), opts.concurrency)
		},
	}
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "maximum number of statements executing at the same time")
	cmd.Flags().StringVar(&opts.querylogURL, "querylog-url", "", "topic URL where executed statements are published, like mem://queries or gcppubsub://projects/p/topics/t")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "address where Prometheus metrics are served while executing, like :9090")
	cmd.Flags().DurationVar(&opts.shutdownWait, "shutdown-wait", 10*time.Second, "how long to wait for pending query log entries and metrics scrapes when done")
	return cmd
}

// execute runs the specs concurrently and writes their results in the order of the input.
// A spec that fails does not stop the others, an error is returned at the end.
func execute(ctx context.Context, runner *arango.Runner, r io.Reader, w io.Writer, concurrency int) error {
	p := pool.NewWithResults[result]().WithMaxGoroutines(concurrency)
	dec := xjson.NewDecoder[aql.Spec](r)
	for i, spec := range dec.Indexed() {
		p.Go(func() result {
			return run(ctx, runner, i, spec)
		})
	}
	results := p.Wait()
	slices.SortFunc(results, func(a, b result) int {
		return cmp.Compare(a.Index, b.Index)
	})

	enc := xjson.NewEncoder[result](w)
	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
		}
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("writing result %d: %w", res.Index, err)
		}
	}

	var errs []error
	if err := dec.Error(); err != nil {
		errs = append(errs, fmt.Errorf("reading specs: %w", err))
	}
	if failed > 0 {
		errs = append(errs, fmt.Errorf("%d of %d specs failed", failed, len(results)))
	}
	return errors.Join(errs...)
}

func run(ctx context.Context, runner *arango.Runner, i int, spec aql.Spec) result {
	res := result{Index: i, Kind: spec.Kind}
	if res.Kind == "" {
		res.Kind = aql.KindSelect
	}
	q := spec.Query()

	var (
		n   int64
		err error
	)
	switch res.Kind {
	case aql.KindSelect:
		if spec.IndexBy != "" {
			res.Indexed, err = runner.Indexed(ctx, q)
			break
		}
		var st aql.Statement
		if st, err = q.Build(); err == nil {
			var out arango.Result
			out, err = runner.Run(ctx, st)
			res.Rows = out.Rows
		}
	case aql.KindCount:
		n, err = runner.Count(ctx, q)
		res.Count = &n
	case aql.KindInsert:
		n, err = runner.Insert(ctx, q, spec.Document)
		res.Writes = &n
	case aql.KindUpdate:
		n, err = runner.Update(ctx, q, spec.Document)
		res.Writes = &n
	case aql.KindRemove:
		n, err = runner.Remove(ctx, q)
		res.Writes = &n
	default:
		err = fmt.Errorf("%w: %q", aql.ErrInvalidKind, res.Kind)
	}
	if err != nil {
		slog.FromCtx(ctx).Debug("aqlc: spec failed", "index", i, "error", err)
		return result{Index: i, Kind: res.Kind, Error: err.Error()}
	}
	return res
}

func serveMetrics(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("aqlc: serving metrics", "addr", addr, "error", err)
		}
	}()
	return srv
}
