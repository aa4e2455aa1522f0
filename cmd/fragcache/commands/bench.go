package commands

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/fragcache/codec"
	"github.com/IvanBrykalov/fragcache/internal/app"
	"github.com/IvanBrykalov/fragcache/internal/components"
	"github.com/IvanBrykalov/fragcache/metrics/prom"
	"github.com/IvanBrykalov/fragcache/resolver"
)

// countingObserver counts backend decodes and forwards to next.
type countingObserver struct {
	decodes atomic.Uint64
	next    resolver.Observer
}

func (o *countingObserver) Resolved(m resolver.Mode, err error) {
	o.decodes.Add(1)
	o.next.Resolved(m, err)
}

func (o *countingObserver) StreamCanceled(m resolver.Mode) { o.next.StreamCanceled(m) }

func (c *CLI) newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a synthetic resolve workload against the memo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := c.setup(cmd)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			capacity, _ := f.GetInt("cap")
			workers, _ := f.GetInt("workers")
			duration, _ := f.GetDuration("duration")
			keys, _ := f.GetInt("payloads")
			csrPct, _ := f.GetInt("csr")
			zipfS, _ := f.GetFloat64("zipf-s")
			zipfV, _ := f.GetFloat64("zipf-v")
			seed, _ := f.GetInt64("seed")
			pprofAddr, _ := f.GetString("pprof")
			metricsAddr, _ := f.GetString("http")
			if keys < 2 {
				return errors.New("bench: --payloads must be at least 2")
			}
			if zipfS <= 1 || zipfV < 1 {
				return errors.New("bench: Zipf needs s > 1 and v >= 1")
			}
			workers = max(workers, 1)
			cfg.Capacity = capacity

			reg := prometheus.NewRegistry()
			metrics := prom.New(reg, "fragcache", "bench", nil)
			if pprofAddr != "" {
				go func() {
					log.Info("pprof: serving", "addr", pprofAddr)
					log.Warn("pprof stopped", "err", http.ListenAndServe(pprofAddr, nil))
				}()
			}
			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				go func() {
					log.Info("metrics: serving", "addr", metricsAddr)
					log.Warn("metrics stopped", "err", http.ListenAndServe(metricsAddr, mux))
				}()
			}

			payloads, err := benchPayloads(keys)
			if err != nil {
				return err
			}
			obs := &countingObserver{next: metrics}
			res, err := app.NewResolver(cfg, log, obs, metrics)
			if err != nil {
				return err
			}

			var total, csr, failed atomic.Uint64
			ctx, cancel := context.WithTimeout(cmd.Context(), duration)
			defer cancel()

			start := time.Now()
			g, gctx := errgroup.WithContext(ctx)
			for w := range workers {
				g.Go(func() error {
					// rand.Rand is not goroutine-safe; one per worker.
					r := rand.New(rand.NewSource(seed + int64(w)*9973))
					zipf := rand.NewZipf(r, zipfS, zipfV, uint64(keys-1))
					for gctx.Err() == nil {
						mode := resolver.HostSide
						if int(r.Int31n(100)) < csrPct {
							mode = resolver.ClientSide
							csr.Add(1)
						}
						if _, err := res.Resolve(gctx, mode, payloads[zipf.Uint64()]); err != nil && gctx.Err() == nil {
							failed.Add(1)
						}
						total.Add(1)
					}
					return nil
				})
			}
			_ = g.Wait()
			elapsed := time.Since(start)

			ops := total.Load()
			st := res.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cap=%d workers=%d payloads=%d dur=%v seed=%d\n",
				capacity, workers, keys, elapsed, seed)
			fmt.Fprintf(out, "ops=%d (%.0f ops/s)  csr=%d  failed=%d\n",
				ops, float64(ops)/elapsed.Seconds(), csr.Load(), failed.Load())
			fmt.Fprintf(out, "decodes=%d  hits=%d  misses=%d  evictions=%d  hit-rate=%.2f%%\n",
				obs.decodes.Load(), st.Hits, st.Misses, st.Evictions, st.HitRate()*100)
			fmt.Fprintf(out, "Len()=%d\n", res.Len())
			return nil
		},
	}
	f := cmd.Flags()
	f.Int("cap", 1_000, "memo capacity (payloads)")
	f.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
	f.Duration("duration", 10*time.Second, "benchmark duration")
	f.Int("payloads", 10_000, "distinct payloads in the keyspace")
	f.Int("csr", 20, "percentage of client-side resolves [0..100]")
	f.Float64("zipf-s", 1.1, "Zipf s > 1 (skew)")
	f.Float64("zipf-v", 1.0, "Zipf v")
	f.Int64("seed", time.Now().UnixNano(), "random seed")
	f.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
	f.String("http", "", "serve Prometheus metrics at addr; empty = disabled")
	return cmd
}

// benchPayloads encodes n distinct issue-list payloads.
func benchPayloads(n int) ([]string, error) {
	out := make([]string, n)
	for i := range out {
		p, err := codec.Encode(components.IssueList("bench", "repo-"+strconv.Itoa(i), []components.Issue{
			{Number: i + 1, Title: "Issue " + strconv.Itoa(i), Status: "OPEN", Labels: []string{"bench"}},
		}))
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}
