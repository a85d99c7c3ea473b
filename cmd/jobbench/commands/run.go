package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/momentics/hioload-jobs/api"
	"github.com/momentics/hioload-jobs/events"
	"github.com/momentics/hioload-jobs/facade"
)

type runParams struct {
	jobs       int
	submitters int
	rate       float64
	group      string
	priority   string
	work       time.Duration
	fanout     int
	failEvery  int
	shutdown   string
	timeout    time.Duration
	jsonOutput bool
}

func newRunCommand() *cobra.Command {
	p := runParams{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit a synthetic workload and report scheduler statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkload(cmd.Context(), cmd.OutOrStdout(), p)
		},
	}
	f := cmd.Flags()
	f.IntVar(&p.jobs, "jobs", 10000, "Number of top-level jobs")
	f.IntVar(&p.submitters, "submitters", 4, "Concurrent submitting goroutines")
	f.Float64Var(&p.rate, "rate", 0, "Submission rate limit in jobs/s, 0 for unlimited")
	f.StringVar(&p.group, "group", "", "Target group (default: first configured group)")
	f.StringVar(&p.priority, "priority", "random", "Job priority: low, normal, high, critical or random")
	f.DurationVar(&p.work, "work", 0, "CPU time each job spins for")
	f.IntVar(&p.fanout, "fanout", 0, "Sub-jobs each job submits and waits for")
	f.IntVar(&p.failEvery, "fail-every", 0, "Make every n-th job fail, 0 disables")
	f.StringVar(&p.shutdown, "shutdown", "graceful", "Shutdown mode after the workload: graceful or immediate")
	f.DurationVar(&p.timeout, "timeout", time.Minute, "Overall workload deadline")
	f.BoolVar(&p.jsonOutput, "json", false, "Print statistics as JSON")
	return cmd
}

func parsePriority(s string) (api.Priority, bool, error) {
	switch strings.ToLower(s) {
	case "random", "":
		return api.PriorityNormal, true, nil
	case "low":
		return api.PriorityLow, false, nil
	case "normal":
		return api.PriorityNormal, false, nil
	case "high":
		return api.PriorityHigh, false, nil
	case "critical":
		return api.PriorityCritical, false, nil
	}
	return 0, false, fmt.Errorf("unknown priority %q", s)
}

func parseShutdown(s string) (api.ShutdownMode, error) {
	switch strings.ToLower(s) {
	case "graceful", "":
		return api.ShutdownGraceful, nil
	case "immediate":
		return api.ShutdownImmediate, nil
	}
	return 0, fmt.Errorf("unknown shutdown mode %q", s)
}

func spin(d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}

func runWorkload(ctx context.Context, out io.Writer, p runParams) error {
	if p.jobs < 0 || p.submitters <= 0 {
		return errors.New("jobs must be >= 0 and submitters > 0")
	}
	prio, randomPrio, err := parsePriority(p.priority)
	if err != nil {
		return err
	}
	mode, err := parseShutdown(p.shutdown)
	if err != nil {
		return err
	}
	mgr, err := managerFrom(ctx)
	if err != nil {
		return err
	}
	cfg := mgr.Get()
	logger := log.With().Str("command", "run").Logger()

	js, err := facade.New(cfg, facade.WithLogger(log.Logger), facade.WithConfigSource(mgr))
	if err != nil {
		return err
	}
	js.Events().Subscribe(events.LogHandler(logger))

	if addr := cfg.Metrics.Addr; addr != "" {
		srv := serveMetrics(addr, js)
		defer srv.Close()
		logger.Info().Str("addr", addr).Msg("serving prometheus metrics")
	}

	group := p.group
	if group == "" {
		group = js.Groups()[0]
	}
	if _, err := js.Resolve(group); err != nil {
		_ = js.Shutdown(context.Background(), api.ShutdownImmediate)
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var seq atomic.Int64
	job := func(jobCtx context.Context) error {
		n := seq.Add(1)
		spin(p.work)
		if p.fanout > 0 {
			tasks := make([]api.Task, p.fanout)
			for i := range tasks {
				tasks[i] = api.Task{Fn: func(context.Context) error { spin(p.work); return nil }}
			}
			b, err := js.SubmitBatch(jobCtx, group, tasks)
			if err != nil {
				return err
			}
			if err := js.Wait(jobCtx, b); err != nil {
				return err
			}
		}
		if p.failEvery > 0 && n%int64(p.failEvery) == 0 {
			return fmt.Errorf("synthetic failure of job %d", n)
		}
		return nil
	}

	var limiter *rate.Limiter
	if p.rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.rate), p.submitters)
	}

	start := time.Now()
	handles := make([][]api.Handle, p.submitters)
	g, gctx := errgroup.WithContext(runCtx)
	for s := 0; s < p.submitters; s++ {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(int64(s) + start.UnixNano()))
			for i := s; i < p.jobs; i += p.submitters {
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
				}
				pr := prio
				if randomPrio {
					pr = api.Priority(rng.Intn(api.NumPriorities))
				}
				h, err := js.Submit(gctx, group, pr, job)
				if err != nil {
					return err
				}
				handles[s] = append(handles[s], h)
			}
			return nil
		})
	}
	submitErr := g.Wait()
	submitted := time.Since(start)

	var failed int
	for _, hs := range handles {
		for _, h := range hs {
			if err := js.Wait(runCtx, h); err != nil {
				if errors.Is(err, runCtx.Err()) && runCtx.Err() != nil {
					break
				}
				failed++
			}
		}
	}
	elapsed := time.Since(start)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	shutdownErr := js.Shutdown(shutdownCtx, mode)

	st := js.Stats()
	if err := report(out, p.jsonOutput, st, elapsed, submitted); err != nil {
		return err
	}
	logger.Info().Int("failed_handles", failed).Dur("elapsed", elapsed).Msg("workload finished")
	return errors.Join(submitErr, shutdownErr)
}

func serveMetrics(addr string, js *facade.JobSystem) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(js.Collector(), collectors.NewGoCollector())
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	return srv
}

type reportJSON struct {
	Elapsed       string       `json:"elapsed"`
	SubmitElapsed string       `json:"submit_elapsed"`
	JobsPerSecond float64      `json:"jobs_per_second"`
	Stats         facade.Stats `json:"stats"`
}

func report(out io.Writer, asJSON bool, st facade.Stats, elapsed, submitted time.Duration) error {
	finished := st.Completed + st.Failed
	throughput := float64(finished) / elapsed.Seconds()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reportJSON{
			Elapsed:       elapsed.String(),
			SubmitElapsed: submitted.String(),
			JobsPerSecond: throughput,
			Stats:         st,
		})
	}

	fmt.Fprintf(out, "pool %s: %d submitted, %d completed, %d failed, %d cancelled, %d stolen\n",
		st.PoolID, st.Submitted, st.Completed, st.Failed, st.Cancelled, st.Stolen)
	fmt.Fprintf(out, "elapsed %s (submit %s), %.0f jobs/s\n\n", elapsed.Round(time.Microsecond), submitted.Round(time.Microsecond), throughput)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKER\tGROUPS\tEXECUTED\tSTOLEN\tQUEUED")
	for _, w := range st.Workers {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\n", w.ID, strings.Join(w.Groups, ","), w.Executed, w.Stolen, w.Queued)
	}
	return tw.Flush()
}
