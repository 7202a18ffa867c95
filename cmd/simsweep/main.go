package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"simsweep/internal/campaign"
	"simsweep/internal/config"
	"simsweep/internal/export"
	"simsweep/internal/monitor"
	"simsweep/internal/params"
)

var (
	configPath string
	workers    int
	timeout    time.Duration
	force      bool
	seeds      []int64
	where      []string
	pattern    string
	outPath    string
	summary    bool
	runsFlag   int
	metricAddr string
)

func main() {
	root := &cobra.Command{
		Use:   "simsweep",
		Short: "Run parameter-sweep campaigns over a seed-controlled simulation program",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (defaults apply when omitted)")

	createCmd := &cobra.Command{
		Use:   "create [sweep.yaml]",
		Short: "Create or load a campaign and print its identity",
		Args:  cobra.ExactArgs(1),
		RunE:  runCreate,
	}
	root.AddCommand(createCmd)

	runCmd := &cobra.Command{
		Use:   "run [sweep.yaml]",
		Short: "Execute the runs a sweep still needs",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	runCmd.Flags().IntVar(&workers, "workers", 0, "Parallel runs (overrides config)")
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-run timeout (overrides config)")
	runCmd.Flags().BoolVar(&force, "force", false, "Run everything requested regardless of existing results")
	runCmd.Flags().Int64SliceVar(&seeds, "seed", nil, "Explicit seeds to run (implies --force)")
	runCmd.Flags().StringVar(&metricAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")
	root.AddCommand(runCmd)

	listCmd := &cobra.Command{
		Use:   "list [sweep.yaml]",
		Short: "List recorded runs",
		Args:  cobra.ExactArgs(1),
		RunE:  runList,
	}
	listCmd.Flags().StringSliceVar(&where, "where", nil, "Filter as name=value pairs (unset names are wildcards)")
	root.AddCommand(listCmd)

	exportCmd := &cobra.Command{
		Use:   "export [sweep.yaml]",
		Short: "Export results as a dense array in CSV form",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	exportCmd.Flags().StringVar(&pattern, "pattern", "", "Regex with one capture group extracting a float from stdout (required)")
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "-", "Output CSV path, - for stdout")
	exportCmd.Flags().BoolVar(&summary, "summary", false, "Print per-cell mean/stddev across the run axis")
	exportCmd.Flags().IntVar(&runsFlag, "runs", 0, "Run-axis size (defaults to the sweep's runs)")
	_ = exportCmd.MarkFlagRequired("pattern")
	root.AddCommand(exportCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(configPath)
}

func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Logging.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func openCampaign(ctx context.Context, cfg *config.Config, sweep *config.Sweep, metrics *monitor.Metrics) (*campaign.Campaign, error) {
	w := cfg.Runner.Workers
	if workers > 0 {
		w = workers
	}
	to := cfg.Runner.Timeout
	if timeout > 0 {
		to = timeout
	}

	return campaign.CreateOrLoad(ctx, campaign.Config{
		ProgramPath: sweep.Program,
		ProgramName: sweep.Name,
		StorageDir:  sweep.Storage,
		SeedArg:     cfg.Runner.SeedArg,
		Workers:     w,
		Timeout:     to,
		Metrics:     metrics,
		Progress: func(completed, total int) {
			fmt.Fprintf(os.Stderr, "\rcompleted %d/%d runs", completed, total)
			if completed == total {
				fmt.Fprintln(os.Stderr)
			}
		},
	})
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	sweep, err := config.LoadSweep(args[0])
	if err != nil {
		return err
	}

	c, err := openCampaign(context.Background(), cfg, sweep, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	meta := c.Metadata()
	fmt.Printf("program:     %s\n", meta.ProgramName)
	fmt.Printf("fingerprint: %s\n", meta.Fingerprint)
	fmt.Printf("seed arg:    %s\n", meta.SeedArg)
	fmt.Printf("parameters:  %s\n", strings.Join(meta.Parameters, ", "))
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	sweep, err := config.LoadSweep(args[0])
	if err != nil {
		return err
	}
	space, err := sweep.Space()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = metricAddr
	}
	metrics := monitor.NewMetrics()
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg, metrics)
	}

	c, err := openCampaign(ctx, cfg, sweep, metrics)
	if err != nil {
		return err
	}
	defer c.Close()

	combos := space.Expand()
	var res = struct {
		Completed, Failed, Total int
	}{}

	switch {
	case len(seeds) > 0 || force:
		r, runErr := c.Run(ctx, combos, seeds, sweep.Runs)
		res.Completed, res.Failed, res.Total = r.Completed, r.Failed, r.Total
		err = runErr
	default:
		r, runErr := c.RunMissing(ctx, combos, sweep.Runs)
		res.Completed, res.Failed, res.Total = r.Completed, r.Failed, r.Total
		err = runErr
	}

	var batchErr *campaign.BatchError
	if errors.As(err, &batchErr) {
		log.Warn().Int("failed", batchErr.Failed).Int("total", batchErr.Total).Msg("batch finished with failures")
		err = nil
	}
	if err != nil {
		return err
	}

	log.Info().
		Int("completed", res.Completed).
		Int("failed", res.Failed).
		Int("total", res.Total).
		Msg("sweep finished")
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	sweep, err := config.LoadSweep(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	c, err := openCampaign(ctx, cfg, sweep, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	partial, err := parseFilter(where)
	if err != nil {
		return err
	}
	recs, err := c.Query(ctx, partial)
	if err != nil {
		return err
	}

	for _, rec := range recs {
		status := "ok"
		if rec.Failed {
			status = rec.FailureKind
		}
		fmt.Printf("%s  seed=%-4d  %-8s  %8s  %s\n",
			rec.Combination, rec.Seed, status, rec.Duration.Round(time.Millisecond), rec.ID)
	}
	fmt.Printf("%d records\n", len(recs))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	sweep, err := config.LoadSweep(args[0])
	if err != nil {
		return err
	}
	space, err := sweep.Space()
	if err != nil {
		return err
	}

	runs := sweep.Runs
	if runsFlag > 0 {
		runs = runsFlag
	}
	extractor, err := export.RegexExtractor(pattern)
	if err != nil {
		return err
	}

	ctx := context.Background()
	c, err := openCampaign(ctx, cfg, sweep, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	arr, err := c.ExportArray(ctx, space, runs, extractor)
	if err != nil {
		return err
	}
	log.Info().
		Ints("shape", arr.Shape()).
		Int("missing", arr.MissingCount()).
		Msg("array exported")

	out := os.Stdout
	if outPath != "-" {
		f, err := os.Create(outPath) // #nosec G304 -- path comes from a CLI flag
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := export.WriteCSV(out, arr); err != nil {
		return err
	}

	if summary {
		stats, err := export.Summarize(arr)
		if err != nil {
			return err
		}
		for _, st := range stats {
			fmt.Fprintf(os.Stderr, "%-40s n=%d mean=%g stddev=%g missing=%d\n",
				strings.Join(st.Coords, ","), st.Count, st.Mean, st.StdDev, st.Missing)
		}
	}
	return nil
}

// parseFilter converts name=value pairs into a typed partial
// combination, inferring bool, int, then float before falling back to
// text.
func parseFilter(pairs []string) (map[string]params.Value, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]params.Value, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("filter %q must be name=value", pair)
		}
		out[name] = parseScalar(raw)
	}
	return out, nil
}

func parseScalar(raw string) params.Value {
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return params.Bool(b)
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return params.Int(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return params.Float(f)
	}
	return params.String(raw)
}

func serveMetrics(cfg *config.Config, metrics *monitor.Metrics) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics listener started")
	if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil { // #nosec G114 -- short-lived local metrics endpoint
		log.Warn().Err(err).Msg("metrics listener stopped")
	}
}
