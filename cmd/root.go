package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/inference-sim/lbsim/sim"
	"github.com/inference-sim/lbsim/sim/telemetry"
	"github.com/inference-sim/lbsim/sim/trace"
	"github.com/inference-sim/lbsim/sim/workload"
)

var (
	// CLI flags for the run
	seed            int64  // Seed for the shared random source
	numServers      int    // Size of the server pool
	simRuntime      int64  // Total simulation time (in ticks)
	initialRequests int    // Size of the initial burst (negative = servers*100)
	configPath      string // Optional YAML run configuration
	outputPath      string // Log sink file ("-" for stdout)
	logLevel        string // Log verbosity level

	// CLI flags for observability
	metricsFile  string // Prometheus textfile written after the run
	traceLevel   string // Decision trace level
	otelExporter string // none | stdout | otlp
	otelEndpoint string // OTLP collector endpoint
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "lbsim",
	Short: "Discrete-time simulator for request distribution across a server pool",
}

// runOptions carries everything runSimulation needs besides the config.
type runOptions struct {
	Seed        int64
	TraceLevel  trace.TraceLevel
	MetricsFile string
	Registry    *prometheus.Registry
}

// runResult is what a finished simulation hands back to the command.
type runResult struct {
	Summary sim.Summary
	Trace   *trace.SimulationTrace
}

// runSimulation builds the engine for cfg, runs it writing progress to sink,
// and writes the final statistics block to sink.
func runSimulation(ctx context.Context, cfg sim.Config, sink io.Writer, opts runOptions) (runResult, error) {
	rng := sim.NewSeededRNG(sim.NewSimulationKey(opts.Seed))
	gen, err := workload.NewGeneratorFromConfig(cfg, rng)
	if err != nil {
		return runResult{}, err
	}

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	collector, err := telemetry.NewCollector(registry)
	if err != nil {
		return runResult{}, err
	}

	var st *trace.SimulationTrace
	if opts.TraceLevel != "" && opts.TraceLevel != trace.TraceLevelNone {
		st = trace.NewSimulationTrace(trace.TraceConfig{Level: opts.TraceLevel})
	}

	_, spanRec := telemetry.StartRunSpan(ctx, cfg, opts.Seed)
	lb, err := sim.NewLoadBalancer(cfg, gen, rng,
		sim.WithRecorder(collector),
		sim.WithRecorder(spanRec),
		sim.WithTrace(st),
	)
	if err != nil {
		spanRec.FinishRunSpan(sim.Summary{})
		return runResult{}, err
	}

	fmt.Fprintf(sink, "Starting load balancer with:\n")
	fmt.Fprintf(sink, "- %d servers\n", cfg.Servers)
	fmt.Fprintf(sink, "- Initial queue size: %d\n", cfg.InitialRequests)
	fmt.Fprintf(sink, "- Runtime: %d cycles\n", cfg.Runtime)

	lb.Run(sink)

	fmt.Fprintf(sink, "\nSimulation complete.\n\n")
	summary := lb.Summary()
	summary.Print(sink)
	spanRec.FinishRunSpan(summary)

	if opts.MetricsFile != "" {
		if err := collector.WriteTextfile(opts.MetricsFile); err != nil {
			return runResult{Summary: summary, Trace: st}, err
		}
	}
	return runResult{Summary: summary, Trace: st}, nil
}

// openSink opens the log sink. Failure here is a setup failure: the engine never starts.
func openSink(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open output file: %w", err)
	}
	return f, f.Close, nil
}

// buildConfig merges defaults, the optional config file and explicitly set flags.
func buildConfig(cmd *cobra.Command) (sim.Config, error) {
	cfg := defaultSimConfig()
	if configPath != "" {
		loaded, err := loadSimConfig(configPath, cfg)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if configPath == "" || flags.Changed("servers") {
		cfg.Servers = numServers
	}
	if configPath == "" || flags.Changed("runtime") {
		cfg.Runtime = simRuntime
	}
	if flags.Changed("requests") {
		cfg.InitialRequests = initialRequests
	}
	return finalizeSimConfig(cfg)
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the load balancer simulation",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		shutdown, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
			Exporter: otelExporter,
			Endpoint: otelEndpoint,
			Writer:   os.Stderr,
		})
		if err != nil {
			logrus.Fatalf("Tracing setup failed: %v", err)
		}
		defer telemetry.ShutdownWithTimeout(ctx, shutdown)

		out := cmd.OutOrStdout()
		sink, closeSink, err := openSink(outputPath, out)
		if err != nil {
			logrus.Fatalf("Error: %v", err)
		}

		fmt.Fprintln(out, "Starting simulation...")
		if outputPath != "-" {
			fmt.Fprintf(out, "Output will be written to %s\n\n", outputPath)
		}
		logrus.Infof("Starting simulation with %d servers, runtime=%d ticks, initial requests=%d, seed=%d",
			cfg.Servers, cfg.Runtime, cfg.InitialRequests, seed)

		startTime := time.Now()
		result, err := runSimulation(ctx, cfg, sink, runOptions{
			Seed:        seed,
			TraceLevel:  trace.TraceLevel(traceLevel),
			MetricsFile: metricsFile,
		})
		if cerr := closeSink(); cerr != nil && err == nil {
			err = fmt.Errorf("closing output file: %w", cerr)
		}
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Infof("Simulation wall time: %s", time.Since(startTime))

		if result.Trace != nil {
			printTraceSummary(out, trace.Summarize(result.Trace))
		}
		if outputPath != "-" {
			fmt.Fprintf(out, "Simulation complete. Check %s for results.\n", outputPath)
		}
		logrus.Info("Simulation complete.")
	},
}

// printTraceSummary writes the decision trace aggregates.
func printTraceSummary(w io.Writer, ts *trace.TraceSummary) {
	fmt.Fprintln(w, "=== Decision Trace Summary ===")
	fmt.Fprintf(w, "Activations          : %d\n", ts.Activations)
	fmt.Fprintf(w, "Deactivations        : %d\n", ts.Deactivations)
	fmt.Fprintf(w, "Bursts               : %d (%d requests, mean %.2f, max %d)\n",
		ts.Bursts, ts.BurstRequests, ts.MeanBurstSize, ts.MaxBurstSize)
	if ts.Assignments > 0 {
		fmt.Fprintf(w, "Assignments          : %d across %d servers\n", ts.Assignments, len(ts.ServerDistribution))
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {

	runCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for random request generation and bursts")
	runCmd.Flags().IntVar(&numServers, "servers", 10, "Number of servers in the pool")
	runCmd.Flags().Int64Var(&simRuntime, "runtime", 10000, "Total simulation runtime (in ticks)")
	runCmd.Flags().IntVar(&initialRequests, "requests", -1, "Initial queue size (default: servers*100)")
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML run configuration (flags set explicitly take precedence)")
	runCmd.Flags().StringVar(&outputPath, "output", "simulation_log.txt", "Simulation log file ('-' for stdout)")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Observability
	runCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after the run")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Decision trace level (none, decisions, assignments)")
	runCmd.Flags().StringVar(&otelExporter, "otel-exporter", "none", "OpenTelemetry span exporter (none, stdout, otlp)")
	runCmd.Flags().StringVar(&otelEndpoint, "otel-endpoint", "localhost:4317", "OTLP gRPC endpoint")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
