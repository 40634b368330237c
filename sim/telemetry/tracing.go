package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/inference-sim/lbsim/sim"
)

// TracerName is the instrumentation scope used for simulation spans.
const TracerName = "github.com/inference-sim/lbsim/sim"

// TracingConfig governs how run tracing is initialised.
type TracingConfig struct {
	Exporter    string    // none | stdout | otlp
	Endpoint    string    // used when Exporter == otlp
	ServiceName string    // defaults to "lbsim"
	Writer      io.Writer // stdout exporter destination; defaults to os.Stdout
}

// ValidExporters is the set of recognized tracing exporter names.
var ValidExporters = map[string]bool{"": true, "none": true, "stdout": true, "otlp": true}

// InitTracing wires a tracer provider and exporter based on the provided
// configuration. It returns a shutdown function that flushes spans.
func InitTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	exporter := strings.ToLower(cfg.Exporter)
	if !ValidExporters[exporter] {
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
	if exporter == "" || exporter == "none" {
		otel.SetTracerProvider(noop.NewTracerProvider())
		logrus.Debug("tracing disabled; using noop tracer provider")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := exporterFromConfig(ctx, exporter, cfg)
	if err != nil {
		return nil, err
	}

	service := cfg.ServiceName
	if service == "" {
		service = "lbsim"
	}
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", service)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	// Runs are short and single-shot; export synchronously so nothing is lost on exit.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	logrus.Infof("tracing enabled: exporter=%s service=%s", exporter, service)
	return tp.Shutdown, nil
}

func exporterFromConfig(ctx context.Context, exporter string, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch exporter {
	case "stdout":
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(
			stdouttrace.WithWriter(w),
			stdouttrace.WithPrettyPrint(),
			stdouttrace.WithoutTimestamps(),
		)
	case "otlp":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
		return otlptrace.New(ctx, client)
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", exporter)
	}
}

// ShutdownWithTimeout invokes the provided shutdown function with a bounded
// timeout, logging errors in the shutdown path.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error) {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logrus.Warnf("tracing shutdown failed: %v", err)
	}
}

// SpanRecorder turns engine activity into events on a run span.
// Per-tick observations are not recorded; only bursts and activation changes.
type SpanRecorder struct {
	span trace.Span
}

var _ sim.StatsRecorder = (*SpanRecorder)(nil)

// StartRunSpan starts the span covering a whole simulation run and returns a
// recorder bound to it. The caller ends the span with FinishRunSpan.
func StartRunSpan(ctx context.Context, cfg sim.Config, seed int64) (context.Context, *SpanRecorder) {
	ctx, span := otel.Tracer(TracerName).Start(ctx, "lbsim.run",
		trace.WithAttributes(
			attribute.Int64("lbsim.runtime", cfg.Runtime),
			attribute.Int("lbsim.servers", cfg.Servers),
			attribute.Int("lbsim.initial_requests", cfg.InitialRequests),
			attribute.Int64("lbsim.seed", seed),
		),
	)
	return ctx, &SpanRecorder{span: span}
}

// FinishRunSpan attaches the final statistics and ends the span.
func (r *SpanRecorder) FinishRunSpan(summary sim.Summary) {
	r.span.SetAttributes(
		attribute.Int("lbsim.completed", summary.Completed),
		attribute.Float64("lbsim.average_per_tick", summary.AveragePerTick),
		attribute.Int("lbsim.pending", summary.Pending),
		attribute.Int("lbsim.in_flight", summary.InFlight),
	)
	r.span.End()
}

func (r *SpanRecorder) ObserveTick(clock int64, queueLen, activeServers, runningServers int) {}

func (r *SpanRecorder) ObserveCompletion(c sim.Completion) {}

func (r *SpanRecorder) ObserveBurst(clock int64, size int) {
	r.span.AddEvent("burst", trace.WithAttributes(
		attribute.Int64("lbsim.clock", clock),
		attribute.Int("lbsim.burst_size", size),
	))
}

func (r *SpanRecorder) ObserveActivation(serverID int, clock int64, active bool) {
	r.span.AddEvent("server.activation", trace.WithAttributes(
		attribute.Int64("lbsim.clock", clock),
		attribute.Int("lbsim.server_id", serverID),
		attribute.Bool("lbsim.active", active),
	))
}
