package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes payment settlement instruments.
type Metrics struct {
	finalizations       metric.Int64Counter
	finalizationLatency metric.Float64Histogram
	reconciliationItems metric.Int64Counter
	reconciliationRuns  metric.Int64Counter
	invoicesIssued      metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}
	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "paysettle"
	}
	meter := provider.Meter(name)

	finalizations, err := meter.Int64Counter("paysettle_finalizations_total")
	if err != nil {
		return nil, err
	}
	finalizationLatency, err := meter.Float64Histogram("paysettle_finalization_duration_seconds")
	if err != nil {
		return nil, err
	}
	reconciliationItems, err := meter.Int64Counter("paysettle_reconciliation_items_total")
	if err != nil {
		return nil, err
	}
	reconciliationRuns, err := meter.Int64Counter("paysettle_reconciliation_runs_total")
	if err != nil {
		return nil, err
	}
	invoicesIssued, err := meter.Int64Counter("paysettle_invoices_issued_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		finalizations:       finalizations,
		finalizationLatency: finalizationLatency,
		reconciliationItems: reconciliationItems,
		reconciliationRuns:  reconciliationRuns,
		invoicesIssued:      invoicesIssued,
	}, nil
}

// RecordFinalization counts a finalizer outcome (finalized, skipped, failed) per purpose.
func (m *Metrics) RecordFinalization(ctx context.Context, purpose, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("purpose", strings.TrimSpace(purpose)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.finalizations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.finalizationLatency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordReconciliationRun(ctx context.Context, mode string, counts map[string]int) {
	if m == nil {
		return
	}
	m.reconciliationRuns.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("mode", mode))...))
	for status, n := range counts {
		if n <= 0 {
			continue
		}
		attrs := FilterAttributes(
			attribute.String("mode", mode),
			attribute.String("status", status),
		)
		m.reconciliationItems.Add(ctx, int64(n), metric.WithAttributes(attrs...))
	}
}

func (m *Metrics) RecordInvoiceIssued(ctx context.Context, currency string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("currency", strings.ToUpper(strings.TrimSpace(currency))))
	m.invoicesIssued.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"purpose":  {},
	"outcome":  {},
	"mode":     {},
	"status":   {},
	"provider": {},
	"currency": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
