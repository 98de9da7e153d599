package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
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

	PrometheusAddr  string
	PrometheusServe bool
}

// Metrics exposes contract engine instruments.
type Metrics struct {
	operations      metric.Int64Counter
	operationTime   metric.Float64Histogram
	numberRetries   metric.Int64Counter
	numberFallbacks metric.Int64Counter
	cleanupFailures metric.Int64Counter
	meterConflicts  metric.Int64Counter
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
				if log != nil {
					log.Info("shutting down meter provider")
				}
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

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "contractdesk"
	}
	meter := provider.Meter(name)

	operations, err := meter.Int64Counter("contractdesk_contract_operations_total",
		metric.WithDescription("Contract engine operations by outcome."))
	if err != nil {
		return nil, err
	}
	operationTime, err := meter.Float64Histogram("contractdesk_contract_operation_duration_seconds",
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	numberRetries, err := meter.Int64Counter("contractdesk_contract_number_retries_total")
	if err != nil {
		return nil, err
	}
	numberFallbacks, err := meter.Int64Counter("contractdesk_contract_number_fallbacks_total")
	if err != nil {
		return nil, err
	}
	cleanupFailures, err := meter.Int64Counter("contractdesk_post_commit_failures_total")
	if err != nil {
		return nil, err
	}
	meterConflicts, err := meter.Int64Counter("contractdesk_meter_conflicts_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		operations:      operations,
		operationTime:   operationTime,
		numberRetries:   numberRetries,
		numberFallbacks: numberFallbacks,
		cleanupFailures: cleanupFailures,
		meterConflicts:  meterConflicts,
	}, nil
}

// RecordOperation counts one engine operation and its latency.
func (m *Metrics) RecordOperation(ctx context.Context, operation, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.operations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.operationTime.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

// RecordNumberRetry counts a contract number collision.
func (m *Metrics) RecordNumberRetry(ctx context.Context) {
	if m == nil {
		return
	}
	m.numberRetries.Add(ctx, 1)
}

// RecordNumberFallback counts a timestamp-suffixed fallback number.
func (m *Metrics) RecordNumberFallback(ctx context.Context) {
	if m == nil {
		return
	}
	m.numberFallbacks.Add(ctx, 1)
}

// RecordPostCommitFailure counts a failed post-commit effect.
func (m *Metrics) RecordPostCommitFailure(ctx context.Context, effect string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("effect", strings.TrimSpace(effect)))
	m.cleanupFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordMeterConflict counts a rejected meter assignment.
func (m *Metrics) RecordMeterConflict(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.meterConflicts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RegisterPrometheusEndpoint serves the Prometheus registry, which carries
// the gorm connection pool collectors, on the configured address.
func RegisterPrometheusEndpoint(lc fx.Lifecycle, cfg Config, log *zap.Logger) {
	if !cfg.PrometheusServe || strings.TrimSpace(cfg.PrometheusAddr) == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              cfg.PrometheusAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("metrics endpoint stopped", zap.Error(err))
				}
			}()
			log.Info("metrics endpoint listening", zap.String("addr", cfg.PrometheusAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
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
	"operation": {},
	"result":    {},
	"effect":    {},
	"reason":    {},
	"status":    {},
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
