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

// Metrics exposes application-level instruments.
type Metrics struct {
	orgsCreated         metric.Int64Counter
	orgsDeleted         metric.Int64Counter
	invitationsSent     metric.Int64Counter
	invitationsResolved metric.Int64Counter
	emailsSent          metric.Int64Counter
	roleSyncOps         metric.Int64Counter
	rpcRequests         metric.Int64Counter
	rateLimitAllowed    metric.Int64Counter
	rateLimitDenied     metric.Int64Counter
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
		name = "confirmd"
	}
	meter := provider.Meter(name)

	orgsCreated, err := meter.Int64Counter("confirmd_orgs_created_total")
	if err != nil {
		return nil, err
	}
	orgsDeleted, err := meter.Int64Counter("confirmd_orgs_deleted_total")
	if err != nil {
		return nil, err
	}
	invitationsSent, err := meter.Int64Counter("confirmd_invitations_sent_total")
	if err != nil {
		return nil, err
	}
	invitationsResolved, err := meter.Int64Counter("confirmd_invitations_resolved_total")
	if err != nil {
		return nil, err
	}
	emailsSent, err := meter.Int64Counter("confirmd_emails_sent_total")
	if err != nil {
		return nil, err
	}
	roleSyncOps, err := meter.Int64Counter("confirmd_role_sync_operations_total")
	if err != nil {
		return nil, err
	}
	rpcRequests, err := meter.Int64Counter("confirmd_rpc_requests_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("confirmd_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("confirmd_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		orgsCreated:         orgsCreated,
		orgsDeleted:         orgsDeleted,
		invitationsSent:     invitationsSent,
		invitationsResolved: invitationsResolved,
		emailsSent:          emailsSent,
		roleSyncOps:         roleSyncOps,
		rpcRequests:         rpcRequests,
		rateLimitAllowed:    rateLimitAllowed,
		rateLimitDenied:     rateLimitDenied,
	}, nil
}

// RecordOrgCreated increments organization creation counts.
func (m *Metrics) RecordOrgCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.orgsCreated.Add(ctx, 1)
}

// RecordOrgDeleted increments organization deletion counts.
func (m *Metrics) RecordOrgDeleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.orgsDeleted.Add(ctx, 1)
}

// RecordInvitationSent increments invitation send counts.
func (m *Metrics) RecordInvitationSent(ctx context.Context, orgID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("org_id", strings.TrimSpace(orgID)))
	m.invitationsSent.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInvitationResolved increments invitation accept/reject counts.
func (m *Metrics) RecordInvitationResolved(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.ToLower(strings.TrimSpace(status))))
	m.invitationsResolved.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEmailSent increments email delivery counts by template and outcome.
func (m *Metrics) RecordEmailSent(ctx context.Context, template string, delivered bool) {
	if m == nil {
		return
	}
	outcome := "delivered"
	if !delivered {
		outcome = "failed"
	}
	attrs := FilterAttributes(
		attribute.String("template", strings.TrimSpace(template)),
		attribute.String("outcome", outcome),
	)
	m.emailsSent.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRoleSync increments role reconciliation operation counts.
func (m *Metrics) RecordRoleSync(ctx context.Context, operation, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.roleSyncOps.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRPCRequest increments gateway RPC dispatch counts.
func (m *Metrics) RecordRPCRequest(ctx context.Context, command string, statusCode int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("command", strings.TrimSpace(command)),
		attribute.String("status_code", fmt.Sprintf("%d", statusCode)),
	)
	m.rpcRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, orgID, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, orgID, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"org_id":      {},
	"endpoint":    {},
	"status":      {},
	"status_code": {},
	"command":     {},
	"operation":   {},
	"outcome":     {},
	"template":    {},
	"reason":      {},
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
