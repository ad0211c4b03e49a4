package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	meterName        = "chesspuzzlekit.postgres"
	metricPrefix     = "puzzlekit_postgres_"
	defaultPoolLabel = "default"
	spanPrefix       = "chesspuzzlekit.postgres."
)

// poolMetrics reports pool gauges for one store, records query latency and
// opens a client span per query. It implements pgx.QueryTracer.
type poolMetrics struct {
	label         string
	attrs         metric.MeasurementOption
	meter         metric.Meter
	tracer        trace.Tracer
	open          metric.Int64ObservableGauge
	inUse         metric.Int64ObservableGauge
	idle          metric.Int64ObservableGauge
	maxConns      metric.Int64ObservableGauge
	queryDuration metric.Float64Histogram
	registration  metric.Registration
}

type queryStartKey struct{}

type queryStart struct {
	at        time.Time
	statement string
}

func newPoolMetrics(meter metric.Meter, tracer trace.Tracer, label string) (*poolMetrics, error) {
	m := &poolMetrics{
		label:  label,
		attrs:  metric.WithAttributes(attribute.String("pool", label)),
		meter:  meter,
		tracer: tracer,
	}
	gauges := []struct {
		dst  *metric.Int64ObservableGauge
		name string
		desc string
	}{
		{&m.open, "connections_open", "Open connections to the puzzle database"},
		{&m.inUse, "connections_in_use", "Connections currently serving a query"},
		{&m.idle, "connections_idle", "Idle connections kept by the pool"},
		{&m.maxConns, "max_open_connections", "Configured pool size"},
	}
	for _, g := range gauges {
		inst, err := meter.Int64ObservableGauge(metricPrefix+g.name, metric.WithDescription(g.desc))
		if err != nil {
			return nil, fmt.Errorf("postgres: gauge %s: %w", g.name, err)
		}
		*g.dst = inst
	}
	hist, err := meter.Float64Histogram(
		metricPrefix+"query_duration_seconds",
		metric.WithDescription("Latency of puzzle queries by statement kind"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: query histogram: %w", err)
	}
	m.queryDuration = hist
	return m, nil
}

// observe starts reporting pool statistics for pool until close is called.
func (m *poolMetrics) observe(pool *pgxpool.Pool) error {
	reg, err := m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := pool.Stat()
		o.ObserveInt64(m.open, int64(stats.TotalConns()), m.attrs)
		o.ObserveInt64(m.inUse, int64(stats.AcquiredConns()), m.attrs)
		o.ObserveInt64(m.idle, int64(stats.IdleConns()), m.attrs)
		o.ObserveInt64(m.maxConns, int64(stats.MaxConns()), m.attrs)
		return nil
	}, m.open, m.inUse, m.idle, m.maxConns)
	if err != nil {
		return fmt.Errorf("postgres: register pool callback: %w", err)
	}
	m.registration = reg
	return nil
}

func (m *poolMetrics) close() {
	if m == nil || m.registration == nil {
		return
	}
	_ = m.registration.Unregister()
	m.registration = nil
}

func (m *poolMetrics) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	kind := statementKind(data.SQL)
	ctx, _ = m.tracer.Start(ctx, spanPrefix+kind,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", kind),
			attribute.String("pool", m.label),
		),
	)
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: time.Now(), statement: kind})
}

func (m *poolMetrics) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	span := trace.SpanFromContext(ctx)
	defer span.End()
	outcome := "ok"
	switch {
	case errors.Is(data.Err, context.Canceled), errors.Is(data.Err, context.DeadlineExceeded):
		outcome = "canceled"
	case data.Err != nil:
		outcome = "error"
	}
	if data.Err != nil {
		span.RecordError(data.Err)
		span.SetStatus(codes.Error, data.Err.Error())
	} else {
		span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	}
	m.queryDuration.Record(ctx, time.Since(start.at).Seconds(), metric.WithAttributes(
		attribute.String("pool", m.label),
		attribute.String("statement", start.statement),
		attribute.String("outcome", outcome),
	))
}

// statementKind returns the lowercased leading keyword of sql.
func statementKind(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(strings.TrimLeft(fields[0], "("))
}

// poolLabel names a pool after its parsed target so URL and keyword DSNs
// for the same database share a label.
func poolLabel(cc *pgx.ConnConfig) string {
	if cc == nil {
		return defaultPoolLabel
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{cc.Host, strconv.FormatUint(uint64(cc.Port), 10), cc.Database} {
		p = strings.Trim(strings.Map(labelRune, strings.ToLower(strings.TrimSpace(p))), "_")
		if p != "" && p != "0" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return defaultPoolLabel
	}
	return strings.Join(parts, "-")
}

func labelRune(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.', r == ':':
		return r
	default:
		return '_'
	}
}
