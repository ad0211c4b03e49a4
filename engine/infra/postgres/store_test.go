package postgres

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestConfigDSN(t *testing.T) {
	t.Run("Should prefer the connection string", func(t *testing.T) {
		cfg := &Config{ConnString: "postgres://a@b/c", Host: "ignored"}
		assert.Equal(t, "postgres://a@b/c", cfg.DSN())
	})
	t.Run("Should assemble a URL from the fields", func(t *testing.T) {
		cfg := &Config{Host: "db", Port: "6543", User: "chess", Password: "p@ss", DBName: "puzzles"}
		assert.Equal(t, "postgres://chess:p%40ss@db:6543/puzzles?sslmode=disable", cfg.DSN())
	})
	t.Run("Should default host and port", func(t *testing.T) {
		cfg := &Config{DBName: "puzzles", SSLMode: "require"}
		assert.Equal(t, "postgres://localhost:5432/puzzles?sslmode=require", cfg.DSN())
	})
}

func TestConnBounds(t *testing.T) {
	t.Run("Should use defaults when unset", func(t *testing.T) {
		maxConns, minConns := connBounds(0, 0)
		assert.Equal(t, int32(defaultMaxConns), maxConns)
		assert.Zero(t, minConns)
	})
	t.Run("Should clamp idle connections to the pool size", func(t *testing.T) {
		maxConns, minConns := connBounds(4, 9)
		assert.Equal(t, int32(4), maxConns)
		assert.Equal(t, int32(4), minConns)
	})
	t.Run("Should clamp oversized and negative values", func(t *testing.T) {
		maxConns, minConns := connBounds(math.MaxInt32+1, -3)
		assert.Equal(t, int32(math.MaxInt32), maxConns)
		assert.Zero(t, minConns)
	})
}

func TestPoolConfig(t *testing.T) {
	t.Run("Should make read-only stores default to read-only transactions", func(t *testing.T) {
		poolCfg, err := poolConfig(&Config{Host: "db.local", DBName: "puzzles", ReadOnly: true, MaxOpenConns: 3})
		require.NoError(t, err)
		assert.Equal(t, "on", poolCfg.ConnConfig.RuntimeParams["default_transaction_read_only"])
		assert.Equal(t, applicationName, poolCfg.ConnConfig.RuntimeParams["application_name"])
		assert.Equal(t, int32(3), poolCfg.MaxConns)
		assert.Equal(t, defaultConnectTimeout, poolCfg.ConnConfig.ConnectTimeout)
	})
	t.Run("Should leave writable stores alone and keep a caller application name", func(t *testing.T) {
		poolCfg, err := poolConfig(&Config{ConnString: "postgres://chess@db.local/puzzles?application_name=trainer"})
		require.NoError(t, err)
		assert.NotContains(t, poolCfg.ConnConfig.RuntimeParams, "default_transaction_read_only")
		assert.Equal(t, "trainer", poolCfg.ConnConfig.RuntimeParams["application_name"])
	})
	t.Run("Should reject an unparsable DSN", func(t *testing.T) {
		_, err := poolConfig(&Config{ConnString: "postgres://%zz"})
		assert.ErrorContains(t, err, "postgres: parse config")
	})
}

func TestPoolLabel(t *testing.T) {
	t.Run("Should label by host port and database", func(t *testing.T) {
		cc, err := pgx.ParseConfig("host=DB.Local port=5432 dbname=puzzles")
		require.NoError(t, err)
		assert.Equal(t, "db.local-5432-puzzles", poolLabel(cc))
	})
	t.Run("Should fall back to the default label", func(t *testing.T) {
		assert.Equal(t, defaultPoolLabel, poolLabel(nil))
	})
	t.Run("Should extract statement kinds", func(t *testing.T) {
		assert.Equal(t, "select", statementKind("  SELECT 1"))
		assert.Equal(t, "with", statementKind("(WITH x AS (SELECT 1) SELECT * FROM x)"))
		assert.Equal(t, "unknown", statementKind(""))
	})
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func newTracedMetrics(t *testing.T) (*poolMetrics, *sdkmetric.ManualReader, *tracetest.SpanRecorder) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	m, err := newPoolMetrics(provider.Meter(meterName), tp.Tracer(meterName), "db.local-5432-puzzles")
	require.NoError(t, err)
	return m, reader, spans
}

func TestPoolMetrics(t *testing.T) {
	newMetrics := func(t *testing.T) (*poolMetrics, *sdkmetric.ManualReader) {
		t.Helper()
		m, reader, _ := newTracedMetrics(t)
		return m, reader
	}
	t.Run("Should observe pool gauges for the attached pool", func(t *testing.T) {
		m, reader := newMetrics(t)
		poolCfg, err := pgxpool.ParseConfig("postgres://chess@db.local:5432/puzzles")
		require.NoError(t, err)
		poolCfg.MaxConns = 7
		pool, err := pgxpool.NewWithConfig(t.Context(), poolCfg)
		require.NoError(t, err)
		t.Cleanup(pool.Close)
		require.NoError(t, m.observe(pool))

		got := collectMetrics(t, reader)
		gauge, ok := got[metricPrefix+"max_open_connections"].Data.(metricdata.Gauge[int64])
		require.True(t, ok)
		require.Len(t, gauge.DataPoints, 1)
		assert.Equal(t, int64(7), gauge.DataPoints[0].Value)
		label, _ := gauge.DataPoints[0].Attributes.Value("pool")
		assert.Equal(t, "db.local-5432-puzzles", label.AsString())

		m.close()
		m.close()
		assert.Nil(t, m.registration)
	})
	t.Run("Should record query latency by statement and outcome", func(t *testing.T) {
		m, reader := newMetrics(t)
		ctx := m.TraceQueryStart(t.Context(), nil, pgx.TraceQueryStartData{SQL: "SELECT * FROM puzzles"})
		m.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
		ctx = m.TraceQueryStart(t.Context(), nil, pgx.TraceQueryStartData{SQL: "INSERT INTO puzzles"})
		m.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("boom")})
		m.TraceQueryEnd(t.Context(), nil, pgx.TraceQueryEndData{})

		got := collectMetrics(t, reader)
		hist, ok := got[metricPrefix+"query_duration_seconds"].Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		outcomes := map[string]string{}
		for _, dp := range hist.DataPoints {
			assert.Equal(t, uint64(1), dp.Count)
			stmt, _ := dp.Attributes.Value(attribute.Key("statement"))
			outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
			outcomes[stmt.AsString()] = outcome.AsString()
		}
		assert.Equal(t, map[string]string{"select": "ok", "insert": "error"}, outcomes)
	})
	t.Run("Should open one client span per query", func(t *testing.T) {
		m, _, spans := newTracedMetrics(t)
		ctx := m.TraceQueryStart(t.Context(), nil, pgx.TraceQueryStartData{SQL: "SELECT * FROM puzzles"})
		m.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 3")})
		ctx = m.TraceQueryStart(t.Context(), nil, pgx.TraceQueryStartData{SQL: "DELETE FROM puzzles"})
		m.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("read-only transaction")})

		ended := spans.Ended()
		require.Len(t, ended, 2)
		assert.Equal(t, spanPrefix+"select", ended[0].Name())
		assert.Equal(t, trace.SpanKindClient, ended[0].SpanKind())
		assert.Contains(t, ended[0].Attributes(), attribute.Int64("db.rows_affected", 3))
		assert.Equal(t, codes.Unset, ended[0].Status().Code)
		assert.Equal(t, spanPrefix+"delete", ended[1].Name())
		assert.Equal(t, codes.Error, ended[1].Status().Code)
		assert.Equal(t, "read-only transaction", ended[1].Status().Description)
		require.Len(t, ended[1].Events(), 1)
		assert.Equal(t, "exception", ended[1].Events()[0].Name)
	})
}
