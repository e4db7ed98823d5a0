package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBInstrumentationConfig controls what gets attached to the gorm handle:
// the otelgorm plugin for a span per statement, a callback pair that feeds
// query counters/latency/slow-query metrics, and a sampler that reports
// connection pool state from sql.DB.Stats().
type DBInstrumentationConfig struct {
	TraceQueries       bool
	RecordStatements   bool // bind variables end up in span attributes; dev only
	CollectMetrics     bool
	SlowQueryThreshold time.Duration // default 200ms
	PoolStatsInterval  time.Duration // default 15s
}

// DefaultDBInstrumentationConfig enables everything except statement
// capture.
func DefaultDBInstrumentationConfig() DBInstrumentationConfig {
	return DBInstrumentationConfig{
		TraceQueries:       true,
		CollectMetrics:     true,
		SlowQueryThreshold: 200 * time.Millisecond,
		PoolStatsInterval:  15 * time.Second,
	}
}

// DBInstrumentation owns the metric instruments and the pool sampler
// goroutine. Close stops the sampler; the gorm callbacks stay registered
// for the life of the handle.
type DBInstrumentation struct {
	cfg DBInstrumentationConfig
	log *zap.Logger

	queries *Counter
	latency *Histogram
	slow    *Counter
	pool    *Gauge
	poolMax *Gauge

	sqlDB *sql.DB
	stop  chan struct{}
	done  sync.WaitGroup
	once  sync.Once
}

// InstrumentDB attaches tracing and metrics hooks to db. Either side can
// be disabled independently; with both off it returns an inert handle.
func InstrumentDB(db *gorm.DB, mp *MeterProvider, cfg DBInstrumentationConfig, log *zap.Logger) (*DBInstrumentation, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.PoolStatsInterval == 0 {
		cfg.PoolStatsInterval = 15 * time.Second
	}

	ins := &DBInstrumentation{cfg: cfg, log: log, stop: make(chan struct{})}

	if cfg.TraceQueries {
		opts := []otelgorm.Option{otelgorm.WithDBName("postgresql")}
		if !cfg.RecordStatements {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return nil, fmt.Errorf("register otelgorm: %w", err)
		}
	}

	metricsOn := cfg.CollectMetrics && mp != nil && mp.IsEnabled()
	if metricsOn {
		if err := ins.buildInstruments(mp.Meter("db.client")); err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("unwrap sql.DB: %w", err)
		}
		ins.sqlDB = sqlDB
	}

	if cfg.TraceQueries || metricsOn {
		if err := ins.hook(db); err != nil {
			return nil, err
		}
	}
	if metricsOn {
		ins.startPoolSampler()
	}

	log.Info("Database instrumentation attached",
		zap.Bool("tracing", cfg.TraceQueries),
		zap.Bool("metrics", metricsOn),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
	)
	return ins, nil
}

func (ins *DBInstrumentation) buildInstruments(meter metric.Meter) error {
	var err error
	if ins.queries, err = NewCounter(meter,
		"db_query_total", "Statements executed, by operation", "{query}"); err != nil {
		return err
	}
	if ins.latency, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Statement latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return err
	}
	if ins.slow, err = NewCounter(meter,
		"db_slow_query_total", "Statements slower than the configured threshold, by table", "{query}"); err != nil {
		return err
	}
	if ins.pool, err = NewGauge(meter,
		"db_pool_connections", "Pool connections by state", "{connection}"); err != nil {
		return err
	}
	if ins.poolMax, err = NewGauge(meter,
		"db_pool_connections_max", "Configured pool ceiling", "{connection}"); err != nil {
		return err
	}
	return nil
}

type queryClockKey struct{}

// hook registers a begin/finish callback pair around every gorm operation
// kind. Row and Raw carry no operation of their own; the finish callback
// sniffs the verb from the statement text.
func (ins *DBInstrumentation) hook(db *gorm.DB) error {
	begin := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryClockKey{}, time.Now())
		}
	}

	points := []struct {
		name   string
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", "INSERT", db.Callback().Create().Before("gorm:create").Register, db.Callback().Create().After("gorm:create").Register},
		{"query", "SELECT", db.Callback().Query().Before("gorm:query").Register, db.Callback().Query().After("gorm:query").Register},
		{"update", "UPDATE", db.Callback().Update().Before("gorm:update").Register, db.Callback().Update().After("gorm:update").Register},
		{"delete", "DELETE", db.Callback().Delete().Before("gorm:delete").Register, db.Callback().Delete().After("gorm:delete").Register},
		{"row", "", db.Callback().Row().Before("gorm:row").Register, db.Callback().Row().After("gorm:row").Register},
		{"raw", "", db.Callback().Raw().Before("gorm:raw").Register, db.Callback().Raw().After("gorm:raw").Register},
	}
	for _, pt := range points {
		if err := pt.before("margincraft:db_clock_"+pt.name, begin); err != nil {
			return err
		}
		op := pt.op
		if err := pt.after("margincraft:db_observe_"+pt.name, func(tx *gorm.DB) { ins.observe(tx, op) }); err != nil {
			return err
		}
	}
	return nil
}

// observe runs after each statement: it tags the active span and feeds
// the query metrics. ErrRecordNotFound is an expected outcome and never
// marks the span as failed.
func (ins *DBInstrumentation) observe(tx *gorm.DB, op string) {
	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if op == "" {
		op = sqlVerb(tx.Statement.SQL.String())
	}

	var elapsed time.Duration
	if start, ok := ctx.Value(queryClockKey{}).(time.Time); ok {
		elapsed = time.Since(start)
	}
	slow := elapsed > ins.cfg.SlowQueryThreshold

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
		if tx.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
		}
		if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			span.RecordError(tx.Error)
			span.SetStatus(codes.Error, tx.Error.Error())
		}
		if slow {
			span.AddEvent("slow_query", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", ins.cfg.SlowQueryThreshold.Milliseconds()),
			))
		}
	}

	if ins.queries == nil {
		return
	}
	ins.queries.Inc(ctx, AttrDBOperation.String(op))
	ins.latency.RecordDuration(ctx, elapsed, AttrDBOperation.String(op))
	if slow {
		table := tx.Statement.Table
		if table == "" {
			table = "unknown"
		}
		ins.slow.Inc(ctx, AttrDBTable.String(table))
	}
}

// sqlVerb classifies a raw statement by its leading keyword.
func sqlVerb(stmt string) string {
	stmt = strings.ToUpper(strings.TrimSpace(stmt))
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(stmt, verb) {
			return verb
		}
	}
	return "OTHER"
}

func (ins *DBInstrumentation) startPoolSampler() {
	ins.done.Add(1)
	go func() {
		defer ins.done.Done()

		ticker := time.NewTicker(ins.cfg.PoolStatsInterval)
		defer ticker.Stop()

		ins.samplePool()
		for {
			select {
			case <-ticker.C:
				ins.samplePool()
			case <-ins.stop:
				return
			}
		}
	}()
}

// samplePool reports Idle, InUse and their sum. WaitCount is cumulative
// rather than a pool state, so it is not reported here.
func (ins *DBInstrumentation) samplePool() {
	ctx := context.Background()
	stats := ins.sqlDB.Stats()

	ins.poolMax.Record(ctx, int64(stats.MaxOpenConnections))
	ins.pool.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	ins.pool.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	ins.pool.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// Close stops the pool sampler. Safe to call more than once.
func (ins *DBInstrumentation) Close() {
	ins.once.Do(func() {
		close(ins.stop)
		ins.done.Wait()
	})
}
