package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ScanRunner/internal/domain/models"
	domrepo "ScanRunner/internal/domain/repository"
	pkgch "ScanRunner/pkg/clickhouse"
	applogger "ScanRunner/pkg/logger"
)

const (
	signalsTable = "scanrunner.signals"
	reportsTable = "scanrunner.execution_reports"
)

var signalSchema = []string{
	`CREATE DATABASE IF NOT EXISTS scanrunner`,
	`CREATE TABLE IF NOT EXISTS ` + signalsTable + ` (
        ticker        String,
        date          Date,
        method        LowCardinality(String),
        confidence    Float64,
        signal_count  UInt32,
        weighted_score Float64,
        scanners      Array(String),
        data          String,
        created_at    DateTime DEFAULT now()
    ) ENGINE = MergeTree() ORDER BY (date, ticker)`,
	`CREATE TABLE IF NOT EXISTS ` + reportsTable + ` (
        run_at            DateTime DEFAULT now(),
        success           UInt8,
        scanners_enabled  UInt32,
        scanners_succeeded UInt32,
        scanners_failed   UInt32,
        failed_ids        Array(String),
        signals_total     UInt32,
        unique_tickers    UInt32,
        elapsed_ms        UInt64
    ) ENGINE = MergeTree() ORDER BY run_at`,
}

// CHSignalStore implements SignalStore backed by ClickHouse. Persistence
// runs after aggregation; an insert failure never unwinds an execution.
type CHSignalStore struct {
	db *sql.DB
	ch *pkgch.Client
	l  *applogger.Logger
}

func NewCHSignalStore(ch *pkgch.Client) *CHSignalStore {
	return &CHSignalStore{db: ch.DB(), ch: ch}
}

// SetLogger injects a structured logger.
func (s *CHSignalStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSignalStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, signalSchema)
}

func (s *CHSignalStore) StoreSignals(ctx context.Context, signals []models.AggregatedSignal) error {
	if len(signals) == 0 {
		return nil
	}
	start := time.Now()

	const chunkSize = 2000
	for lo := 0; lo < len(signals); lo += chunkSize {
		hi := lo + chunkSize
		if hi > len(signals) {
			hi = len(signals)
		}

		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*8)
		for _, sig := range signals[lo:hi] {
			if sig.Ticker == "" || sig.Date == "" {
				continue
			}
			data, err := json.Marshal(sig.Data)
			if err != nil {
				data = []byte("{}")
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				sig.Ticker,
				sig.Date,
				sig.Method,
				sig.Confidence,
				uint32(sig.SignalCount),
				sig.WeightedScore,
				sig.ContributingScanners,
				string(data),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ticker, date, method, confidence, signal_count, weighted_score, scanners, data) VALUES %s",
			signalsTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse store_signals insert error",
					applogger.Int("rows", hi-lo),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("store signals: %w", err)
		}
	}

	if s.l != nil {
		s.l.Info("clickhouse store_signals ok",
			applogger.Int("rows", len(signals)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHSignalStore) StoreReport(ctx context.Context, report *models.ExecutionReport) error {
	if report == nil {
		return nil
	}
	q := fmt.Sprintf(`INSERT INTO %s
        (success, scanners_enabled, scanners_succeeded, scanners_failed, failed_ids, signals_total, unique_tickers, elapsed_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, reportsTable)
	success := uint8(0)
	if report.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx, q,
		success,
		uint32(report.Scanners.TotalEnabled),
		uint32(report.Scanners.Succeeded),
		uint32(report.Scanners.Failed),
		report.Scanners.FailedIDs,
		uint32(report.Signals.Total),
		uint32(report.Signals.UniqueTickers),
		uint64(report.Elapsed.Milliseconds()),
	)
	if err != nil {
		return fmt.Errorf("store report: %w", err)
	}
	return nil
}

func (s *CHSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHSignalStore) Close() error {
	return nil // connection managed by pkg client
}

var _ domrepo.SignalStore = (*CHSignalStore)(nil)
