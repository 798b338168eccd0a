package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ChainPilot/internal/domain/models"
	domrepo "ChainPilot/internal/domain/repository"
	pkgch "ChainPilot/pkg/clickhouse"
)

// Audit tables. Decisions and orders are append-only rows keyed by time.
var SchemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS decisions (
        decided_at DateTime64(3),
        tx_signature String,
        wallet String,
        token String,
        direction LowCardinality(String),
        filter_status LowCardinality(String),
        final_score Float64,
        threshold Float64,
        passed UInt8,
        outcome LowCardinality(String),
        size_sol Float64,
        reason String
    ) ENGINE = MergeTree ORDER BY (decided_at, wallet)`,
	`CREATE TABLE IF NOT EXISTS orders (
        created_at DateTime64(3),
        finished_at DateTime64(3),
        id String,
        tx_signature String,
        side LowCardinality(String),
        token String,
        amount_sol Float64,
        slippage_bps Int32,
        status LowCardinality(String),
        retry_count Int32,
        priority Int32,
        last_error String
    ) ENGINE = MergeTree ORDER BY (created_at, id)`,
}

// ClickHouseStorage implements Storage for ClickHouse.
type ClickHouseStorage struct {
	db *sql.DB
	ch *pkgch.Client
}

// NewClickHouseStorage creates ClickHouse-backed audit storage.
func NewClickHouseStorage(ch *pkgch.Client) domrepo.Storage {
	return &ClickHouseStorage{db: ch.DB(), ch: ch}
}

// Init creates the audit tables.
func (s *ClickHouseStorage) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, SchemaStatements)
}

func (s *ClickHouseStorage) StoreDecision(ctx context.Context, rec *models.DecisionRecord) error {
	const q = `INSERT INTO decisions
        (decided_at, tx_signature, wallet, token, direction, filter_status,
         final_score, threshold, passed, outcome, size_sol, reason)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	passed := uint8(0)
	if rec.Passed {
		passed = 1
	}
	_, err := s.db.ExecContext(ctx, q,
		rec.DecidedAt,
		rec.TxSignature,
		rec.Wallet,
		rec.Token,
		string(rec.Direction),
		string(rec.FilterStatus),
		rec.FinalScore,
		rec.Threshold,
		passed,
		string(rec.Outcome),
		rec.SizeSOL,
		rec.Reason,
	)
	if err != nil {
		return fmt.Errorf("store decision: %w", err)
	}
	return nil
}

func (s *ClickHouseStorage) StoreOrder(ctx context.Context, o *models.Order) error {
	const q = `INSERT INTO orders
        (created_at, finished_at, id, tx_signature, side, token, amount_sol,
         slippage_bps, status, retry_count, priority, last_error)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		o.CreatedAt,
		o.FinishedAt,
		o.ID,
		o.TxSignature,
		string(o.Side),
		o.Token,
		o.AmountSOL,
		int32(o.SlippageBps),
		string(o.Status),
		int32(o.RetryCount),
		int32(o.Priority),
		o.LastError,
	)
	if err != nil {
		return fmt.Errorf("store order: %w", err)
	}
	return nil
}

func (s *ClickHouseStorage) QueryOrders(ctx context.Context, status string, from, to time.Time, limit int) ([]*models.Order, error) {
	q := `SELECT created_at, finished_at, id, tx_signature, side, token,
          amount_sol, slippage_bps, status, retry_count, priority, last_error
          FROM orders WHERE created_at >= ? AND created_at <= ?`
	args := []interface{}{from, to}
	if status != "" {
		q += " AND status = ?"
		args = append(args, status)
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		var o models.Order
		var side, st string
		var slippage, retries, priority int32
		if err := rows.Scan(&o.CreatedAt, &o.FinishedAt, &o.ID, &o.TxSignature,
			&side, &o.Token, &o.AmountSOL, &slippage, &st, &retries, &priority,
			&o.LastError); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Side = models.TradeDirection(side)
		o.Status = models.OrderStatus(st)
		o.SlippageBps = int(slippage)
		o.RetryCount = int(retries)
		o.Priority = int(priority)
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStorage) Close() error {
	return nil // connection owned by pkg client
}
