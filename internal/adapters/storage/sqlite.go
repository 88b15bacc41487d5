// Package storage persists decision records in SQLite so evaluation metrics
// survive process restarts.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/polysim/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	decision_id        TEXT PRIMARY KEY,
	market_id          TEXT NOT NULL,
	token_id           TEXT NOT NULL,
	ts                 DATETIME NOT NULL,
	side               TEXT NOT NULL,
	token_side         TEXT NOT NULL,
	size               REAL NOT NULL,
	entry_price        REAL NOT NULL,
	fair_prob          REAL NOT NULL,
	market_prob        REAL NOT NULL,
	edge               REAL NOT NULL,
	confidence         REAL NOT NULL,
	fill_price         REAL,
	execution_drag     REAL,
	outcome            TEXT,
	final_value        REAL,
	pnl                REAL,
	prediction_correct INTEGER,
	edge_realized      REAL
);
CREATE INDEX IF NOT EXISTS idx_decisions_market ON decisions(market_id);
CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions(ts);
`

// SQLiteStore is a DecisionStore backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path. Use ":memory:"
// for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %s: %w", path, err)
	}
	// The sqlite driver does not handle concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveDecision upserts a decision record.
func (s *SQLiteStore) SaveDecision(ctx context.Context, record *domain.DecisionRecord) error {
	var correct *int
	if record.PredictionCorrect != nil {
		v := 0
		if *record.PredictionCorrect {
			v = 1
		}
		correct = &v
	}
	var outcome *string
	if record.Outcome != nil {
		v := string(*record.Outcome)
		outcome = &v
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (
			decision_id, market_id, token_id, ts, side, token_side, size,
			entry_price, fair_prob, market_prob, edge, confidence,
			fill_price, execution_drag, outcome, final_value, pnl,
			prediction_correct, edge_realized
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(decision_id) DO UPDATE SET
			fill_price = excluded.fill_price,
			execution_drag = excluded.execution_drag,
			outcome = excluded.outcome,
			final_value = excluded.final_value,
			pnl = excluded.pnl,
			prediction_correct = excluded.prediction_correct,
			edge_realized = excluded.edge_realized`,
		record.DecisionID, record.MarketID, record.TokenID,
		record.Timestamp.UTC().Format(time.RFC3339Nano),
		string(record.Side), string(record.TokenSide), record.Size,
		record.EntryPrice, record.FairProb, record.MarketProb,
		record.Edge, record.Confidence,
		record.FillPrice, record.ExecutionDrag, outcome,
		record.FinalValue, record.PnL, correct, record.EdgeRealized,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveDecision: %w", err)
	}
	return nil
}

// LoadDecisions returns all stored decisions ordered by timestamp.
func (s *SQLiteStore) LoadDecisions(ctx context.Context) ([]*domain.DecisionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT decision_id, market_id, token_id, ts, side, token_side, size,
			entry_price, fair_prob, market_prob, edge, confidence,
			fill_price, execution_drag, outcome, final_value, pnl,
			prediction_correct, edge_realized
		FROM decisions
		ORDER BY ts ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadDecisions: %w", err)
	}
	defer rows.Close()

	var records []*domain.DecisionRecord
	for rows.Next() {
		record, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.LoadDecisions: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.LoadDecisions: %w", err)
	}
	return records, nil
}

func scanDecision(rows *sql.Rows) (*domain.DecisionRecord, error) {
	var (
		record    domain.DecisionRecord
		ts        string
		side      string
		tokenSide string
		outcome   sql.NullString
		correct   sql.NullInt64
	)

	err := rows.Scan(
		&record.DecisionID, &record.MarketID, &record.TokenID,
		&ts, &side, &tokenSide, &record.Size,
		&record.EntryPrice, &record.FairProb, &record.MarketProb,
		&record.Edge, &record.Confidence,
		&record.FillPrice, &record.ExecutionDrag, &outcome,
		&record.FinalValue, &record.PnL, &correct, &record.EdgeRealized,
	)
	if err != nil {
		return nil, err
	}

	record.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	record.Side, _ = domain.ParseOrderSide(side)
	if parsed, ok := domain.ParseTokenSide(tokenSide); ok {
		record.TokenSide = parsed
	}
	if outcome.Valid {
		if parsed, ok := domain.ParseTokenSide(outcome.String); ok {
			record.Outcome = &parsed
		}
	}
	if correct.Valid {
		v := correct.Int64 == 1
		record.PredictionCorrect = &v
	}

	return &record, nil
}

// DeleteResolvedBefore prunes resolved decisions older than the cutoff.
// Returns the number of rows removed.
func (s *SQLiteStore) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM decisions WHERE outcome IS NOT NULL AND ts < ?`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("storage.DeleteResolvedBefore: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("storage.DeleteResolvedBefore: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
