package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t Trade) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, run_id, time, asset, side, price, quantity, notional, fee, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.RunID, t.Time.UTC(), t.Asset, t.Side,
		t.Price, t.Quantity, t.Notional, t.Fee, t.Reason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquityPoint) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (run_id, time, net_worth)
		VALUES (?, ?, ?)`,
		e.RunID, e.Time.UTC(), e.NetWorth,
	)
	return err
}

func (j *SQLite) RecordStep(s StepRecord) error {
	weights, err := json.Marshal(s.Weights)
	if err != nil {
		return err
	}
	_, err = j.db.Exec(`
		INSERT INTO steps
		(run_id, step, time, value, weights, last_return, sharpe, cost, reward, gaps)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.Step, s.Time.UTC(), s.Value, string(weights),
		s.LastReturn, s.Sharpe, s.Cost, s.Reward, s.Gaps,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
