package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// GetTrade returns a single trade by ID.
func (j *SQLite) GetTrade(tradeID string) (Trade, error) {
	row := j.db.QueryRow(`
		SELECT trade_id, run_id, time, asset, side, price, quantity, notional, fee, reason
		FROM trades
		WHERE trade_id = ?`, tradeID)

	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Trade{}, fmt.Errorf("trade %q not found", tradeID)
	}
	return t, err
}

// ListTrades returns the trades of one run in fill order.
func (j *SQLite) ListTrades(runID string) ([]Trade, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, run_id, time, asset, side, price, quantity, notional, fee, reason
		FROM trades
		WHERE run_id = ?
		ORDER BY time ASC, rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListEquity returns the equity curve of one run.
func (j *SQLite) ListEquity(runID string) ([]EquityPoint, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, net_worth
		FROM equity
		WHERE run_id = ?
		ORDER BY time ASC, rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityPoint
	for rows.Next() {
		var e EquityPoint
		if err := rows.Scan(&e.RunID, &e.Time, &e.NetWorth); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListSteps returns the environment step records of one run.
func (j *SQLite) ListSteps(runID string) ([]StepRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, step, time, value, weights, last_return, sharpe, cost, reward, gaps
		FROM steps
		WHERE run_id = ?
		ORDER BY step ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var (
			s       StepRecord
			weights string
		)
		if err := rows.Scan(&s.RunID, &s.Step, &s.Time, &s.Value, &weights,
			&s.LastReturn, &s.Sharpe, &s.Cost, &s.Reward, &s.Gaps); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(weights), &s.Weights); err != nil {
			return nil, fmt.Errorf("step %d weights: %w", s.Step, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RunIDs lists every run that recorded equity, oldest first.
func (j *SQLite) RunIDs() ([]string, error) {
	rows, err := j.db.Query(`
		SELECT run_id FROM equity GROUP BY run_id ORDER BY MIN(time) ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (Trade, error) {
	var t Trade
	err := s.Scan(&t.ID, &t.RunID, &t.Time, &t.Asset, &t.Side,
		&t.Price, &t.Quantity, &t.Notional, &t.Fee, &t.Reason)
	return t, err
}
