package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	tradeHeader  = []string{"trade_id", "run_id", "time", "asset", "side", "price", "quantity", "notional", "fee", "reason"}
	equityHeader = []string{"run_id", "time", "net_worth"}
	stepHeader   = []string{"run_id", "step", "time", "value", "weights", "last_return", "sharpe", "cost", "reward", "gaps"}
)

// CSVJournal writes trades, equity and steps to three files. An empty path
// skips that stream.
type CSVJournal struct {
	trades, equity, steps *csv.Writer
	files                 []*os.File
}

func NewCSV(tradesPath, equityPath, stepsPath string) (*CSVJournal, error) {
	j := &CSVJournal{}
	var err error
	if j.trades, err = j.open(tradesPath, tradeHeader); err != nil {
		j.Close()
		return nil, err
	}
	if j.equity, err = j.open(equityPath, equityHeader); err != nil {
		j.Close()
		return nil, err
	}
	if j.steps, err = j.open(stepsPath, stepHeader); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) open(path string, header []string) (*csv.Writer, error) {
	if path == "" {
		return nil, nil
	}
	fh, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	j.files = append(j.files, fh)

	w := csv.NewWriter(fh)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	w.Flush()
	return w, w.Error()
}

func (j *CSVJournal) RecordTrade(t Trade) error {
	return write(j.trades, []string{
		t.ID,
		t.RunID,
		t.Time.Format(time.RFC3339),
		t.Asset,
		t.Side,
		f(t.Price),
		f(t.Quantity),
		f(t.Notional),
		f(t.Fee),
		t.Reason,
	})
}

func (j *CSVJournal) RecordEquity(e EquityPoint) error {
	return write(j.equity, []string{
		e.RunID,
		e.Time.Format(time.RFC3339),
		f(e.NetWorth),
	})
}

func (j *CSVJournal) RecordStep(s StepRecord) error {
	ws := make([]string, len(s.Weights))
	for i, w := range s.Weights {
		ws[i] = f(w)
	}
	return write(j.steps, []string{
		s.RunID,
		strconv.Itoa(s.Step),
		s.Time.Format(time.RFC3339),
		f(s.Value),
		strings.Join(ws, ";"),
		f(s.LastReturn),
		f(s.Sharpe),
		f(s.Cost),
		f(s.Reward),
		strconv.Itoa(s.Gaps),
	})
}

func (j *CSVJournal) Close() error {
	var first error
	for _, w := range []*csv.Writer{j.trades, j.equity, j.steps} {
		if w == nil {
			continue
		}
		w.Flush()
		if err := w.Error(); err != nil && first == nil {
			first = err
		}
	}
	for _, fh := range j.files {
		if err := fh.Close(); err != nil && first == nil {
			first = err
		}
	}
	j.files = nil
	return first
}

func write(w *csv.Writer, row []string) error {
	if w == nil {
		return nil
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
