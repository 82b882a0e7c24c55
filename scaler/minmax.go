package scaler

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/rustyeddy/rebalance/market"
	"github.com/rustyeddy/rebalance/simerr"
)

// MinMaxScaler maps each column linearly so that the fitted minimum becomes 0
// and the fitted maximum becomes 1. Values outside the fitted range land
// outside [0,1]; they are not clipped.
type MinMaxScaler struct {
	Columns []string  `json:"columns,omitempty"`
	DataMin []float64 `json:"data_min"`
	DataMax []float64 `json:"data_max"`
}

// FitMinMax fits one range per column of m, ignoring NaNs. A column with no
// finite value gets the range [0, 0].
func FitMinMax(m market.Matrix) *MinMaxScaler {
	s := &MinMaxScaler{
		Columns: append([]string(nil), m.Columns...),
		DataMin: make([]float64, m.Cols),
		DataMax: make([]float64, m.Cols),
	}
	for c := 0; c < m.Cols; c++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for r := 0; r < m.Rows; r++ {
			v := m.At(r, c)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if lo > hi {
			lo, hi = 0, 0
		}
		s.DataMin[c] = lo
		s.DataMax[c] = hi
	}
	return s
}

func (s *MinMaxScaler) NumFeatures() int { return len(s.DataMin) }

func (s *MinMaxScaler) ExpectedColumns() []string { return s.Columns }

// Transform scales m into a new matrix. A constant column maps to 0.
func (s *MinMaxScaler) Transform(m market.Matrix) (market.Matrix, error) {
	if m.Cols != s.NumFeatures() {
		return market.Matrix{}, &simerr.ShapeError{What: "scaler input width", Expected: s.NumFeatures(), Actual: m.Cols}
	}
	out := market.NewMatrix(m.Rows, m.Cols)
	out.Columns = append([]string(nil), m.Columns...)
	for c := 0; c < m.Cols; c++ {
		span := s.DataMax[c] - s.DataMin[c]
		for r := 0; r < m.Rows; r++ {
			if span == 0 {
				continue
			}
			out.Set(r, c, (m.At(r, c)-s.DataMin[c])/span)
		}
	}
	return out, nil
}

func (s *MinMaxScaler) validate() error {
	if len(s.DataMin) != len(s.DataMax) {
		return &simerr.ShapeError{What: "scaler data_max length", Expected: len(s.DataMin), Actual: len(s.DataMax)}
	}
	if len(s.Columns) > 0 && len(s.Columns) != len(s.DataMin) {
		return &simerr.ShapeError{What: "scaler column names", Expected: len(s.DataMin), Actual: len(s.Columns)}
	}
	return nil
}

// LoadMinMax reads a scaler written by Save.
func LoadMinMax(path string) (*MinMaxScaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}
	s := &MinMaxScaler{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse scaler %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scaler %s: %w", path, err)
	}
	return s, nil
}

// Save writes the scaler as JSON, moving any existing file aside first.
func (s *MinMaxScaler) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal scaler: %w", err)
	}
	if err := backup(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write scaler: %w", err)
	}
	return nil
}
