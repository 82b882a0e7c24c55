package market

import (
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/rebalance/simerr"
)

// Frame is a timestamp-keyed table of named float64 columns. Timestamps are
// strictly ascending; gaps between them are allowed. NaN marks an unknown
// value.
//
// A Frame is immutable once built and safe for concurrent readers. Slices
// handed out by Column and Times share the backing storage and must not be
// modified.
type Frame struct {
	times []time.Time
	cols  []string
	index map[string]int
	data  [][]float64 // column-major: data[col][row]
}

// NewFrame builds a frame from column-major data. Every column must have one
// value per timestamp.
func NewFrame(times []time.Time, cols []string, data [][]float64) (*Frame, error) {
	if len(cols) != len(data) {
		return nil, &simerr.ConfigError{
			Field:    "frame.columns",
			Msg:      "column names and data disagree",
			Expected: fmt.Sprint(len(cols)),
			Actual:   fmt.Sprint(len(data)),
		}
	}
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return nil, &simerr.ConfigError{
				Field: "frame.time",
				Msg: fmt.Sprintf("timestamps must be ascending and unique: row %d (%s) after %s",
					i, times[i].Format(time.RFC3339), times[i-1].Format(time.RFC3339)),
			}
		}
	}

	index := make(map[string]int, len(cols))
	for i, c := range cols {
		if _, dup := index[c]; dup {
			return nil, simerr.Configf("frame.columns", "duplicate column %q", c)
		}
		if len(data[i]) != len(times) {
			return nil, &simerr.ConfigError{
				Field:    "frame." + c,
				Msg:      "column length",
				Expected: fmt.Sprint(len(times)),
				Actual:   fmt.Sprint(len(data[i])),
			}
		}
		index[c] = i
	}

	return &Frame{
		times: times,
		cols:  append([]string(nil), cols...),
		index: index,
		data:  data,
	}, nil
}

func (f *Frame) Len() int { return len(f.times) }

func (f *Frame) Times() []time.Time { return f.times }

func (f *Frame) Time(row int) time.Time {
	if row < 0 || row >= len(f.times) {
		return time.Time{}
	}
	return f.times[row]
}

// Columns returns a copy of the column names in frame order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.cols...)
}

func (f *Frame) Has(col string) bool {
	_, ok := f.index[col]
	return ok
}

// Column returns the values of col.
func (f *Frame) Column(col string) ([]float64, bool) {
	i, ok := f.index[col]
	if !ok {
		return nil, false
	}
	return f.data[i], true
}

// Value returns the value at (row, col), or NaN when either is out of range.
func (f *Frame) Value(row int, col string) float64 {
	i, ok := f.index[col]
	if !ok || row < 0 || row >= len(f.times) {
		return math.NaN()
	}
	return f.data[i][row]
}

// Missing returns the subset of cols the frame does not carry, in order.
func (f *Frame) Missing(cols []string) []string {
	var out []string
	for _, c := range cols {
		if !f.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Slice returns rows [start, end) as a frame sharing storage with f.
func (f *Frame) Slice(start, end int) (*Frame, error) {
	if start < 0 || end > len(f.times) || start > end {
		return nil, &simerr.ShapeError{What: "frame slice end", Expected: len(f.times), Actual: end}
	}
	data := make([][]float64, len(f.data))
	for i := range f.data {
		data[i] = f.data[i][start:end]
	}
	return &Frame{
		times: f.times[start:end],
		cols:  f.cols,
		index: f.index,
		data:  data,
	}, nil
}

// Select returns a frame holding only cols, in the given order.
func (f *Frame) Select(cols []string) (*Frame, error) {
	if missing := f.Missing(cols); len(missing) > 0 {
		return nil, &simerr.ConfigError{
			Field:    "frame.columns",
			Msg:      "select",
			Expected: fmt.Sprint(cols),
			Actual:   fmt.Sprintf("missing %v", missing),
		}
	}
	data := make([][]float64, len(cols))
	for i, c := range cols {
		data[i] = f.data[f.index[c]]
	}
	return NewFrame(f.times, cols, data)
}

// Vector returns the named features of one asset at one row. Features the
// frame does not carry come back as NaN.
func (f *Frame) Vector(row int, asset AssetKey, base []string) FeatureVector {
	v := FeatureVector{
		Asset:  asset,
		Time:   f.Time(row),
		Names:  append([]string(nil), base...),
		Values: make([]float64, len(base)),
	}
	for i, b := range base {
		v.Values[i] = f.Value(row, ColumnName(asset, b))
	}
	return v
}

// TimeSeries returns n timestamps starting at start, step apart.
func TimeSeries(start time.Time, step time.Duration, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * step)
	}
	return out
}
