package market

import (
	"fmt"

	"github.com/rustyeddy/rebalance/simerr"
)

// Matrix is a dense row-major float64 matrix with optional column names.
type Matrix struct {
	Rows    int
	Cols    int
	Columns []string
	Data    []float64
}

func NewMatrix(rows, cols int) Matrix {
	return Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

func (m Matrix) At(r, c int) float64 { return m.Data[r*m.Cols+c] }

func (m Matrix) Set(r, c int, v float64) { m.Data[r*m.Cols+c] = v }

// Row returns row r sharing storage with m.
func (m Matrix) Row(r int) []float64 { return m.Data[r*m.Cols : (r+1)*m.Cols] }

// Column copies column c out of m.
func (m Matrix) Column(c int) []float64 {
	out := make([]float64, m.Rows)
	for r := 0; r < m.Rows; r++ {
		out[r] = m.At(r, c)
	}
	return out
}

// HStack concatenates matrices with the same row count side by side.
func HStack(ms ...Matrix) (Matrix, error) {
	if len(ms) == 0 {
		return Matrix{}, nil
	}
	rows := ms[0].Rows
	cols := 0
	for _, m := range ms {
		if m.Rows != rows {
			return Matrix{}, &simerr.ShapeError{What: "hstack rows", Expected: rows, Actual: m.Rows}
		}
		cols += m.Cols
	}
	out := NewMatrix(rows, cols)
	for r := 0; r < rows; r++ {
		off := 0
		for _, m := range ms {
			copy(out.Data[r*cols+off:], m.Row(r))
			off += m.Cols
		}
	}
	for _, m := range ms {
		out.Columns = append(out.Columns, m.Columns...)
	}
	return out, nil
}

// Window is a fixed-length run of consecutive frame rows over a set of
// columns. Its length always equals the size it was built with.
type Window struct {
	Start   int
	Size    int
	Columns []string
	Values  Matrix
	frame   *Frame
}

// NewWindow takes rows [start, start+size) of cols from f. Asking for rows
// past the end of the frame is a ShapeError: a short window never exists.
func NewWindow(f *Frame, start, size int, cols []string) (Window, error) {
	if size <= 0 {
		return Window{}, simerr.Configf("window.size", "must be positive, got %d", size)
	}
	if start < 0 || start+size > f.Len() {
		return Window{}, &simerr.ShapeError{What: "window end row", Expected: f.Len(), Actual: start + size}
	}
	if missing := f.Missing(cols); len(missing) > 0 {
		return Window{}, &simerr.ConfigError{Field: "window.columns", Msg: fmt.Sprintf("missing %v", missing)}
	}

	m := NewMatrix(size, len(cols))
	m.Columns = append([]string(nil), cols...)
	for c, name := range cols {
		col, _ := f.Column(name)
		for r := 0; r < size; r++ {
			m.Set(r, c, col[start+r])
		}
	}
	sub, err := f.Slice(start, start+size)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, Size: size, Columns: m.Columns, Values: m, frame: sub}, nil
}

func (w Window) Len() int { return w.Values.Rows }

// Flatten returns the window row by row as one vector.
func (w Window) Flatten() []float64 {
	return append([]float64(nil), w.Values.Data...)
}

// Frame returns the window's rows as a frame (all source columns).
func (w Window) Frame() *Frame { return w.frame }
