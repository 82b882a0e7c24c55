// Package scaler reconciles live feature columns with the column order and
// width a fitted normalizer expects, and owns the manifest that records them.
package scaler

// Target is whatever an alignment is aimed at. ExpectedColumns may be empty
// when only the width is known; NumFeatures is 0 when the width is unknown.
type Target interface {
	ExpectedColumns() []string
	NumFeatures() int
}

// Columns is an explicit target order.
type Columns []string

func (c Columns) ExpectedColumns() []string { return c }
func (c Columns) NumFeatures() int          { return len(c) }

// Width is a target known only by its feature count.
type Width int

func (w Width) ExpectedColumns() []string { return nil }
func (w Width) NumFeatures() int          { return int(w) }
