// Package indicators provides the small set of return and volatility
// calculations the engines need. Feature engineering proper happens upstream;
// these stand in for it where a run needs trailing volatility or a signal.
package indicators

// Indicator computes a single streaming value from a series of observations.
// It is deterministic and safe to use in replay and backtests.
type Indicator interface {
	// Name returns a stable identifier like "STD(24)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next observation.
	Update(x float64)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool

	// Value returns the current value, 0 before Ready.
	Value() float64
}
