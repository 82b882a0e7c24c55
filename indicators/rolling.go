package indicators

import (
	"fmt"
	"math"
)

// RollingWindow is a bounded FIFO of the most recent observations. Once full,
// each Update evicts the oldest value.
type RollingWindow struct {
	size int
	buf  []float64
	head int
	n    int
}

// NewRollingWindow creates a window holding at most size values.
func NewRollingWindow(size int) *RollingWindow {
	if size < 1 {
		size = 1
	}
	return &RollingWindow{size: size, buf: make([]float64, size)}
}

func (w *RollingWindow) Name() string { return fmt.Sprintf("WINDOW(%d)", w.size) }

func (w *RollingWindow) Warmup() int { return w.size }

func (w *RollingWindow) Reset() {
	w.head = 0
	w.n = 0
}

func (w *RollingWindow) Update(x float64) {
	w.buf[w.head] = x
	w.head = (w.head + 1) % w.size
	if w.n < w.size {
		w.n++
	}
}

func (w *RollingWindow) Ready() bool { return w.n >= w.size }

// Value is the mean of the window once it is full.
func (w *RollingWindow) Value() float64 {
	if !w.Ready() {
		return 0
	}
	return w.Mean()
}

func (w *RollingWindow) Len() int { return w.n }

func (w *RollingWindow) Cap() int { return w.size }

// Last returns the most recent value, 0 when empty.
func (w *RollingWindow) Last() float64 {
	if w.n == 0 {
		return 0
	}
	return w.buf[(w.head-1+w.size)%w.size]
}

// Values returns the window contents oldest first.
func (w *RollingWindow) Values() []float64 {
	out := make([]float64, w.n)
	start := (w.head - w.n + w.size) % w.size
	for i := 0; i < w.n; i++ {
		out[i] = w.buf[(start+i)%w.size]
	}
	return out
}

func (w *RollingWindow) Mean() float64 {
	if w.n == 0 {
		return 0
	}
	return Mean(w.Values())
}

// Std is the population standard deviation of the window.
func (w *RollingWindow) Std() float64 {
	return Std(w.Values())
}

// SampleStd is the n-1 standard deviation of the window.
func (w *RollingWindow) SampleStd() float64 {
	return SampleStd(w.Values())
}

func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Std is the population (ddof=0) standard deviation.
func Std(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return math.Sqrt(sumSq(xs) / float64(len(xs)))
}

// SampleStd is the sample (ddof=1) standard deviation; NaN for fewer than two
// values.
func SampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return math.Sqrt(sumSq(xs) / float64(len(xs)-1))
}

func sumSq(xs []float64) float64 {
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return ss
}
