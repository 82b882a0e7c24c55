package scaler

import (
	"fmt"
	"math"
	"strings"

	"github.com/rustyeddy/rebalance/indicators"
	"github.com/rustyeddy/rebalance/market"
	"github.com/rustyeddy/rebalance/simerr"
)

// Report describes how far an alignment had to degrade. Nothing in it is an
// error, but callers should look at Degraded before trusting the output.
type Report struct {
	Expected   int
	Matched    int
	ZeroFilled []string // targets with no live column
	Reused     []string // targets served by a source column already used
	NaNFilled  int      // NaN cells filled from neighbours
	NaNZeroed  int      // NaN cells with no neighbour, set to 0
}

func (r Report) Degraded() bool {
	return len(r.ZeroFilled) > 0 || len(r.Reused) > 0 || r.NaNZeroed > 0
}

func (r Report) String() string {
	return fmt.Sprintf("expected=%d matched=%d zero_filled=%d reused=%d nan_filled=%d nan_zeroed=%d",
		r.Expected, r.Matched, len(r.ZeroFilled), len(r.Reused), r.NaNFilled, r.NaNZeroed)
}

// Merge folds o into r, as when two scalers' outputs are stacked.
func (r *Report) Merge(o Report) {
	r.Expected += o.Expected
	r.Matched += o.Matched
	r.ZeroFilled = append(r.ZeroFilled, o.ZeroFilled...)
	r.Reused = append(r.Reused, o.Reused...)
	r.NaNFilled += o.NaNFilled
	r.NaNZeroed += o.NaNZeroed
}

// TargetColumns resolves the ordered list of names an alignment produces.
// An explicit order wins; otherwise baseCols is tiled to the target width,
// which must be a whole multiple of len(baseCols). A manifest target must
// record exactly baseCols as its base feature order.
func TargetColumns(baseCols []string, target Target) ([]string, error) {
	if len(baseCols) == 0 {
		return nil, simerr.Configf("base_cols", "must not be empty")
	}
	if target == nil {
		return nil, simerr.Configf("target", "no scaler or manifest given")
	}
	if m, ok := target.(*Manifest); ok {
		if err := m.Validate(baseCols); err != nil {
			return nil, err
		}
	}

	names := target.ExpectedColumns()
	width := target.NumFeatures()
	if len(names) > 0 {
		if width > 0 && width != len(names) {
			return nil, &simerr.ReproducibilityError{What: "scaler feature count vs column order", Expected: len(names), Actual: width}
		}
		return append([]string(nil), names...), nil
	}
	if width <= 0 {
		return nil, simerr.Configf("target", "exposes neither a column order nor a feature count")
	}
	if width%len(baseCols) != 0 {
		return nil, &simerr.ReproducibilityError{
			What:     fmt.Sprintf("scaler width is not a multiple of %d base features", len(baseCols)),
			Expected: fmt.Sprintf("k*%d", len(baseCols)),
			Actual:   width,
		}
	}
	out := make([]string, 0, width)
	for len(out) < width {
		out = append(out, baseCols...)
	}
	return out, nil
}

// Align maps the columns of window onto the target's order and width.
//
// Each target name takes the window column of the same name when there is
// one. Otherwise it takes a column following the {asset}_{base} convention for
// the same base feature: the k-th such column for the k-th occurrence of that
// base in the target list, else the first. A target with no match is filled
// with zeros. NaNs are filled forward then backward within the column and
// anything left becomes 0. The output always has exactly one column per target
// name, in target order.
func Align(window *market.Frame, baseCols []string, target Target) (market.Matrix, Report, error) {
	targets, err := TargetColumns(baseCols, target)
	if err != nil {
		return market.Matrix{}, Report{}, err
	}

	rows := 0
	var cols []string
	if window != nil {
		rows = window.Len()
		cols = window.Columns()
	}

	// bucket live columns by the base feature they carry
	byBase := make(map[string][]string)
	for _, c := range cols {
		if b := baseOf(c, baseCols); b != "" {
			byBase[b] = append(byBase[b], c)
		}
	}

	out := market.NewMatrix(rows, len(targets))
	out.Columns = targets
	rep := Report{Expected: len(targets)}
	seen := make(map[string]int)
	used := make(map[string]bool)

	for j, name := range targets {
		b := baseOf(name, baseCols)
		k := seen[b]
		seen[b]++

		src := ""
		if window != nil && window.Has(name) {
			src = name
		} else if b != "" {
			if cands := byBase[b]; len(cands) > 0 {
				if k < len(cands) {
					src = cands[k]
				} else {
					src = cands[0]
				}
			}
		}

		if src == "" {
			rep.ZeroFilled = append(rep.ZeroFilled, name)
			continue
		}
		if used[src] {
			rep.Reused = append(rep.Reused, name)
		}
		used[src] = true
		rep.Matched++

		col, _ := window.Column(src)
		nans := 0
		for _, v := range col {
			if math.IsNaN(v) {
				nans++
			}
		}
		filled, zeroed := indicators.Fill(col, 0)
		rep.NaNFilled += nans - zeroed
		rep.NaNZeroed += zeroed
		for r := 0; r < rows; r++ {
			out.Set(r, j, filled[r])
		}
	}
	return out, rep, nil
}

// baseOf returns the longest base feature that col is named after, either
// exactly or as an "{asset}_{base}" suffix. "" means no base matches.
func baseOf(col string, baseCols []string) string {
	best := ""
	for _, b := range baseCols {
		if col != b && !strings.HasSuffix(col, "_"+b) {
			continue
		}
		if len(b) > len(best) {
			best = b
		}
	}
	return best
}
