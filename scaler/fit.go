package scaler

import (
	"math"
	"slices"
	"strings"

	"github.com/rustyeddy/rebalance/indicators"
	"github.com/rustyeddy/rebalance/market"
	"github.com/rustyeddy/rebalance/simerr"
)

// DefaultPVTokens are the column suffixes that go to the price/volume scaler.
// Every other column goes to the indicator scaler.
var DefaultPVTokens = []string{
	"open_div_atr",
	"high_div_atr",
	"low_div_atr",
	"close_div_atr",
	"volume_div_atr",
	"body_size_norm_atr",
}

// FitReport lists columns the fit could not use.
type FitReport struct {
	Missing []string // {asset}_{base} columns absent from the frame
	Dropped []string // columns with no finite value at all
}

// Fit builds a manifest and both scalers from frame. Columns are ordered by
// sorted asset then by base, and partitioned by pvTokens suffixes. Gaps are
// filled forward then backward before fitting; all-NaN columns are dropped.
func Fit(frame *market.Frame, assets, base, pvTokens []string) (*Artifacts, FitReport, error) {
	var rep FitReport
	if frame == nil || frame.Len() == 0 {
		return nil, rep, simerr.Configf("frame", "no rows to fit on")
	}
	if len(assets) == 0 {
		return nil, rep, simerr.Configf("data.assets", "must not be empty")
	}
	if len(base) == 0 {
		return nil, rep, simerr.Configf("data.base_features", "must not be empty")
	}
	if len(pvTokens) == 0 {
		pvTokens = DefaultPVTokens
	}

	sorted := slices.Clone(assets)
	slices.Sort(sorted)

	var ordered []string
	filled := make(map[string][]float64)
	for _, a := range sorted {
		for _, b := range base {
			col := market.ColumnName(market.AssetKey(a), b)
			raw, ok := frame.Column(col)
			if !ok {
				rep.Missing = append(rep.Missing, col)
				continue
			}
			xs := indicators.BackFill(indicators.ForwardFill(raw))
			if allNaN(xs) {
				rep.Dropped = append(rep.Dropped, col)
				continue
			}
			filled[col] = xs
			ordered = append(ordered, col)
		}
	}

	var pv, ind []string
	for _, c := range ordered {
		if hasAnySuffix(c, pvTokens) {
			pv = append(pv, c)
		} else {
			ind = append(ind, c)
		}
	}
	if len(pv) == 0 {
		return nil, rep, simerr.Configf("scaler.pv_tokens", "no columns match %v", pvTokens)
	}
	if len(ind) == 0 {
		return nil, rep, simerr.Configf("data.base_features", "no indicator columns left to fit")
	}

	m := &Manifest{
		Assets:          sorted,
		BaseFeatures:    slices.Clone(base),
		OrderedCols:     ordered,
		PVFeatureOrder:  pv,
		IndFeatureOrder: ind,
		FeatureCounts:   FeatureCounts{PV: len(pv), Ind: len(ind), Total: len(pv) + len(ind)},
	}
	return &Artifacts{
		Manifest: m,
		PV:       FitMinMax(matrixOf(filled, pv, frame.Len())),
		Ind:      FitMinMax(matrixOf(filled, ind, frame.Len())),
	}, rep, nil
}

func matrixOf(cols map[string][]float64, names []string, rows int) market.Matrix {
	m := market.NewMatrix(rows, len(names))
	m.Columns = slices.Clone(names)
	for j, n := range names {
		for r, v := range cols[n] {
			m.Set(r, j, v)
		}
	}
	return m
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, t := range suffixes {
		if strings.HasSuffix(s, t) {
			return true
		}
	}
	return false
}

func allNaN(xs []float64) bool {
	for _, x := range xs {
		if !math.IsNaN(x) {
			return false
		}
	}
	return true
}
