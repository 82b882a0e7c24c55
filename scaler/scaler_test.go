package scaler

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rustyeddy/rebalance/market"
	"github.com/rustyeddy/rebalance/metrics"
	"github.com/rustyeddy/rebalance/simerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0   = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base = []string{"close_div_atr", "rsi"}
)

// liveFrame has two assets with the base features plus raw closes.
func liveFrame(t *testing.T) *market.Frame {
	t.Helper()
	nan := math.NaN()
	f, err := market.NewFrame(
		market.TimeSeries(t0, time.Hour, 4),
		[]string{"btc_close", "btc_close_div_atr", "btc_rsi", "eth_close", "eth_close_div_atr", "eth_rsi"},
		[][]float64{
			{100, 101, 102, 103},
			{1.0, 1.1, 1.2, 1.3},
			{40, nan, 60, 70},
			{10, 11, 12, 13},
			{2.0, 2.1, 2.2, 2.3},
			{nan, nan, nan, nan},
		},
	)
	require.NoError(t, err)
	return f
}

func TestAlignWidthAlwaysMatchesTarget(t *testing.T) {
	t.Parallel()

	f := liveFrame(t)
	tests := []struct {
		name   string
		target Target
		width  int
	}{
		{"explicit order", Columns{"btc_rsi", "eth_close_div_atr"}, 2},
		{"tiled width", Width(6), 6},
		{"manifest", &Manifest{OrderedCols: []string{"btc_close_div_atr", "btc_rsi", "sol_close_div_atr", "sol_rsi"}}, 4},
		{"scaler", &MinMaxScaler{DataMin: make([]float64, 4), DataMax: make([]float64, 4)}, 4},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, rep, err := Align(f, base, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.width, m.Cols)
			assert.Equal(t, f.Len(), m.Rows)
			assert.Len(t, m.Columns, tt.width)
			assert.Equal(t, tt.width, rep.Expected)
		})
	}
}

func TestAlignZeroMatchesGivesZeroMatrix(t *testing.T) {
	t.Parallel()

	f, err := market.NewFrame(market.TimeSeries(t0, time.Hour, 3), []string{"btc_volume"}, [][]float64{{1, 2, 3}})
	require.NoError(t, err)

	m, rep, err := Align(f, base, Width(4))
	require.NoError(t, err)
	assert.Equal(t, 4, m.Cols)
	assert.Equal(t, 3, m.Rows)
	for _, v := range m.Data {
		assert.Equal(t, 0.0, v)
	}
	assert.Equal(t, 0, rep.Matched)
	assert.Len(t, rep.ZeroFilled, 4)
	assert.True(t, rep.Degraded())

	// a nil window degrades the same way
	m, _, err = Align(nil, base, Columns{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Cols)
	assert.Equal(t, 0, m.Rows)
}

func TestAlignMatching(t *testing.T) {
	t.Parallel()

	f := liveFrame(t)
	m, rep, err := Align(f, base, Width(4))
	require.NoError(t, err)

	// tiled: close_div_atr, rsi, close_div_atr, rsi -> btc then eth
	assert.Equal(t, []string{"close_div_atr", "rsi", "close_div_atr", "rsi"}, m.Columns)
	assert.Equal(t, []float64{1.0, 1.1, 1.2, 1.3}, m.Column(0))
	assert.Equal(t, []float64{40, 40, 60, 70}, m.Column(1))
	assert.Equal(t, []float64{2.0, 2.1, 2.2, 2.3}, m.Column(2))
	assert.Equal(t, []float64{0, 0, 0, 0}, m.Column(3))
	assert.Equal(t, 4, rep.Matched)
	assert.Equal(t, 1, rep.NaNFilled)
	assert.Equal(t, 4, rep.NaNZeroed)
	assert.Empty(t, rep.ZeroFilled)

	// more tiles than live assets reuse the first match
	m, rep, err = Align(f, base, Width(6))
	require.NoError(t, err)
	assert.Equal(t, m.Column(0), m.Column(4))
	assert.Equal(t, []string{"close_div_atr", "rsi"}, rep.Reused)
}

func TestAlignExplicitOrderPrefersExactThenPosition(t *testing.T) {
	t.Parallel()

	f := liveFrame(t)
	m, rep, err := Align(f, base, Columns{"eth_close_div_atr", "crypto_a_close_div_atr", "crypto_b_close_div_atr", "btc_vwap"})
	require.NoError(t, err)
	assert.Equal(t, []float64{2.0, 2.1, 2.2, 2.3}, m.Column(0))
	// second occurrence of the base takes the second live column (eth)
	assert.Equal(t, []float64{2.0, 2.1, 2.2, 2.3}, m.Column(1))
	// third falls back to the first (btc)
	assert.Equal(t, []float64{1.0, 1.1, 1.2, 1.3}, m.Column(2))
	assert.Equal(t, []string{"btc_vwap"}, rep.ZeroFilled)
}

func TestAlignLongestBaseWins(t *testing.T) {
	t.Parallel()

	f, err := market.NewFrame(market.TimeSeries(t0, time.Hour, 1),
		[]string{"btc_close_div_atr", "btc_atr"}, [][]float64{{5}, {7}})
	require.NoError(t, err)

	m, _, err := Align(f, []string{"atr", "close_div_atr"}, Width(2))
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 5}, m.Row(0))
}

func TestAlignErrors(t *testing.T) {
	t.Parallel()

	f := liveFrame(t)

	_, _, err := Align(f, nil, Width(2))
	assert.ErrorIs(t, err, simerr.ErrConfig)

	_, _, err = Align(f, base, Width(0))
	assert.ErrorIs(t, err, simerr.ErrConfig)

	_, _, err = Align(f, base, nil)
	assert.ErrorIs(t, err, simerr.ErrConfig)

	_, _, err = Align(f, base, Width(5))
	assert.ErrorIs(t, err, simerr.ErrReproducibility)

	_, _, err = Align(f, base, &MinMaxScaler{Columns: []string{"a"}, DataMin: []float64{0, 0}, DataMax: []float64{1, 1}})
	assert.ErrorIs(t, err, simerr.ErrReproducibility)
}

func TestAlignManifestRejectsBaseOrderDrift(t *testing.T) {
	t.Parallel()

	f := liveFrame(t)
	m := testManifest()

	out, _, err := Align(f, []string{"close_div_atr", "rsi"}, m)
	require.NoError(t, err)
	assert.Equal(t, m.NumFeatures(), out.Cols)

	_, _, err = Align(f, []string{"rsi", "close_div_atr"}, m)
	assert.ErrorIs(t, err, simerr.ErrReproducibility)
	var re *simerr.ReproducibilityError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, []string{"close_div_atr", "rsi"}, re.Expected)

	_, _, err = Align(f, []string{"close_div_atr"}, m)
	assert.ErrorIs(t, err, simerr.ErrReproducibility)
}

func TestMinMaxScaler(t *testing.T) {
	t.Parallel()

	in := market.NewMatrix(3, 2)
	in.Columns = []string{"a", "b"}
	for r, row := range [][]float64{{0, 5}, {5, 5}, {10, math.NaN()}} {
		in.Set(r, 0, row[0])
		in.Set(r, 1, row[1])
	}
	s := FitMinMax(in)
	assert.Equal(t, []float64{0, 5}, s.DataMin)
	assert.Equal(t, []float64{10, 5}, s.DataMax)

	out, err := s.Transform(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, out.Column(0))
	assert.Equal(t, 0.0, out.At(0, 1))

	_, err = s.Transform(market.NewMatrix(1, 3))
	assert.ErrorIs(t, err, simerr.ErrShape)

	path := filepath.Join(t.TempDir(), "pv.json")
	require.NoError(t, s.Save(path))
	back, err := LoadMinMax(path)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func testManifest() *Manifest {
	return &Manifest{
		Assets:          []string{"btc", "eth"},
		BaseFeatures:    []string{"close_div_atr", "rsi"},
		OrderedCols:     []string{"btc_close_div_atr", "btc_rsi", "eth_close_div_atr", "eth_rsi"},
		PVFeatureOrder:  []string{"btc_close_div_atr", "eth_close_div_atr"},
		IndFeatureOrder: []string{"btc_rsi", "eth_rsi"},
		FeatureCounts:   FeatureCounts{PV: 2, Ind: 2, Total: 4},
	}
}

func TestManifestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"m.json", "m.yaml"} {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			path := filepath.Join(dir, name)
			m := testManifest()
			require.NoError(t, m.Save(path))
			assert.NotEmpty(t, m.CreatedAt)

			back, err := LoadManifest(path)
			require.NoError(t, err)
			assert.Equal(t, m.OrderedCols, back.OrderedCols)
			assert.Equal(t, m, back)

			// saving again backs the first file up
			require.NoError(t, back.Save(path))
			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			var baks int
			for _, e := range entries {
				if strings.HasPrefix(e.Name(), name+".bak_") {
					baks++
				}
			}
			assert.Equal(t, 1, baks)
		})
	}
}

func TestManifestValidate(t *testing.T) {
	t.Parallel()

	m := testManifest()
	assert.NoError(t, m.Validate([]string{"close_div_atr", "rsi"}))
	assert.NoError(t, m.Validate(nil))

	err := m.Validate([]string{"rsi", "close_div_atr"})
	assert.ErrorIs(t, err, simerr.ErrReproducibility)
	var re *simerr.ReproducibilityError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, []string{"close_div_atr", "rsi"}, re.Expected)

	bad := testManifest()
	bad.FeatureCounts.Total = 5
	assert.ErrorIs(t, bad.Validate(nil), simerr.ErrReproducibility)

	empty := &Manifest{}
	assert.ErrorIs(t, empty.Validate(nil), simerr.ErrConfig)

	drift := testManifest()
	drift.BaseFeatures = []string{"close_div_atr", "rsi", "macd"}
	assert.ErrorIs(t, drift.Validate(nil), simerr.ErrReproducibility)
}

func TestManifestReferenceBaseUsesLongestOwner(t *testing.T) {
	t.Parallel()

	m := &Manifest{
		Assets:      []string{"crypto", "crypto_eth"},
		OrderedCols: []string{"crypto_rsi", "crypto_eth_rsi"},
	}
	assert.Equal(t, []string{"rsi"}, m.ReferenceBase())
}

func TestFit(t *testing.T) {
	t.Parallel()

	f := liveFrame(t)
	a, rep, err := Fit(f, []string{"eth", "btc", "sol"}, base, nil)
	require.NoError(t, err)

	m := a.Manifest
	assert.Equal(t, []string{"btc", "eth", "sol"}, m.Assets)
	assert.Equal(t, []string{"btc_close_div_atr", "btc_rsi", "eth_close_div_atr"}, m.OrderedCols)
	assert.Equal(t, []string{"btc_close_div_atr", "eth_close_div_atr"}, m.PVFeatureOrder)
	assert.Equal(t, []string{"btc_rsi"}, m.IndFeatureOrder)
	assert.Equal(t, FeatureCounts{PV: 2, Ind: 1, Total: 3}, m.FeatureCounts)
	assert.Equal(t, []string{"eth_rsi"}, rep.Dropped)
	assert.Equal(t, []string{"sol_close_div_atr", "sol_rsi"}, rep.Missing)

	assert.Equal(t, []float64{1.0, 2.0}, a.PV.DataMin)
	assert.Equal(t, []float64{40}, a.Ind.DataMin)
	assert.Equal(t, []float64{70}, a.Ind.DataMax)

	_, _, err = Fit(f, []string{"btc"}, []string{"rsi"}, nil)
	assert.ErrorIs(t, err, simerr.ErrConfig)
}

func TestArtifactsSaveLoadTransform(t *testing.T) {
	t.Parallel()

	f := liveFrame(t)
	a, _, err := Fit(f, []string{"btc", "eth"}, []string{"close_div_atr", "rsi"}, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, a.Save(dir, DefaultFiles()))
	back, err := LoadArtifacts(dir, DefaultFiles())
	require.NoError(t, err)
	assert.Equal(t, a.Manifest.OrderedCols, back.Manifest.OrderedCols)

	win, err := f.Slice(1, 3)
	require.NoError(t, err)
	out, rep, err := back.Transform(win, base)
	require.NoError(t, err)
	assert.Equal(t, a.Manifest.FeatureCounts.Total, out.Cols)
	assert.Equal(t, 2, out.Rows)
	assert.False(t, rep.Degraded())
	assert.InDelta(t, 0.1/0.3, out.At(0, 0), 1e-12)

	_, _, err = back.Transform(win, []string{"rsi", "close_div_atr"})
	assert.ErrorIs(t, err, simerr.ErrReproducibility)
}

func TestLoadArtifactsWidthMismatch(t *testing.T) {
	t.Parallel()

	f := liveFrame(t)
	a, _, err := Fit(f, []string{"btc", "eth"}, base, nil)
	require.NoError(t, err)
	a.Manifest.FeatureCounts = FeatureCounts{PV: 3, Ind: 1, Total: 4}
	a.Manifest.PVFeatureOrder = append(a.Manifest.PVFeatureOrder, "x_close_div_atr")

	dir := t.TempDir()
	require.NoError(t, a.Save(dir, DefaultFiles()))
	_, err = LoadArtifacts(dir, DefaultFiles())
	assert.ErrorIs(t, err, simerr.ErrReproducibility)
}

func TestResolveStopsOnBaseMismatch(t *testing.T) {
	t.Parallel()

	f := liveFrame(t)
	a, _, err := Fit(f, []string{"btc", "eth"}, base, nil)
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, a.Save(dir, DefaultFiles()))

	live := []string{"rsi", "close_div_atr"}
	res, err := Resolve(dir, f, live, ResolveOptions{})
	assert.ErrorIs(t, err, simerr.ErrReproducibility)
	assert.Nil(t, res)

	// files are untouched without the opt-in
	back, err := LoadManifest(filepath.Join(dir, DefaultFiles().Manifest))
	require.NoError(t, err)
	assert.Equal(t, base, back.BaseFeatures)
}

func TestResolveRefitOptIn(t *testing.T) {
	t.Parallel()

	f := liveFrame(t)
	a, _, err := Fit(f, []string{"btc", "eth"}, base, nil)
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, a.Save(dir, DefaultFiles()))

	rec, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	live := []string{"rsi", "close_div_atr"}
	res, err := Resolve(dir, f, live, ResolveOptions{AllowRefit: true, Metrics: rec})
	require.NoError(t, err)
	assert.True(t, res.Refitted)
	assert.Equal(t, live, res.Artifacts.Manifest.BaseFeatures)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Refits))

	// the refit is now what loads, and it validates
	again, err := Resolve(dir, f, live, ResolveOptions{})
	require.NoError(t, err)
	assert.False(t, again.Refitted)
}

func TestResolveMissingFilesIsNotRefit(t *testing.T) {
	t.Parallel()

	_, err := Resolve(t.TempDir(), nil, base, ResolveOptions{AllowRefit: true})
	require.Error(t, err)
	assert.NotErrorIs(t, err, simerr.ErrReproducibility)
}
