package market

import (
	"math"
	"strings"
	"time"
)

// AssetKey identifies one tradable instrument, e.g. "crypto_eth". Columns for
// the asset are named "{asset}_{feature}".
type AssetKey string

// CloseFeature is the un-normalized close price every asset must carry. Reward
// and backtest math always run on it, never on scaled features.
const CloseFeature = "close"

// OpenFeature is used for next-bar fills when present.
const OpenFeature = "open"

func ColumnName(asset AssetKey, feature string) string {
	return string(asset) + "_" + feature
}

func CloseColumn(asset AssetKey) string {
	return ColumnName(asset, CloseFeature)
}

// CloseColumns returns the close column of each asset, in asset order.
func CloseColumns(assets []AssetKey) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = CloseColumn(a)
	}
	return out
}

// StripAsset returns col without its "{asset}_" prefix.
func StripAsset(col string, asset AssetKey) (string, bool) {
	prefix := string(asset) + "_"
	if !strings.HasPrefix(col, prefix) || len(col) == len(prefix) {
		return "", false
	}
	return col[len(prefix):], true
}

// AssetColumns returns the columns of cols that belong to asset, in order.
func AssetColumns(cols []string, asset AssetKey) []string {
	var out []string
	for _, c := range cols {
		if _, ok := StripAsset(c, asset); ok {
			out = append(out, c)
		}
	}
	return out
}

// Assets converts plain names into asset keys.
func Assets(names []string) []AssetKey {
	out := make([]AssetKey, len(names))
	for i, n := range names {
		out[i] = AssetKey(n)
	}
	return out
}

// FeatureVector is the ordered name->value map of one asset at one timestamp.
type FeatureVector struct {
	Asset  AssetKey
	Time   time.Time
	Names  []string
	Values []float64
}

// Get returns the named value, NaN when absent.
func (v FeatureVector) Get(name string) float64 {
	for i, n := range v.Names {
		if n == name {
			return v.Values[i]
		}
	}
	return math.NaN()
}

// Complete reports whether no value is NaN.
func (v FeatureVector) Complete() bool {
	for _, x := range v.Values {
		if math.IsNaN(x) {
			return false
		}
	}
	return true
}
