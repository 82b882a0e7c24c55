package scaler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/rustyeddy/rebalance/market"
	"github.com/rustyeddy/rebalance/simerr"
	"gopkg.in/yaml.v3"
)

// FeatureCounts records the width of each fitted scaler.
type FeatureCounts struct {
	PV    int `json:"pv" yaml:"pv"`
	Ind   int `json:"ind" yaml:"ind"`
	Total int `json:"total" yaml:"total"`
}

// Manifest describes exactly which columns, in which order, a pair of
// scalers was fitted on. It is written once at fit time and read-only after.
type Manifest struct {
	Assets          []string      `json:"assets" yaml:"assets"`
	BaseFeatures    []string      `json:"base_features" yaml:"base_features"`
	OrderedCols     []string      `json:"ordered_cols" yaml:"ordered_cols"`
	PVFeatureOrder  []string      `json:"pv_feature_order" yaml:"pv_feature_order"`
	IndFeatureOrder []string      `json:"ind_feature_order" yaml:"ind_feature_order"`
	FeatureCounts   FeatureCounts `json:"feature_counts" yaml:"feature_counts"`
	CreatedAt       string        `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

func (m *Manifest) ExpectedColumns() []string { return m.OrderedCols }
func (m *Manifest) NumFeatures() int          { return len(m.OrderedCols) }

// LoadManifest reads a manifest, trying YAML first and then JSON.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		if err := json.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("parse manifest (tried YAML and JSON): %w", err)
		}
	}
	return m, nil
}

// Save writes the manifest, YAML for .yaml/.yml paths and JSON otherwise.
// An existing file is renamed to <path>.bak_<unix seconds> first.
func (m *Manifest) Save(path string) error {
	if m.CreatedAt == "" {
		m.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(m)
	} else {
		data, err = json.MarshalIndent(m, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	if err := backup(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Check verifies the manifest is internally consistent.
func (m *Manifest) Check() error {
	if len(m.Assets) == 0 {
		return simerr.Configf("manifest.assets", "must not be empty")
	}
	if len(m.OrderedCols) == 0 {
		return simerr.Configf("manifest.ordered_cols", "must not be empty")
	}
	if len(m.BaseFeatures) == 0 {
		return simerr.Configf("manifest.base_features", "must not be empty")
	}
	fc := m.FeatureCounts
	if fc.PV != len(m.PVFeatureOrder) {
		return &simerr.ReproducibilityError{What: "manifest pv feature count", Expected: len(m.PVFeatureOrder), Actual: fc.PV}
	}
	if fc.Ind != len(m.IndFeatureOrder) {
		return &simerr.ReproducibilityError{What: "manifest ind feature count", Expected: len(m.IndFeatureOrder), Actual: fc.Ind}
	}
	if fc.Total != fc.PV+fc.Ind {
		return &simerr.ReproducibilityError{What: "manifest total feature count", Expected: fc.PV + fc.Ind, Actual: fc.Total}
	}
	return nil
}

// ReferenceBase returns the base features of the first listed asset as
// recorded in ordered_cols, with the asset prefix stripped.
func (m *Manifest) ReferenceBase() []string {
	if len(m.Assets) == 0 {
		return nil
	}
	ref := m.Assets[0]
	var out []string
	for _, c := range m.OrderedCols {
		if owner(c, m.Assets) != ref {
			continue
		}
		b, _ := market.StripAsset(c, market.AssetKey(ref))
		out = append(out, b)
	}
	return out
}

// Validate checks the manifest against the live pipeline's base feature
// list. The reference asset's block of ordered_cols must equal both the
// recorded base_features and liveBase exactly, order included. A nil
// liveBase skips the live comparison.
func (m *Manifest) Validate(liveBase []string) error {
	if err := m.Check(); err != nil {
		return err
	}
	ref := m.ReferenceBase()
	if !slices.Equal(ref, m.BaseFeatures) {
		return &simerr.ReproducibilityError{What: "manifest ordered_cols vs base_features", Expected: m.BaseFeatures, Actual: ref}
	}
	if liveBase != nil && !slices.Equal(ref, liveBase) {
		return &simerr.ReproducibilityError{What: "manifest base feature order vs live pipeline", Expected: ref, Actual: liveBase}
	}
	return nil
}

// owner is the longest asset key that prefixes col, so "crypto_eth_close"
// belongs to "crypto_eth" rather than "crypto".
func owner(col string, assets []string) string {
	best := ""
	for _, a := range assets {
		if _, ok := market.StripAsset(col, market.AssetKey(a)); ok && len(a) > len(best) {
			best = a
		}
	}
	return best
}

func backup(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	bak := fmt.Sprintf("%s.bak_%d", path, time.Now().Unix())
	if err := os.Rename(path, bak); err != nil {
		return fmt.Errorf("backup %s: %w", path, err)
	}
	return nil
}
