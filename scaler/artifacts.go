package scaler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/rebalance/market"
	"github.com/rustyeddy/rebalance/metrics"
	"github.com/rustyeddy/rebalance/simerr"
)

// Files names the three artifact files inside a model directory.
type Files struct {
	Manifest string
	PV       string
	Ind      string
}

func DefaultFiles() Files {
	return Files{
		Manifest: "scalers_manifest.json",
		PV:       "pv_scaler.json",
		Ind:      "ind_scaler.json",
	}
}

// Artifacts is a manifest together with the two scalers it describes.
type Artifacts struct {
	Manifest *Manifest
	PV       *MinMaxScaler
	Ind      *MinMaxScaler
}

// Save writes all three files into dir, backing up any it replaces.
func (a *Artifacts) Save(dir string, files Files) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create scaler dir: %w", err)
	}
	if err := a.PV.Save(filepath.Join(dir, files.PV)); err != nil {
		return err
	}
	if err := a.Ind.Save(filepath.Join(dir, files.Ind)); err != nil {
		return err
	}
	return a.Manifest.Save(filepath.Join(dir, files.Manifest))
}

// LoadArtifacts reads the three files from dir and checks that each scaler's
// width matches the counts in the manifest.
func LoadArtifacts(dir string, files Files) (*Artifacts, error) {
	m, err := LoadManifest(filepath.Join(dir, files.Manifest))
	if err != nil {
		return nil, err
	}
	pv, err := LoadMinMax(filepath.Join(dir, files.PV))
	if err != nil {
		return nil, err
	}
	ind, err := LoadMinMax(filepath.Join(dir, files.Ind))
	if err != nil {
		return nil, err
	}

	a := &Artifacts{Manifest: m, PV: pv, Ind: ind}
	if err := a.checkWidths(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Artifacts) checkWidths() error {
	fc := a.Manifest.FeatureCounts
	if a.PV.NumFeatures() != fc.PV {
		return &simerr.ReproducibilityError{What: "pv scaler width vs manifest", Expected: fc.PV, Actual: a.PV.NumFeatures()}
	}
	if a.Ind.NumFeatures() != fc.Ind {
		return &simerr.ReproducibilityError{What: "ind scaler width vs manifest", Expected: fc.Ind, Actual: a.Ind.NumFeatures()}
	}
	if len(a.PV.Columns) > 0 && !slices.Equal(a.PV.Columns, a.Manifest.PVFeatureOrder) {
		return &simerr.ReproducibilityError{What: "pv scaler columns vs manifest", Expected: a.Manifest.PVFeatureOrder, Actual: a.PV.Columns}
	}
	if len(a.Ind.Columns) > 0 && !slices.Equal(a.Ind.Columns, a.Manifest.IndFeatureOrder) {
		return &simerr.ReproducibilityError{What: "ind scaler columns vs manifest", Expected: a.Manifest.IndFeatureOrder, Actual: a.Ind.Columns}
	}
	return nil
}

// Transform aligns window to each scaler's column order, scales both blocks
// and returns them side by side, price/volume first.
func (a *Artifacts) Transform(window *market.Frame, base []string) (market.Matrix, Report, error) {
	if err := a.Manifest.Validate(base); err != nil {
		return market.Matrix{}, Report{}, err
	}
	pvOrder := pick(a.Manifest.PVFeatureOrder, a.PV)
	indOrder := pick(a.Manifest.IndFeatureOrder, a.Ind)

	pvIn, rep, err := Align(window, base, pvOrder)
	if err != nil {
		return market.Matrix{}, Report{}, fmt.Errorf("align pv: %w", err)
	}
	indIn, indRep, err := Align(window, base, indOrder)
	if err != nil {
		return market.Matrix{}, Report{}, fmt.Errorf("align ind: %w", err)
	}
	rep.Merge(indRep)

	pvOut, err := a.PV.Transform(pvIn)
	if err != nil {
		return market.Matrix{}, rep, err
	}
	indOut, err := a.Ind.Transform(indIn)
	if err != nil {
		return market.Matrix{}, rep, err
	}
	out, err := market.HStack(pvOut, indOut)
	return out, rep, err
}

func pick(order []string, s *MinMaxScaler) Target {
	if len(order) > 0 {
		return Columns(order)
	}
	return s
}

// ResolveOptions control how Resolve reacts to a stale fit.
type ResolveOptions struct {
	Files Files
	// AllowRefit permits refitting on a reproducibility mismatch. Without it
	// the mismatch is returned and the run must stop.
	AllowRefit bool
	Assets     []string // used for a refit when the manifest cannot be read
	PVTokens   []string
	Logger     zerolog.Logger
	Metrics    *metrics.Recorder
}

// Resolution is what Resolve settled on.
type Resolution struct {
	Artifacts *Artifacts
	Refitted  bool
	Fit       FitReport
}

// Resolve loads the artifacts in dir and validates them against liveBase.
// A ReproducibilityError is returned unchanged unless opts.AllowRefit is
// set, in which case new scalers are fitted on frame, saved over the old
// ones (which are backed up) and returned with Refitted set.
func Resolve(dir string, frame *market.Frame, liveBase []string, opts ResolveOptions) (*Resolution, error) {
	if opts.Files == (Files{}) {
		opts.Files = DefaultFiles()
	}

	a, err := LoadArtifacts(dir, opts.Files)
	if err == nil {
		err = a.Manifest.Validate(liveBase)
	}
	if err == nil {
		return &Resolution{Artifacts: a}, nil
	}
	if !errors.Is(err, simerr.ErrReproducibility) || !opts.AllowRefit {
		return nil, err
	}

	assets := opts.Assets
	if len(assets) == 0 && a != nil {
		assets = a.Manifest.Assets
	}
	opts.Logger.Warn().Err(err).Str("dir", dir).Msg("scaler artifacts do not match live features; refitting")

	fresh, rep, ferr := Fit(frame, assets, liveBase, opts.PVTokens)
	if ferr != nil {
		return nil, fmt.Errorf("refit after %v: %w", err, ferr)
	}
	if err := fresh.Save(dir, opts.Files); err != nil {
		return nil, err
	}
	opts.Metrics.IncRefit()
	if len(rep.Dropped) > 0 || len(rep.Missing) > 0 {
		opts.Logger.Warn().Strs("dropped", rep.Dropped).Strs("missing", rep.Missing).Msg("refit skipped columns")
	}
	return &Resolution{Artifacts: fresh, Refitted: true, Fit: rep}, nil
}
