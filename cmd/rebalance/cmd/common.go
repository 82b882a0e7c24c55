package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/rustyeddy/rebalance/journal"
	"github.com/rustyeddy/rebalance/market"
	"github.com/rustyeddy/rebalance/scaler"
)

// loadFrame reads the feature table named by path, or data.csv_path when
// path is empty.
func loadFrame(path string) (*market.Frame, string, error) {
	if path == "" {
		path = cfg.Data.CSVPath
	}
	if path == "" {
		return nil, "", fmt.Errorf("no data file: pass --data or set data.csv_path")
	}
	f, err := market.LoadCSV(path)
	if err != nil {
		return nil, path, err
	}
	log.Info().Str("path", path).Int("rows", f.Len()).Int("columns", len(f.Columns())).Msg("data loaded")
	return f, path, nil
}

// openJournal builds the journal configured in journal.*.
func openJournal() (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "sqlite":
		return journal.NewSQLite(cfg.Journal.DBPath)
	case "csv":
		return journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.EquityFile, cfg.Journal.StepsFile)
	case "none", "":
		return journal.Discard, nil
	}
	return nil, fmt.Errorf("unknown journal type %q", cfg.Journal.Type)
}

func scalerFiles() scaler.Files {
	files := scaler.DefaultFiles()
	if cfg.Scaler.ManifestFile != "" {
		files.Manifest = cfg.Scaler.ManifestFile
	}
	if cfg.Scaler.PVFile != "" {
		files.PV = cfg.Scaler.PVFile
	}
	if cfg.Scaler.IndFile != "" {
		files.Ind = cfg.Scaler.IndFile
	}
	return files
}
