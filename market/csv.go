package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/rebalance/simerr"
)

// LoadCSV reads a feature table:
//
//	time,{asset}_{feature},...
//
// where time is RFC3339, RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02" or
// unix seconds. Empty, "nan" and "null" cells load as NaN. Rows must be in
// ascending time order with no duplicates.
func LoadCSV(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fr, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return fr, nil
}

func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, simerr.Configf("csv", "empty input")
	}
	if err != nil {
		return nil, err
	}
	if len(header) < 2 || !isTimeHeader(header[0]) {
		return nil, &simerr.ConfigError{
			Field:    "csv.header",
			Expected: "time,<column>...",
			Actual:   strings.Join(header, ","),
		}
	}

	cols := make([]string, len(header)-1)
	for i, h := range header[1:] {
		cols[i] = strings.TrimSpace(h)
	}
	data := make([][]float64, len(cols))
	var times []time.Time

	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		t, err := parseTime(row[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		times = append(times, t)

		for i := range cols {
			v := math.NaN()
			if i+1 < len(row) {
				v, err = parseValue(row[i+1])
				if err != nil {
					return nil, fmt.Errorf("line %d column %s: %w", line, cols[i], err)
				}
			}
			data[i] = append(data[i], v)
		}
	}

	return NewFrame(times, cols, data)
}

func isTimeHeader(h string) bool {
	switch strings.ToLower(strings.TrimSpace(h)) {
	case "time", "timestamp", "date", "datetime":
		return true
	}
	return false
}

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "none", "na":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad value %q: %w", s, err)
	}
	return v, nil
}

// WriteCSV writes f in the layout LoadCSV reads.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"time"}, f.cols...)); err != nil {
		return err
	}
	row := make([]string, len(f.cols)+1)
	for r := 0; r < f.Len(); r++ {
		row[0] = f.times[r].Format(time.RFC3339)
		for c := range f.cols {
			v := f.data[c][r]
			if math.IsNaN(v) {
				row[c+1] = ""
				continue
			}
			row[c+1] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
