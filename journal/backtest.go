package journal

import (
	"bytes"
	"fmt"
	"os"
	"text/template"
	"time"
)

// BacktestRun summarizes one signal backtest for the org report.
type BacktestRun struct {
	RunID    string
	Created  time.Time
	Interval string
	Dataset  string
	Asset    string
	Signal   string

	// Risk management
	TargetAnnualVol float64
	StopLossPct     float64
	PartialTPPct    float64
	FeeRate         float64
	SlippageRate    float64

	Start time.Time
	End   time.Time

	// Results
	Trades   int
	Wins     int
	Losses   int
	DataGaps int

	StartBalance float64
	EndBalance   float64

	NetPL     float64
	ReturnPct float64
	WinRate   float64 // percent
	MaxDDPct  float64
	Sharpe    float64

	OrgPath string

	Ledger      []Trade
	Notes       []string
	NextActions []string
}

var backtestOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"tradeOrg": FormatTradeOrg,
}

var backtestOrg = template.Must(template.New("backtest").Funcs(backtestOrgFuncs).Parse(BacktestOrgTemplate))

// RenderOrg executes the org template for the run.
func (v *BacktestRun) RenderOrg() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := backtestOrg.Execute(buf, v); err != nil {
		return nil, fmt.Errorf("render org: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteOrg renders the run to v.OrgPath.
func (v *BacktestRun) WriteOrg() error {
	if v.OrgPath == "" {
		return fmt.Errorf("backtest run %s: OrgPath is empty", v.RunID)
	}
	data, err := v.RenderOrg()
	if err != nil {
		return err
	}
	return os.WriteFile(v.OrgPath, data, 0644)
}

const BacktestOrgTemplate = `
* BACKTEST: {{.Signal}} {{.Asset}} {{if .Interval}}{{.Interval}}{{else}}(interval?){{end}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:SIGNAL:      {{.Signal}}
:INTERVAL:    {{if .Interval}}{{.Interval}}{{else}}(interval?){{end}}
:ASSET:       {{.Asset}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:START_BAL:   {{printf "%.2f" .StartBalance}}
:END_BAL:     {{printf "%.2f" .EndBalance}}
:NET_PL:      {{printf "%.2f" .NetPL}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDDPct}}
:SHARPE:      {{printf "%.3f" .Sharpe}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" .WinRate}}
:DATA_GAPS:   {{.DataGaps}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Parameters
| Parameter           | Value |
|---------------------+-------|
| Target annual vol % | {{printf "%.2f" (mul100 .TargetAnnualVol)}} |
| Stop loss %         | {{printf "%.2f" (mul100 .StopLossPct)}} |
| Partial TP %        | {{printf "%.2f" (mul100 .PartialTPPct)}} |
| Fee %               | {{printf "%.3f" (mul100 .FeeRate)}} |
| Slippage %          | {{printf "%.3f" (mul100 .SlippageRate)}} |

** Performance Summary
- Net P/L:          *{{printf "%.2f" .NetPL}}*
- Return:           *{{printf "%.2f" .ReturnPct}}%*
- Max Drawdown:     *{{printf "%.2f" .MaxDDPct}}%*
- Win Rate:         *{{printf "%.2f" .WinRate}}%*
- Sharpe:           *{{printf "%.3f" .Sharpe}}*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |

{{- if .Ledger }}

** Ledger
{{- range .Ledger }}
{{ tradeOrg . }}
{{- end }}
{{- end }}

{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}

{{- if .NextActions }}

** Next Actions
{{- range .NextActions }}
- [ ] {{.}}
{{- end }}
{{- end }}
`
