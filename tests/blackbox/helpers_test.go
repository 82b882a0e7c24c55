//go:build blackbox

package blackbox

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

func contains(s, sub string) bool { return strings.Contains(s, sub) }

// writeFeaturesCSV writes n hourly rows of {asset}_close and
// {asset}_buy_condition_v1 columns, with prices from price(asset index, row).
func writeFeaturesCSV(t *testing.T, path string, assets []string, n int, price func(a, i int) float64, signal func(i int) int) {
	t.Helper()

	var b strings.Builder
	b.WriteString("time")
	for _, a := range assets {
		fmt.Fprintf(&b, ",%s_close,%s_buy_condition_v1", a, a)
	}
	b.WriteString("\n")

	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		b.WriteString(t0.Add(time.Duration(i) * time.Hour).Format(time.RFC3339))
		for a := range assets {
			fmt.Fprintf(&b, ",%.6f,%d", price(a, i), signal(i))
		}
		b.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
}
