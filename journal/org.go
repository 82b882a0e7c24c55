package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders a Trade as an Org-mode block. Structured facts go in
// a PROPERTIES drawer; the Review heading is left for notes.
func FormatTradeOrg(t Trade) string {
	heading := fmt.Sprintf("*** %s %s (%s)", strings.ToUpper(t.Side), t.Asset, shortID(t.ID))

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":TRADE_ID: %s\n", t.ID))
	b.WriteString(fmt.Sprintf(":RUN_ID: %s\n", t.RunID))
	b.WriteString(fmt.Sprintf(":ASSET: %s\n", t.Asset))
	b.WriteString(fmt.Sprintf(":SIDE: %s\n", t.Side))
	b.WriteString(fmt.Sprintf(":TIME: %s\n", t.Time.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf(":PRICE: %.5f\n", t.Price))
	b.WriteString(fmt.Sprintf(":QUANTITY: %.6f\n", t.Quantity))
	b.WriteString(fmt.Sprintf(":NOTIONAL: %.2f\n", t.Notional))
	b.WriteString(fmt.Sprintf(":FEE: %.2f\n", t.Fee))
	if t.Reason != "" {
		b.WriteString(fmt.Sprintf(":REASON: %s\n", t.Reason))
	}
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("**** Review\n- \n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []Trade) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
