package cmd

import (
	"strings"

	"grimm.is/scribe/internal/daemon"
)

// RenderSummary draws the counters table printed when a foreground run ends.
func RenderSummary(rows []daemon.SummaryRow) string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render("Records"))
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString(StyleLabel.Render(r.Name))
		b.WriteString(StyleCount.Render(Printer.Sprintf("%d", r.Value)))
		b.WriteString("\n")
	}
	return StyleCard.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}
