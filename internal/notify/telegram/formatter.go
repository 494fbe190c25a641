package telegram

import (
	"fmt"
	"strings"

	"github.com/chyiyaqing/trendscope/internal/pipeline"
)

// Digest returns the title and HTML body for a refreshed board. It matches
// scheduler.DigestFunc.
func Digest(run *pipeline.Run) (string, string) {
	title := fmt.Sprintf("📈 Trending on %s (%s)", run.Query.Platform, run.Query.Range)
	return title, FormatDigest(run)
}

// FormatDigest builds an HTML-formatted Telegram message from a run.
func FormatDigest(run *pipeline.Run) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "<b>Topic:</b> %s\n", escapeHTML(run.Result.Topic))
	if run.Stats.TotalViews != "" {
		fmt.Fprintf(&sb, "<b>Total views:</b> %s | <b>Top platform:</b> %s\n",
			escapeHTML(run.Stats.TotalViews), escapeHTML(run.Stats.TopPlatform))
	}
	sb.WriteString("\n")

	if len(run.Result.Records) == 0 {
		sb.WriteString("No specific trends found for this selection.\n")
		return sb.String()
	}

	for i, rec := range run.Result.Records {
		fmt.Fprintf(&sb, "<b>%d.</b> %s\n", i+1, escapeHTML(rec.Title))
		fmt.Fprintf(&sb, "   %s · %s · %s views\n",
			escapeHTML(string(rec.Platform)), escapeHTML(rec.Creator), escapeHTML(rec.Views))
		if rec.Category != "" {
			fmt.Fprintf(&sb, "   #%s\n", escapeHTML(rec.Category))
		}
		fmt.Fprintf(&sb, "   🔗 %s\n\n", escapeHTML(rec.URL))
	}
	return sb.String()
}
