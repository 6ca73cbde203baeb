package checkpoint

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/research-orchestrator/internal/model"
)

// renderBody writes the human-readable summary below the header. Nothing in
// it is ever re-parsed; it exists so an operator can read a checkpoint file
// and understand where a run stands.
func renderBody(b *bytes.Buffer, state *model.ResearchState) {
	fmt.Fprintf(b, "# Research Checkpoint: %s\n\n", state.Title)
	fmt.Fprintf(b, "- Status: %s (step %s, %d%%)\n", state.Status, state.CurrentStep, state.Progress)
	fmt.Fprintf(b, "- Updated: %s\n", state.UpdatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(b, "- Iterations: %d passes (%d searches), retry %d/%d\n\n",
		state.SearchIterations, state.TotalSearches, state.RetryCount, state.MaxRetries)

	if len(state.PendingQueries) > 0 {
		fmt.Fprintf(b, "## Pending Queries (%d)\n\n", len(state.PendingQueries))
		b.WriteString("| Dimension | Priority | Query |\n|---|---|---|\n")
		for _, q := range state.PendingQueries {
			fmt.Fprintf(b, "| %s | %d | %s |\n", q.Dimension, q.Priority, sanitizeCell(q.Query))
		}
		b.WriteString("\n")
	}

	if len(state.SearchResults) > 0 {
		fmt.Fprintf(b, "## Search Results (%d)\n\n", len(state.SearchResults))
		b.WriteString("| Source | Quality | Crawled | Title |\n|---|---|---|---|\n")
		for _, r := range state.SearchResults {
			fmt.Fprintf(b, "| %s | %d | %t | %s |\n", r.Source, r.Quality, r.Crawled, sanitizeCell(r.Title))
		}
		b.WriteString("\n")
	}

	if len(state.ExtractedContent) > 0 {
		fmt.Fprintf(b, "## Extracted Content\n\n%d documents extracted.\n\n", len(state.ExtractedContent))
	}

	if state.Analysis != nil {
		b.WriteString("## Analysis\n\n")
		fmt.Fprintf(b, "Present (%s, confidence %.2f): %d features, %d competitors, %d gaps.\n\n",
			state.Analysis.Method,
			state.Analysis.ConfidenceScore,
			len(state.Analysis.Features),
			len(state.Analysis.Competitors),
			len(state.Analysis.DataGaps),
		)
	}
}

// sanitizeCell keeps table cells on one line.
func sanitizeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	if len(s) > 120 {
		s = s[:117] + "..."
	}
	return s
}
