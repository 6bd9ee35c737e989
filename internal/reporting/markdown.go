package reporting

import (
	"fmt"
	"strings"
	"time"

	"solana-telemetry-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *domain.Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Telemetry Analysis Report\n\n")
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.FinishedAt.Format(time.RFC3339)))

	// Dataset
	sb.WriteString("## Dataset\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Source | %s |\n", r.Source))
	sb.WriteString(fmt.Sprintf("| Rows | %d |\n", r.Dataset.Rows))
	sb.WriteString(fmt.Sprintf("| Width | %d |\n", r.Dataset.Width))
	sb.WriteString(fmt.Sprintf("| Columns | %s |\n", strings.Join(r.Dataset.Columns, ", ")))
	sb.WriteString(fmt.Sprintf("| Label Rule | %s |\n", r.Dataset.LabelRule))
	if r.Dataset.Fingerprint != "" {
		sb.WriteString(fmt.Sprintf("| Fingerprint | `%s` |\n", r.Dataset.Fingerprint))
	}
	sb.WriteString("\n")

	// Models
	sb.WriteString("## Models\n\n")
	if len(r.Models) > 0 {
		sb.WriteString("| Model | Status | Duration | Details |\n")
		sb.WriteString("|-------|--------|----------|---------|\n")
		for _, kind := range r.Models.Kinds() {
			res := r.Models[kind]
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				kind, modelStatus(res), res.Duration.Round(time.Microsecond), escapePipes(modelSummary(res))))
		}
	} else {
		sb.WriteString("No models requested.\n")
	}
	sb.WriteString("\n")

	// Rows
	if len(r.Rows) > 0 {
		sb.WriteString("## Rows\n\n")
		sb.WriteString("| # | ")
		sb.WriteString(strings.Join(domain.FeatureNames[:], " | "))
		sb.WriteString(" | Label | Projection | Prediction | Cluster |\n")
		sb.WriteString("|---|" + strings.Repeat("---|", domain.FeatureWidth) + "-------|------------|------------|---------|\n")
		for _, row := range r.Rows {
			sb.WriteString(fmt.Sprintf("| %d |", row.Index))
			for _, f := range row.Features {
				sb.WriteString(fmt.Sprintf(" %g |", f))
			}
			projection := ""
			if len(row.Projection) > 0 {
				projection = formatFloats(row.Projection)
			}
			sb.WriteString(fmt.Sprintf(" %g | %s | %s | %s |\n",
				row.Label, projection, optionalInt(row.Prediction), optionalInt(row.Cluster)))
		}
		sb.WriteString("\n")
	}

	// Wealth
	sb.WriteString("## Node Health\n\n")
	switch {
	case r.Wealth != nil:
		w := r.Wealth
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Account | `%s` |\n", w.Account))
		sb.WriteString(fmt.Sprintf("| On Curve | %t |\n", w.OnCurve))
		sb.WriteString(fmt.Sprintf("| Balance (SOL) | %s |\n", w.BalanceSOL.String()))
		sb.WriteString(fmt.Sprintf("| Balance (lamports) | %d |\n", w.Balance))
		sb.WriteString(fmt.Sprintf("| Mint | `%s` |\n", w.Mint))
		sb.WriteString(fmt.Sprintf("| Top Holders | %d |\n", len(w.LargestHolders)))
		sb.WriteString(fmt.Sprintf("| Top Holders Total | %d |\n", w.TotalTopHolders))
		sb.WriteString(fmt.Sprintf("| Top Holder Share | %.4f |\n", w.TopHolderShare))
		sb.WriteString(fmt.Sprintf("| HHI | %.4f |\n", w.HHI))
	case r.ProbeError != "":
		sb.WriteString(fmt.Sprintf("**Probe failed:** %s\n", r.ProbeError))
	default:
		sb.WriteString("Not probed.\n")
	}
	sb.WriteString("\n")

	// Failures
	sb.WriteString("## Failures\n\n")
	if n := r.PartialFailures(); n > 0 {
		sb.WriteString(fmt.Sprintf("%d partial failure(s); the report is still complete for every other component.\n", n))
	} else {
		sb.WriteString("None.\n")
	}
	if r.SinkError != "" {
		sb.WriteString(fmt.Sprintf("\nSink error: %s\n", r.SinkError))
	}

	return sb.String()
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
