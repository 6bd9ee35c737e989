package reporting

import (
	"fmt"
	"strings"
	"time"

	"solana-telemetry-lab/internal/domain"
)

// RenderText renders report as a plain-text summary.
func RenderText(r *domain.Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Run %s\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Source:   %s\n", r.Source))
	sb.WriteString(fmt.Sprintf("Started:  %s\n", r.StartedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Duration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Dataset:  %d rows x %d columns [%s], label rule %s\n",
		r.Dataset.Rows, r.Dataset.Width, strings.Join(r.Dataset.Columns, " "), r.Dataset.LabelRule))
	if r.Dataset.Fingerprint != "" {
		sb.WriteString(fmt.Sprintf("Dataset fingerprint: %s\n", r.Dataset.Fingerprint))
	}

	sb.WriteString("\nModels\n")
	if len(r.Models) == 0 {
		sb.WriteString("  none requested\n")
	}
	for _, kind := range r.Models.Kinds() {
		res := r.Models[kind]
		sb.WriteString(fmt.Sprintf("  %-15s %-7s %s\n", kind, modelStatus(res), modelSummary(res)))
	}

	sb.WriteString("\nWealth\n")
	switch {
	case r.Wealth != nil:
		w := r.Wealth
		sb.WriteString(fmt.Sprintf("  account %s balance %s SOL (%d lamports) on_curve=%t\n",
			w.Account, w.BalanceSOL.String(), w.Balance, w.OnCurve))
		sb.WriteString(fmt.Sprintf("  mint %s top %d holders total=%d top_share=%.4f hhi=%.4f\n",
			w.Mint, len(w.LargestHolders), w.TotalTopHolders, w.TopHolderShare, w.HHI))
	case r.ProbeError != "":
		sb.WriteString(fmt.Sprintf("  probe FAILED: %s\n", r.ProbeError))
	default:
		sb.WriteString("  not probed\n")
	}

	if r.SinkError != "" {
		sb.WriteString(fmt.Sprintf("\nSink FAILED: %s\n", r.SinkError))
	}
	sb.WriteString(fmt.Sprintf("\nPartial failures: %d\n", r.PartialFailures()))

	return sb.String()
}
