// Package reporting renders analysis reports.
package reporting

import (
	"fmt"
	"strings"

	"solana-telemetry-lab/internal/domain"
)

// Output formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatText, FormatJSON, FormatMarkdown, FormatCSV}
}

// Render renders r in the given format. CSV renders the per-row table only.
func Render(format string, r *domain.Report) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatText, "":
		return []byte(RenderText(r)), nil
	case FormatJSON:
		return RenderJSON(r)
	case FormatMarkdown:
		return []byte(RenderMarkdown(r)), nil
	case FormatCSV:
		return []byte(RenderCSV(r.Rows)), nil
	default:
		return nil, fmt.Errorf("%w: unknown report format %q", domain.ErrInvalidConfig, format)
	}
}

// modelSummary is a one-line description of a model result.
func modelSummary(res domain.ModelResult) string {
	switch {
	case !res.OK():
		return res.Err
	case res.Reduction != nil:
		o := res.Reduction
		return fmt.Sprintf("components=%d explained=%s", o.Components, formatFloats(o.ExplainedRatio))
	case res.Classification != nil:
		o := res.Classification
		return fmt.Sprintf("accuracy=%.4f log_loss=%.4f iterations=%d converged=%t threshold=%g",
			o.Accuracy, o.LogLoss, o.Iterations, o.Converged, o.Threshold)
	case res.Clustering != nil:
		o := res.Clustering
		return fmt.Sprintf("k=%d sizes=%v inertia=%.4f iterations=%d",
			o.K, clusterSizes(o), o.Inertia, o.Iterations)
	default:
		return ""
	}
}

func modelStatus(res domain.ModelResult) string {
	if res.OK() {
		return "ok"
	}
	return "FAILED"
}

func clusterSizes(o *domain.ClusteringOutput) []int {
	sizes := make([]int, o.K)
	for _, a := range o.Assignments {
		if a >= 0 && a < o.K {
			sizes[a]++
		}
	}
	return sizes
}

func formatFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%.4f", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
