package reporting

import (
	"fmt"
	"strings"

	"solana-telemetry-lab/internal/domain"
)

// RenderCSV renders feature rows as CSV string. Missing model outputs are empty cells.
func RenderCSV(rows []domain.FeatureRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,index,")
	sb.WriteString(strings.Join(domain.FeatureNames[:], ","))
	sb.WriteString(",label,pc1,pc2,prediction,cluster\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,", r.RunID, r.Index))
		for _, f := range r.Features {
			sb.WriteString(fmt.Sprintf("%g,", f))
		}
		for i := len(r.Features); i < domain.FeatureWidth; i++ {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf("%g,%s,%s,%s,%s\n",
			r.Label,
			optionalAxis(r.Projection, 0),
			optionalAxis(r.Projection, 1),
			optionalInt(r.Prediction),
			optionalInt(r.Cluster),
		))
	}

	return sb.String()
}

func optionalAxis(projection []float64, i int) string {
	if i >= len(projection) {
		return ""
	}
	return fmt.Sprintf("%.6f", projection[i])
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}
