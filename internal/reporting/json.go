package reporting

import (
	"encoding/json"
	"fmt"

	"solana-telemetry-lab/internal/domain"
)

// RenderJSON renders report as indented JSON followed by a newline.
func RenderJSON(r *domain.Report) ([]byte, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return append(out, '\n'), nil
}
