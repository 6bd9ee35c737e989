// Package telemetry retrieves raw telemetry records and decodes them into domain records.
package telemetry

import (
	"context"

	"solana-telemetry-lab/internal/domain"
)

// Source produces the telemetry records of one run.
// Transport failures wrap domain.ErrTransport, malformed payloads wrap domain.ErrDecode.
type Source interface {
	Fetch(ctx context.Context) ([]domain.TelemetryRecord, error)

	// Name identifies the source in reports and logs.
	Name() string
}
