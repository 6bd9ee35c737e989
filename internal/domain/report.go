package domain

import "time"

// DatasetSummary describes the dataset a run analyzed.
type DatasetSummary struct {
	Rows      int      `json:"rows"`
	Width     int      `json:"width"`
	Columns   []string `json:"columns"`
	LabelRule string   `json:"label_rule"`

	// Fingerprint identifies the dataset content; equal datasets share it.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// FeatureRow is one dataset row joined with the per-row model outputs of a run.
// Model fields are nil when the model was not requested or failed.
type FeatureRow struct {
	RunID      string    `json:"run_id"`
	Index      int       `json:"index"`
	Features   []float64 `json:"features"`
	Label      float64   `json:"label"`
	Projection []float64 `json:"projection,omitempty"`
	Prediction *int      `json:"prediction,omitempty"`
	Cluster    *int      `json:"cluster,omitempty"`
}

// Report is the combined output of one pipeline run.
type Report struct {
	RunID      string         `json:"run_id"`
	Source     string         `json:"source"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Dataset    DatasetSummary `json:"dataset"`
	Rows       []FeatureRow   `json:"rows,omitempty"`
	Requested  []ModelKind    `json:"requested_models"`
	Params     *ModelParams   `json:"params,omitempty"`
	Models     ModelResults   `json:"models"`
	Wealth     *WealthSummary `json:"wealth,omitempty"`
	ProbeError string         `json:"probe_error,omitempty"`
	SinkError  string         `json:"sink_error,omitempty"`
}

// PartialFailures returns the number of failed models plus a failed probe.
func (r *Report) PartialFailures() int {
	n := 0
	for _, res := range r.Models {
		if !res.OK() {
			n++
		}
	}
	if r.ProbeError != "" {
		n++
	}
	return n
}

// BuildFeatureRows joins dataset rows with the successful per-row model outputs.
func BuildFeatureRows(runID string, ds *Dataset, results ModelResults) []FeatureRow {
	rows := make([]FeatureRow, ds.Len())
	for i, fv := range ds.Rows {
		rows[i] = FeatureRow{
			RunID:    runID,
			Index:    i,
			Features: append([]float64(nil), fv...),
		}
		if i < len(ds.Labels) {
			rows[i].Label = ds.Labels[i]
		}
	}

	if res, ok := results[ModelReduction]; ok && res.OK() && res.Reduction != nil {
		for i, c := range res.Reduction.Coordinates {
			if i < len(rows) {
				rows[i].Projection = append([]float64(nil), c...)
			}
		}
	}
	if res, ok := results[ModelClassification]; ok && res.OK() && res.Classification != nil {
		for i, p := range res.Classification.Predictions {
			if i < len(rows) {
				rows[i].Prediction = &p
			}
		}
	}
	if res, ok := results[ModelClustering]; ok && res.OK() && res.Clustering != nil {
		for i, a := range res.Clustering.Assignments {
			if i < len(rows) {
				rows[i].Cluster = &a
			}
		}
	}
	return rows
}
