package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"solana-telemetry-lab/internal/domain"
)

// wireRecord mirrors the provider's JSON object. Numeric fields are kept raw so that
// strings, fractions and negative values are rejected instead of coerced.
type wireRecord struct {
	Balance             json.RawMessage
	LargestAccounts     []json.RawMessage
	ClusterNodes        json.RawMessage
	SlotLeaders         []string
	HealthStatus        string
	BlockProductionRate json.RawMessage
}

// newWireRecord picks fields by exact key. encoding/json folds key case on struct
// decoding, so "BALANCE" would otherwise satisfy "balance".
func newWireRecord(obj map[string]json.RawMessage) (*wireRecord, error) {
	w := &wireRecord{
		Balance:             obj["balance"],
		ClusterNodes:        obj["cluster_nodes"],
		BlockProductionRate: obj["block_production_rate"],
	}
	if raw, ok := obj["largest_accounts"]; ok {
		if err := json.Unmarshal(raw, &w.LargestAccounts); err != nil {
			return nil, fmt.Errorf("largest_accounts: %v", err)
		}
	}
	if raw, ok := obj["slot_leaders"]; ok {
		if err := json.Unmarshal(raw, &w.SlotLeaders); err != nil {
			return nil, fmt.Errorf("slot_leaders: %v", err)
		}
	}
	if raw, ok := obj["health_status"]; ok {
		if err := json.Unmarshal(raw, &w.HealthStatus); err != nil {
			return nil, fmt.Errorf("health_status: %v", err)
		}
	}
	return w, nil
}

// Decode parses a JSON array of telemetry objects. Keys match case-sensitively and
// unknown fields are ignored; a missing, mistyped or negative required field rejects
// the whole payload.
func Decode(body []byte) ([]domain.TelemetryRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: payload is not a JSON array", domain.ErrDecode)
	}

	var objects []map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &objects); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}

	records := make([]domain.TelemetryRecord, 0, len(objects))
	for i, obj := range objects {
		if obj == nil {
			return nil, fmt.Errorf("%w: record %d is null", domain.ErrDecode, i)
		}
		w, err := newWireRecord(obj)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", domain.ErrDecode, i, err)
		}
		rec, err := w.toRecord()
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", domain.ErrDecode, i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (w *wireRecord) toRecord() (domain.TelemetryRecord, error) {
	var rec domain.TelemetryRecord
	var err error

	if rec.Balance, err = requiredUint("balance", w.Balance); err != nil {
		return rec, err
	}
	if rec.ClusterNodes, err = requiredUint("cluster_nodes", w.ClusterNodes); err != nil {
		return rec, err
	}
	if rec.BlockProductionRate, err = requiredUint("block_production_rate", w.BlockProductionRate); err != nil {
		return rec, err
	}

	rec.LargestAccounts = make([]uint64, len(w.LargestAccounts))
	for i, raw := range w.LargestAccounts {
		v, err := parseUint(raw)
		if err != nil {
			return rec, fmt.Errorf("largest_accounts[%d]: %v", i, err)
		}
		rec.LargestAccounts[i] = v
	}

	rec.SlotLeaders = w.SlotLeaders
	if rec.SlotLeaders == nil {
		rec.SlotLeaders = []string{}
	}
	rec.HealthStatus = w.HealthStatus
	return rec, nil
}

func requiredUint(field string, raw json.RawMessage) (uint64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("%s: missing", field)
	}
	v, err := parseUint(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", field, err)
	}
	return v, nil
}

// parseUint accepts only a bare non-negative JSON integer literal.
func parseUint(raw json.RawMessage) (uint64, error) {
	s := string(bytes.TrimSpace(raw))
	switch {
	case s == "" || s == "null":
		return 0, fmt.Errorf("null value")
	case s[0] == '-':
		return 0, fmt.Errorf("negative value %s", s)
	case s[0] < '0' || s[0] > '9':
		return 0, fmt.Errorf("not an integer: %s", s)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a non-negative integer: %s", s)
	}
	return v, nil
}
