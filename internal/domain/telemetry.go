package domain

// TelemetryRecord is one sampled snapshot of network/account state.
// Amounts are in lamports.
type TelemetryRecord struct {
	Balance             uint64   `json:"balance"`
	LargestAccounts     []uint64 `json:"largest_accounts"`
	ClusterNodes        uint64   `json:"cluster_nodes"`
	SlotLeaders         []string `json:"slot_leaders"`
	HealthStatus        string   `json:"health_status"`
	BlockProductionRate uint64   `json:"block_production_rate"`
}

// Clone returns a deep copy of the record.
func (r TelemetryRecord) Clone() TelemetryRecord {
	out := r
	if r.LargestAccounts != nil {
		out.LargestAccounts = append([]uint64(nil), r.LargestAccounts...)
	}
	if r.SlotLeaders != nil {
		out.SlotLeaders = append([]string(nil), r.SlotLeaders...)
	}
	return out
}
