package solana

import "strconv"

// TokenAccountBalance is one entry of getTokenLargestAccounts.
type TokenAccountBalance struct {
	Address        string
	Amount         uint64 // raw amount, not adjusted for decimals
	Decimals       int
	UIAmountString string
}

// ClusterNode is one entry of getClusterNodes.
type ClusterNode struct {
	Pubkey  string
	Gossip  string
	RPC     string
	Version string
}

// PerformanceSample is one entry of getRecentPerformanceSamples.
type PerformanceSample struct {
	Slot             uint64
	NumTransactions  uint64
	NumSlots         uint64
	SamplePeriodSecs uint64
}

// SlotsPerSecond returns the block production rate of the sample.
func (s PerformanceSample) SlotsPerSecond() float64 {
	if s.SamplePeriodSecs == 0 {
		return 0
	}
	return float64(s.NumSlots) / float64(s.SamplePeriodSecs)
}

// parseAmount parses a decimal u64 string as returned by token RPC methods.
func parseAmount(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
