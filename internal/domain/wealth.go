package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// WealthSummary is the result of the node health probe.
type WealthSummary struct {
	Account         string          `json:"account"`
	Mint            string          `json:"mint"`
	Balance         uint64          `json:"balance"`
	BalanceSOL      decimal.Decimal `json:"balance_sol"`
	OnCurve         bool            `json:"on_curve"`
	LargestHolders  []uint64        `json:"largest_holders"`
	TotalTopHolders uint64          `json:"total_top_holders"`
	TopHolderShare  float64         `json:"top_holder_share"`
	HHI             float64         `json:"hhi"`
}

// LamportsToSOL converts lamports to SOL without rounding (1 SOL = 1e9 lamports).
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9)
}
