// Package health probes a Solana node for an account balance and token holder concentration.
package health

import (
	"context"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"solana-telemetry-lab/internal/domain"
	"solana-telemetry-lab/internal/solana"
)

// WrappedSOLMint is the native SOL mint, used when no mint is configured.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

// DefaultHolderLimit caps the number of largest holders kept in a summary.
const DefaultHolderLimit = 10

// Prober queries a node for the balance of one account and the largest holders of one mint.
type Prober struct {
	client  solana.RPCClient
	account string
	mint    string
	limit   int
}

// NewProber creates a prober. An empty mint defaults to WrappedSOLMint.
func NewProber(client solana.RPCClient, account, mint string, limit int) *Prober {
	if mint == "" {
		mint = WrappedSOLMint
	}
	if limit <= 0 {
		limit = DefaultHolderLimit
	}
	return &Prober{client: client, account: account, mint: mint, limit: limit}
}

// Account returns the probed account.
func (p *Prober) Account() string {
	return p.account
}

// Probe fetches the balance and largest holders. Every failure wraps domain.ErrRPC.
func (p *Prober) Probe(ctx context.Context) (*domain.WealthSummary, error) {
	key, err := decodePubkey(p.account)
	if err != nil {
		return nil, fmt.Errorf("%w: account: %v", domain.ErrRPC, err)
	}
	if _, err := decodePubkey(p.mint); err != nil {
		return nil, fmt.Errorf("%w: mint: %v", domain.ErrRPC, err)
	}

	balance, err := p.client.GetBalance(ctx, p.account)
	if err != nil {
		return nil, fmt.Errorf("%w: getBalance: %v", domain.ErrRPC, err)
	}

	accounts, err := p.client.GetTokenLargestAccounts(ctx, p.mint)
	if err != nil {
		return nil, fmt.Errorf("%w: getTokenLargestAccounts: %v", domain.ErrRPC, err)
	}

	holders := make([]uint64, 0, min(len(accounts), p.limit))
	for _, a := range accounts {
		if len(holders) == p.limit {
			break
		}
		holders = append(holders, a.Amount)
	}

	summary := &domain.WealthSummary{
		Account:        p.account,
		Mint:           p.mint,
		Balance:        balance,
		BalanceSOL:     domain.LamportsToSOL(balance),
		OnCurve:        onCurve(key),
		LargestHolders: holders,
	}
	summary.TotalTopHolders, summary.TopHolderShare, summary.HHI = concentration(holders)
	return summary, nil
}

// concentration returns the holder total, the share of the largest holder and the
// Herfindahl-Hirschman index over the given holders.
func concentration(holders []uint64) (total uint64, topShare, hhi float64) {
	var sum, top float64
	for _, h := range holders {
		total += h
		sum += float64(h)
		if float64(h) > top {
			top = float64(h)
		}
	}
	if sum == 0 {
		return total, 0, 0
	}
	for _, h := range holders {
		s := float64(h) / sum
		hhi += s * s
	}
	return total, top / sum, hhi
}

// decodePubkey decodes a base58 public key and checks its length.
func decodePubkey(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("empty public key")
	}
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", s, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("public key %q has %d bytes, expected 32", s, len(b))
	}
	return b, nil
}

// onCurve reports whether key is a valid ed25519 point. Program-derived addresses are not.
func onCurve(key []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(key)
	return err == nil
}
