package stub

import (
	"context"
	"errors"
	"sync"

	"solana-telemetry-lab/internal/solana"
)

// ErrNotFound is returned when an account is not known to the stub.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing.
// Set Err to make every call fail.
type RPCClient struct {
	mu sync.Mutex

	Balances      map[string]uint64
	LargestByMint map[string][]solana.TokenAccountBalance
	Nodes         []solana.ClusterNode
	Slot          uint64
	Leaders       []string
	Health        string
	HealthErr     error
	Samples       []solana.PerformanceSample
	Err           error
	Calls         map[string]int
}

// NewRPCClient creates a new stub RPC client reporting a healthy node.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Balances:      make(map[string]uint64),
		LargestByMint: make(map[string][]solana.TokenAccountBalance),
		Health:        "ok",
		Calls:         make(map[string]int),
	}
}

var _ solana.RPCClient = (*RPCClient)(nil)

func (c *RPCClient) record(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls[method]++
	return c.Err
}

// GetBalance returns the stored balance for pubkey.
func (c *RPCClient) GetBalance(_ context.Context, pubkey string) (uint64, error) {
	if err := c.record("getBalance"); err != nil {
		return 0, err
	}
	balance, ok := c.Balances[pubkey]
	if !ok {
		return 0, ErrNotFound
	}
	return balance, nil
}

// GetTokenLargestAccounts returns the stored accounts for mint.
func (c *RPCClient) GetTokenLargestAccounts(_ context.Context, mint string) ([]solana.TokenAccountBalance, error) {
	if err := c.record("getTokenLargestAccounts"); err != nil {
		return nil, err
	}
	return c.LargestByMint[mint], nil
}

// GetClusterNodes returns the stored nodes.
func (c *RPCClient) GetClusterNodes(_ context.Context) ([]solana.ClusterNode, error) {
	if err := c.record("getClusterNodes"); err != nil {
		return nil, err
	}
	return c.Nodes, nil
}

// GetSlot returns the stored slot.
func (c *RPCClient) GetSlot(_ context.Context) (uint64, error) {
	if err := c.record("getSlot"); err != nil {
		return 0, err
	}
	return c.Slot, nil
}

// GetSlotLeaders returns up to limit stored leaders.
func (c *RPCClient) GetSlotLeaders(_ context.Context, _ uint64, limit uint64) ([]string, error) {
	if err := c.record("getSlotLeaders"); err != nil {
		return nil, err
	}
	if limit < uint64(len(c.Leaders)) {
		return c.Leaders[:limit], nil
	}
	return c.Leaders, nil
}

// GetHealth returns the stored health status or HealthErr.
func (c *RPCClient) GetHealth(_ context.Context) (string, error) {
	if err := c.record("getHealth"); err != nil {
		return "", err
	}
	if c.HealthErr != nil {
		return "", c.HealthErr
	}
	return c.Health, nil
}

// GetRecentPerformanceSamples returns up to limit stored samples.
func (c *RPCClient) GetRecentPerformanceSamples(_ context.Context, limit int) ([]solana.PerformanceSample, error) {
	if err := c.record("getRecentPerformanceSamples"); err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(c.Samples) {
		return c.Samples[:limit], nil
	}
	return c.Samples, nil
}

// SetLargest stores largest-holder amounts for mint.
func (c *RPCClient) SetLargest(mint string, amounts ...uint64) {
	accounts := make([]solana.TokenAccountBalance, len(amounts))
	for i, a := range amounts {
		accounts[i] = solana.TokenAccountBalance{Amount: a, Decimals: 9}
	}
	c.LargestByMint[mint] = accounts
}
