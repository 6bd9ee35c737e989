package solana

import "context"

// RPCClient defines the subset of the Solana JSON-RPC API used for health probing and sampling.
type RPCClient interface {
	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetTokenLargestAccounts returns the largest token accounts of a mint, largest first.
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error)

	// GetClusterNodes returns the nodes participating in the cluster.
	GetClusterNodes(ctx context.Context) ([]ClusterNode, error)

	// GetSlot returns the current slot.
	GetSlot(ctx context.Context) (uint64, error)

	// GetSlotLeaders returns leaders for limit slots starting at start.
	GetSlotLeaders(ctx context.Context, start, limit uint64) ([]string, error)

	// GetHealth returns "ok" for a healthy node, otherwise an *RPCError.
	GetHealth(ctx context.Context) (string, error)

	// GetRecentPerformanceSamples returns up to limit samples, newest first.
	GetRecentPerformanceSamples(ctx context.Context, limit int) ([]PerformanceSample, error)
}
