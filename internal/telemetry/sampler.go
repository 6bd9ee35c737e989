package telemetry

import (
	"context"
	"errors"
	"fmt"
	"math"

	"solana-telemetry-lab/internal/domain"
	"solana-telemetry-lab/internal/solana"
)

// Default sampler settings.
const (
	DefaultLeaderWindow = 10
)

// NodeSampler builds telemetry records directly from a node, one record per sampled account.
// Cluster-wide fields are queried once and shared by every record of the run.
type NodeSampler struct {
	client       solana.RPCClient
	accounts     []string
	mint         string
	leaderWindow uint64
}

// NewNodeSampler creates a sampler for accounts. mint selects the token whose
// largest holders fill largest_accounts.
func NewNodeSampler(client solana.RPCClient, accounts []string, mint string) *NodeSampler {
	return &NodeSampler{
		client:       client,
		accounts:     append([]string(nil), accounts...),
		mint:         mint,
		leaderWindow: DefaultLeaderWindow,
	}
}

var _ Source = (*NodeSampler)(nil)

// Name identifies the sampler.
func (s *NodeSampler) Name() string {
	return "rpc-sampler"
}

// clusterSnapshot holds the fields common to every record of one sampling pass.
type clusterSnapshot struct {
	largest      []uint64
	clusterNodes uint64
	leaders      []string
	health       string
	productionHz uint64
}

// Fetch samples every configured account. Any node failure fails the whole fetch.
func (s *NodeSampler) Fetch(ctx context.Context) ([]domain.TelemetryRecord, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]domain.TelemetryRecord, 0, len(s.accounts))
	for _, acct := range s.accounts {
		balance, err := s.client.GetBalance(ctx, acct)
		if err != nil {
			return nil, fmt.Errorf("%w: getBalance %s: %v", domain.ErrTransport, acct, err)
		}
		records = append(records, domain.TelemetryRecord{
			Balance:             balance,
			LargestAccounts:     append([]uint64(nil), snap.largest...),
			ClusterNodes:        snap.clusterNodes,
			SlotLeaders:         append([]string(nil), snap.leaders...),
			HealthStatus:        snap.health,
			BlockProductionRate: snap.productionHz,
		})
	}
	return records, nil
}

func (s *NodeSampler) snapshot(ctx context.Context) (*clusterSnapshot, error) {
	snap := &clusterSnapshot{}

	holders, err := s.client.GetTokenLargestAccounts(ctx, s.mint)
	if err != nil {
		return nil, fmt.Errorf("%w: getTokenLargestAccounts: %v", domain.ErrTransport, err)
	}
	snap.largest = make([]uint64, len(holders))
	for i, h := range holders {
		snap.largest[i] = h.Amount
	}

	nodes, err := s.client.GetClusterNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: getClusterNodes: %v", domain.ErrTransport, err)
	}
	snap.clusterNodes = uint64(len(nodes))

	slot, err := s.client.GetSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: getSlot: %v", domain.ErrTransport, err)
	}
	snap.leaders, err = s.client.GetSlotLeaders(ctx, slot, s.leaderWindow)
	if err != nil {
		return nil, fmt.Errorf("%w: getSlotLeaders: %v", domain.ErrTransport, err)
	}

	snap.health, err = s.client.GetHealth(ctx)
	if err != nil {
		// An unhealthy node answers with an RPC error; its message is the status.
		var rpcErr *solana.RPCError
		if !errors.As(err, &rpcErr) {
			return nil, fmt.Errorf("%w: getHealth: %v", domain.ErrTransport, err)
		}
		snap.health = rpcErr.Message
	}

	samples, err := s.client.GetRecentPerformanceSamples(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: getRecentPerformanceSamples: %v", domain.ErrTransport, err)
	}
	if len(samples) > 0 {
		snap.productionHz = uint64(math.Floor(samples[0].SlotsPerSecond()))
	}

	return snap, nil
}
