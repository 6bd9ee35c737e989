package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Default configuration values.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 0
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	// MainnetBetaEndpoint is the public mainnet-beta RPC endpoint.
	MainnetBetaEndpoint = "https://api.mainnet-beta.solana.com"
)

// Observer receives the latency and outcome of every RPC method call.
type Observer func(method string, elapsed time.Duration, err error)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	observer    Observer
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts. Zero or negative disables retries.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = max(n, 0)
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithObserver registers a per-call latency observer.
func WithObserver(o Observer) ClientOption {
	return func(c *HTTPClient) {
		c.observer = o
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call, timing it for the observer.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	start := time.Now()
	err := c.doCall(ctx, method, params, result)
	if c.observer != nil {
		c.observer(method, time.Since(start), err)
	}
	return err
}

// doCall performs a JSON-RPC call with retries and exponential backoff.
// Transport and HTTP status failures are retried; JSON-RPC errors and malformed results are not.
func (c *HTTPClient) doCall(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("rate limited (429)")
		}

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}

		if rpcResp.Error != nil {
			return backoff.Permanent(rpcResp.Error)
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return backoff.Permanent(fmt.Errorf("unmarshal result: %w", err))
			}
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(c.retryDelay),
			backoff.WithMaxInterval(c.maxDelay),
			backoff.WithMultiplier(c.backoffMult),
			backoff.WithMaxElapsedTime(0),
		), uint64(c.maxRetries)),
		ctx,
	)

	retried := false
	err = backoff.RetryNotify(op, policy, func(error, time.Duration) { retried = true })
	if err == nil {
		return nil
	}
	var rpcErr *RPCError
	if !retried || errors.As(err, &rpcErr) || ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("max retries exceeded: %w", err)
}

// contextValue wraps RPC results that are returned with a context slot.
type contextValue[T any] struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value T `json:"value"`
}

// GetBalance returns the lamport balance of an account.
func (c *HTTPClient) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	params := []interface{}{
		pubkey,
		map[string]interface{}{"commitment": "confirmed"},
	}

	var result contextValue[uint64]
	if err := c.call(ctx, "getBalance", params, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// getTokenLargestAccountsItem is the raw RPC response item for getTokenLargestAccounts.
type getTokenLargestAccountsItem struct {
	Address        string `json:"address"`
	Amount         string `json:"amount"`
	Decimals       int    `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

// GetTokenLargestAccounts returns the largest token accounts of a mint, largest first.
func (c *HTTPClient) GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error) {
	params := []interface{}{
		mint,
		map[string]interface{}{"commitment": "confirmed"},
	}

	var result contextValue[[]getTokenLargestAccountsItem]
	if err := c.call(ctx, "getTokenLargestAccounts", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]TokenAccountBalance, len(result.Value))
	for i, r := range result.Value {
		amount, err := parseAmount(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount of %s: %w", r.Address, err)
		}
		accounts[i] = TokenAccountBalance{
			Address:        r.Address,
			Amount:         amount,
			Decimals:       r.Decimals,
			UIAmountString: r.UIAmountString,
		}
	}
	return accounts, nil
}

// getClusterNodesItem is the raw RPC response item for getClusterNodes.
type getClusterNodesItem struct {
	Pubkey  string  `json:"pubkey"`
	Gossip  *string `json:"gossip"`
	RPC     *string `json:"rpc"`
	Version *string `json:"version"`
}

// GetClusterNodes returns the nodes participating in the cluster.
func (c *HTTPClient) GetClusterNodes(ctx context.Context) ([]ClusterNode, error) {
	var result []getClusterNodesItem
	if err := c.call(ctx, "getClusterNodes", nil, &result); err != nil {
		return nil, err
	}

	nodes := make([]ClusterNode, len(result))
	for i, r := range result {
		nodes[i] = ClusterNode{
			Pubkey:  r.Pubkey,
			Gossip:  deref(r.Gossip),
			RPC:     deref(r.RPC),
			Version: deref(r.Version),
		}
	}
	return nodes, nil
}

// GetSlot retrieves the current slot.
func (c *HTTPClient) GetSlot(ctx context.Context) (uint64, error) {
	var result uint64
	if err := c.call(ctx, "getSlot", nil, &result); err != nil {
		return 0, err
	}
	return result, nil
}

// GetSlotLeaders returns leaders for limit slots starting at start.
func (c *HTTPClient) GetSlotLeaders(ctx context.Context, start, limit uint64) ([]string, error) {
	params := []interface{}{start, limit}
	var result []string
	if err := c.call(ctx, "getSlotLeaders", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetHealth returns "ok" for a healthy node. An unhealthy node answers with an *RPCError.
func (c *HTTPClient) GetHealth(ctx context.Context) (string, error) {
	var result string
	if err := c.call(ctx, "getHealth", nil, &result); err != nil {
		return "", err
	}
	return result, nil
}

// getPerformanceSampleItem is the raw RPC response item for getRecentPerformanceSamples.
type getPerformanceSampleItem struct {
	Slot             uint64 `json:"slot"`
	NumTransactions  uint64 `json:"numTransactions"`
	NumSlots         uint64 `json:"numSlots"`
	SamplePeriodSecs uint64 `json:"samplePeriodSecs"`
}

// GetRecentPerformanceSamples returns up to limit samples, newest first.
func (c *HTTPClient) GetRecentPerformanceSamples(ctx context.Context, limit int) ([]PerformanceSample, error) {
	var params []interface{}
	if limit > 0 {
		params = []interface{}{limit}
	}

	var result []getPerformanceSampleItem
	if err := c.call(ctx, "getRecentPerformanceSamples", params, &result); err != nil {
		return nil, err
	}

	samples := make([]PerformanceSample, len(result))
	for i, r := range result {
		samples[i] = PerformanceSample(r)
	}
	return samples, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
