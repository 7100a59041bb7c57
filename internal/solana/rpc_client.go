package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"solana-nft-holders/internal/observability"
)

// DefaultTimeout is long because getProgramAccounts with a memcmp filter scans
// every metadata account on the node and routinely takes minutes.
const DefaultTimeout = 300 * time.Second

// ErrTransport is returned when the endpoint is unreachable, answers with a
// non-200 status, or returns a body that is not a valid JSON-RPC response.
var ErrTransport = errors.New("solana rpc transport error")

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
// Each method issues exactly one request; retrying is left to the caller.
type HTTPClient struct {
	endpoint  string
	client    *http.Client
	requestID atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the RPC URL the client talks to.
func (c *HTTPClient) Endpoint() string {
	return c.endpoint
}

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

// Unwrap classifies node-side errors as transport errors: the node failed to serve the request.
func (e *RPCError) Unwrap() error {
	return ErrTransport
}

// call performs a single JSON-RPC call.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start).Seconds(), err)
	}()

	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: http request: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: rate limited (429)", ErrTransport)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d: %s", ErrTransport, resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("%w: unmarshal response: %v", ErrTransport, err)
	}

	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: unmarshal result: %v", ErrTransport, err)
		}
	}

	return nil
}

// GetProgramAccounts retrieves all accounts owned by program matching cfg.
func (c *HTTPClient) GetProgramAccounts(ctx context.Context, program string, cfg *ProgramAccountsConfig) ([]ProgramAccount, error) {
	config := map[string]interface{}{
		"encoding":    "base64",
		"withContext": false,
	}
	if cfg != nil {
		var filters []map[string]interface{}
		if cfg.DataSize > 0 {
			filters = append(filters, map[string]interface{}{"dataSize": cfg.DataSize})
		}
		for _, f := range cfg.Filters {
			filters = append(filters, map[string]interface{}{
				"memcmp": map[string]interface{}{
					"offset": f.Offset,
					"bytes":  f.Bytes,
				},
			})
		}
		if len(filters) > 0 {
			config["filters"] = filters
		}
		if cfg.Commitment != "" {
			config["commitment"] = string(cfg.Commitment)
		}
	}

	var result []getProgramAccountsResult
	if err := c.call(ctx, "getProgramAccounts", []interface{}{program, config}, &result); err != nil {
		return nil, err
	}

	accounts := make([]ProgramAccount, len(result))
	for i, r := range result {
		var data []byte
		if len(r.Account.Data) >= 1 {
			decoded, err := base64.StdEncoding.DecodeString(r.Account.Data[0])
			if err != nil {
				return nil, fmt.Errorf("%w: decode account %s data: %v", ErrTransport, r.Pubkey, err)
			}
			data = decoded
		}
		accounts[i] = ProgramAccount{
			Pubkey: r.Pubkey,
			Owner:  r.Account.Owner,
			Data:   data,
		}
	}

	return accounts, nil
}

// getProgramAccountsResult is the raw RPC response item for getProgramAccounts.
type getProgramAccountsResult struct {
	Pubkey  string `json:"pubkey"`
	Account struct {
		Owner string   `json:"owner"`
		Data  []string `json:"data"` // [base64_data, encoding]
	} `json:"account"`
}

// GetTokenLargestAccounts retrieves the 20 largest accounts holding mint.
func (c *HTTPClient) GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error) {
	var result getTokenLargestAccountsResult
	if err := c.call(ctx, "getTokenLargestAccounts", []interface{}{mint}, &result); err != nil {
		return nil, err
	}

	balances := make([]TokenAccountBalance, len(result.Value))
	for i, v := range result.Value {
		balances[i] = TokenAccountBalance{
			Address:        v.Address,
			Amount:         v.Amount,
			Decimals:       v.Decimals,
			UIAmount:       v.UIAmount,
			UIAmountString: v.UIAmountString,
		}
	}

	return balances, nil
}

type getTokenLargestAccountsResult struct {
	Value []struct {
		Address        string   `json:"address"`
		Amount         string   `json:"amount"`
		Decimals       int      `json:"decimals"`
		UIAmount       *float64 `json:"uiAmount"`
		UIAmountString string   `json:"uiAmountString"`
	} `json:"value"`
}

// GetTokenAccount retrieves a jsonParsed SPL token account.
// Returns nil if account not found.
func (c *HTTPClient) GetTokenAccount(ctx context.Context, address string, commitment Commitment) (*TokenAccount, error) {
	config := map[string]interface{}{
		"encoding": "jsonParsed",
	}
	if commitment != "" {
		config["commitment"] = string(commitment)
	}

	var result getTokenAccountResult
	if err := c.call(ctx, "getAccountInfo", []interface{}{address, config}, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	var data parsedAccountData
	if err := json.Unmarshal(result.Value.Data, &data); err != nil {
		// Non-parsed data comes back as [base64, encoding]: not a token account.
		return nil, fmt.Errorf("%w: account %s is not a parsed token account", ErrTransport, address)
	}
	if data.Parsed.Type != "account" || data.Parsed.Info.Owner == "" {
		return nil, fmt.Errorf("%w: account %s has unexpected type %q", ErrTransport, address, data.Parsed.Type)
	}

	info := data.Parsed.Info
	return &TokenAccount{
		Address:  address,
		Mint:     info.Mint,
		Owner:    info.Owner,
		Amount:   info.TokenAmount.Amount,
		Decimals: info.TokenAmount.Decimals,
		State:    info.State,
	}, nil
}

type getTokenAccountResult struct {
	Value *struct {
		Owner string          `json:"owner"` // owning program
		Data  json.RawMessage `json:"data"`
	} `json:"value"`
}

type parsedAccountData struct {
	Program string `json:"program"`
	Parsed  struct {
		Type string `json:"type"`
		Info struct {
			Mint        string `json:"mint"`
			Owner       string `json:"owner"`
			State       string `json:"state"`
			TokenAmount struct {
				Amount   string `json:"amount"`
				Decimals int    `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}
