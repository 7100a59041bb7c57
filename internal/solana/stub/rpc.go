package stub

import (
	"context"
	"fmt"
	"sync"

	"solana-nft-holders/internal/solana"
)

// ErrUnavailable is returned for calls configured to fail.
var ErrUnavailable = fmt.Errorf("%w: stub unavailable", solana.ErrTransport)

// RPCClient implements solana.RPCClient for testing.
// Failures can be injected per key; each injected failure is consumed by one call.
type RPCClient struct {
	mu sync.Mutex

	ProgramAccounts map[string][]solana.ProgramAccount      // program -> accounts
	LargestAccounts map[string][]solana.TokenAccountBalance // mint -> balances
	TokenAccounts   map[string]*solana.TokenAccount         // address -> account

	failures map[string]int   // method/key -> remaining failures
	calls    map[string]int   // method -> call count
	keyCalls map[string]int   // method/key -> call count
	errs     map[string]error // method/key -> permanent error
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		ProgramAccounts: make(map[string][]solana.ProgramAccount),
		LargestAccounts: make(map[string][]solana.TokenAccountBalance),
		TokenAccounts:   make(map[string]*solana.TokenAccount),
		failures:        make(map[string]int),
		calls:           make(map[string]int),
		keyCalls:        make(map[string]int),
		errs:            make(map[string]error),
	}
}

// GetProgramAccounts returns the accounts stored for program.
func (c *RPCClient) GetProgramAccounts(_ context.Context, program string, _ *solana.ProgramAccountsConfig) ([]solana.ProgramAccount, error) {
	if err := c.record("getProgramAccounts", program); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ProgramAccounts[program], nil
}

// GetTokenLargestAccounts returns the balances stored for mint.
func (c *RPCClient) GetTokenLargestAccounts(_ context.Context, mint string) ([]solana.TokenAccountBalance, error) {
	if err := c.record("getTokenLargestAccounts", mint); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.LargestAccounts[mint], nil
}

// GetTokenAccount returns the token account stored for address, or nil.
func (c *RPCClient) GetTokenAccount(_ context.Context, address string, _ solana.Commitment) (*solana.TokenAccount, error) {
	if err := c.record("getAccountInfo", address); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.TokenAccounts[address], nil
}

// AddProgramAccount adds an account owned by program.
func (c *RPCClient) AddProgramAccount(program string, acc solana.ProgramAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ProgramAccounts[program] = append(c.ProgramAccounts[program], acc)
}

// AddHolder registers tokenAccount as the sole holder of mint, owned by owner.
func (c *RPCClient) AddHolder(mint, tokenAccount, owner string) {
	one := 1.0
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LargestAccounts[mint] = append(c.LargestAccounts[mint], solana.TokenAccountBalance{
		Address:        tokenAccount,
		Amount:         "1",
		UIAmount:       &one,
		UIAmountString: "1",
	})
	if owner != "" {
		c.TokenAccounts[tokenAccount] = &solana.TokenAccount{
			Address: tokenAccount,
			Mint:    mint,
			Owner:   owner,
			Amount:  "1",
			State:   "initialized",
		}
	}
}

// SetOwner sets or replaces the owner of tokenAccount.
func (c *RPCClient) SetOwner(tokenAccount, owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TokenAccounts[tokenAccount] = &solana.TokenAccount{Address: tokenAccount, Owner: owner, Amount: "1"}
}

// FailNext makes the next n calls of method for key return ErrUnavailable.
func (c *RPCClient) FailNext(method, key string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[method+"/"+key] = n
}

// FailAlways makes every call of method for key return err.
func (c *RPCClient) FailAlways(method, key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[method+"/"+key] = err
}

// Calls returns the number of calls made to method.
func (c *RPCClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// CallsFor returns the number of calls made to method for key.
func (c *RPCClient) CallsFor(method, key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keyCalls[method+"/"+key]
}

func (c *RPCClient) record(method, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls[method]++
	k := method + "/" + key
	c.keyCalls[k]++

	if err, ok := c.errs[k]; ok {
		return err
	}
	if c.failures[k] > 0 {
		c.failures[k]--
		return ErrUnavailable
	}
	return nil
}

var _ solana.RPCClient = (*RPCClient)(nil)
