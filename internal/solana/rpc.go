package solana

import "context"

// RPCClient defines the subset of the Solana RPC HTTP interface needed to snapshot NFT holders.
type RPCClient interface {
	// GetProgramAccounts returns all accounts owned by program that match cfg.
	GetProgramAccounts(ctx context.Context, program string, cfg *ProgramAccountsConfig) ([]ProgramAccount, error)

	// GetTokenLargestAccounts returns the largest token accounts holding mint.
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error)

	// GetTokenAccount returns the parsed SPL token account at address.
	// Returns nil if the account does not exist at the given commitment.
	GetTokenAccount(ctx context.Context, address string, commitment Commitment) (*TokenAccount, error)
}

// Commitment is the read-consistency level of an RPC query.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// ProgramAccount is one match of getProgramAccounts.
type ProgramAccount struct {
	Pubkey string
	Owner  string
	Data   []byte // decoded account payload
}
