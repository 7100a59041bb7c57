// Package collection resolves NFT collection membership and ownership against Solana RPC.
package collection

import (
	"context"
	"errors"
	"fmt"

	"solana-nft-holders/internal/domain"
	"solana-nft-holders/internal/metaplex"
	"solana-nft-holders/internal/solana"
)

// ErrNotFound is returned when the queried holder or token account does not exist.
// It is not terminal: a freshly transferred account may not be visible yet.
var ErrNotFound = errors.New("not found")

// Lookup wraps the RPC calls needed to snapshot a collection.
// All methods are pure reads and safe to retry.
type Lookup struct {
	rpc solana.RPCClient
}

// NewLookup creates a Lookup over rpc.
func NewLookup(rpc solana.RPCClient) *Lookup {
	return &Lookup{rpc: rpc}
}

// ListMints returns the mint of every metadata account whose first creator is creator.
// A single undecodable account fails the whole listing.
func (l *Lookup) ListMints(ctx context.Context, creator string) ([]string, error) {
	items, err := l.ListMetadata(ctx, creator)
	if err != nil {
		return nil, err
	}

	mints := make([]string, len(items))
	for i, md := range items {
		mints[i] = md.Mint
	}
	return mints, nil
}

// ListMetadata returns the decoded metadata of every account whose first creator is creator.
func (l *Lookup) ListMetadata(ctx context.Context, creator string) ([]domain.TokenMetadata, error) {
	if _, err := solana.DecodePubkey(creator); err != nil {
		return nil, fmt.Errorf("invalid creator address: %w", err)
	}

	accounts, err := l.rpc.GetProgramAccounts(ctx, solana.MetadataProgramID, &solana.ProgramAccountsConfig{
		Filters: []solana.MemcmpFilter{
			{Offset: metaplex.FirstCreatorOffset, Bytes: creator},
		},
		Commitment: solana.CommitmentFinalized,
	})
	if err != nil {
		return nil, fmt.Errorf("get program accounts: %w", err)
	}

	items := make([]domain.TokenMetadata, 0, len(accounts))
	for _, acc := range accounts {
		md, err := metaplex.Decode(acc.Data)
		if err != nil {
			return nil, fmt.Errorf("decode metadata %s: %w", acc.Pubkey, err)
		}
		items = append(items, *md)
	}

	return items, nil
}

// ResolveHolderAccount returns the token account holding the entire supply of mint.
func (l *Lookup) ResolveHolderAccount(ctx context.Context, mint string) (string, error) {
	balances, err := l.rpc.GetTokenLargestAccounts(ctx, mint)
	if err != nil {
		return "", err
	}

	for _, b := range balances {
		if isSoleHolder(b) {
			return b.Address, nil
		}
	}

	return "", fmt.Errorf("holder of %s: %w", mint, ErrNotFound)
}

// isSoleHolder reports whether the account holds exactly one whole token.
func isSoleHolder(b solana.TokenAccountBalance) bool {
	return b.UIAmount != nil && *b.UIAmount == 1.0
}

// ResolveOwner returns the wallet owning tokenAccount at finalized commitment.
func (l *Lookup) ResolveOwner(ctx context.Context, tokenAccount string) (string, error) {
	acc, err := l.rpc.GetTokenAccount(ctx, tokenAccount, solana.CommitmentFinalized)
	if err != nil {
		return "", err
	}
	if acc == nil {
		return "", fmt.Errorf("token account %s: %w", tokenAccount, ErrNotFound)
	}
	return acc.Owner, nil
}
