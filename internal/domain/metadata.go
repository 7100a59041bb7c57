package domain

// TokenMetadata is the decoded Metaplex metadata account of an NFT.
type TokenMetadata struct {
	UpdateAuthority      string    // base58 update authority
	Mint                 string    // base58 mint address
	Name                 string    // NUL padding trimmed
	Symbol               string    // NUL padding trimmed
	URI                  string    // NUL padding trimmed
	SellerFeeBasisPoints uint16    // royalty in basis points
	Creators             []Creator // nil when the account has no creators
	PrimarySaleHappened  bool
	IsMutable            bool
}

// Creator is one entry of the metadata creators array.
// The first creator is the collection identifier used for listing.
type Creator struct {
	Address  string
	Verified bool
	Share    uint8 // percentage of royalties
}
