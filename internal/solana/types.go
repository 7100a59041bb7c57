package solana

// MemcmpFilter matches accounts whose data contains Bytes (base58) at Offset.
type MemcmpFilter struct {
	Offset int
	Bytes  string
}

// ProgramAccountsConfig defines optional parameters for getProgramAccounts.
type ProgramAccountsConfig struct {
	Filters    []MemcmpFilter
	Commitment Commitment
	DataSize   int // 0 disables the dataSize filter
}

// TokenAccountBalance is one entry of getTokenLargestAccounts.
type TokenAccountBalance struct {
	Address        string
	Amount         string   // raw amount without decimals
	Decimals       int
	UIAmount       *float64 // nil when the node omits it
	UIAmountString string
}

// TokenAccount is a jsonParsed SPL token account.
type TokenAccount struct {
	Address  string
	Mint     string
	Owner    string // wallet with authority over the account
	Amount   string
	Decimals int
	State    string // initialized | frozen
}
