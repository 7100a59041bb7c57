package domain

// FailedMarker is the textual form of a failed resolution in persisted rows.
const FailedMarker = "FAILED"

// Resolution is the outcome of one remote lookup for a mint.
// The zero value is a failed resolution.
type Resolution struct {
	address string
	ok      bool
}

// Resolved returns a successful resolution carrying address.
func Resolved(address string) Resolution {
	return Resolution{address: address, ok: true}
}

// Failed returns a failed resolution.
func Failed() Resolution {
	return Resolution{}
}

// OK reports whether the lookup produced an address.
func (r Resolution) OK() bool {
	return r.ok
}

// Address returns the resolved address, or "" when the lookup failed.
func (r Resolution) Address() string {
	return r.address
}

// String renders the resolution for persistence: the address or FailedMarker.
func (r Resolution) String() string {
	if !r.ok {
		return FailedMarker
	}
	return r.address
}

// ParseResolution is the inverse of Resolution.String.
func ParseResolution(s string) Resolution {
	if s == FailedMarker || s == "" {
		return Failed()
	}
	return Resolved(s)
}

// HolderRow is the resolved ownership of one mint.
// Corresponds to one line of a checkpoint file and to holder_checkpoints in PostgreSQL.
type HolderRow struct {
	Mint         string     // NFT mint address
	Owner        Resolution // wallet owning TokenAccount
	TokenAccount Resolution // token account holding the full supply of Mint
}

// Succeeded reports whether both lookups for the row resolved.
func (r HolderRow) Succeeded() bool {
	return r.Owner.OK() && r.TokenAccount.OK()
}

// RunState is a checkpoint split into rows that are done and mints that must be retried.
type RunState struct {
	Succeeded []HolderRow
	Failed    []string // mints whose row had at least one failed field
}

// NewRunState partitions rows by success.
func NewRunState(rows []HolderRow) *RunState {
	state := &RunState{
		Succeeded: make([]HolderRow, 0, len(rows)),
	}
	for _, row := range rows {
		if row.Succeeded() {
			state.Succeeded = append(state.Succeeded, row)
		} else {
			state.Failed = append(state.Failed, row.Mint)
		}
	}
	return state
}

// Merge returns the previously succeeded rows followed by fresh rows.
// Succeeded rows are never replaced, and each mint appears once.
func (s *RunState) Merge(fresh []HolderRow) []HolderRow {
	done := make(map[string]bool, len(s.Succeeded))
	out := make([]HolderRow, 0, len(s.Succeeded)+len(fresh))
	for _, row := range s.Succeeded {
		done[row.Mint] = true
		out = append(out, row)
	}
	for _, row := range fresh {
		if done[row.Mint] {
			continue
		}
		done[row.Mint] = true
		out = append(out, row)
	}
	return out
}
