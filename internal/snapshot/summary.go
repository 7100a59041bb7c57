package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/google/renameio/v2"

	"solana-nft-holders/internal/domain"
	"solana-nft-holders/internal/solana"
)

// DefaultTopHolders is how many holders Summarize ranks.
const DefaultTopHolders = 10

// HolderCount is the number of mints held by one owner.
type HolderCount struct {
	Owner    string `json:"owner"`
	Mints    int    `json:"mints"`
	OffCurve bool   `json:"off_curve,omitempty"`
}

// Summary aggregates the rows of one snapshot.
type Summary struct {
	Collection string `json:"collection"`
	Total      int    `json:"total"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`

	UniqueOwners int `json:"unique_owners"`
	// OffCurveOwners counts owners that are program derived addresses,
	// typically escrow or staking programs rather than wallets.
	OffCurveOwners int `json:"off_curve_owners"`

	Distribution map[string]int `json:"distribution"`
	TopHolders   []HolderCount  `json:"top_holders"`
}

// Summarize computes holder statistics over rows. Failed rows only count towards Failed.
func Summarize(collection string, rows []domain.HolderRow, top int) Summary {
	s := Summary{
		Collection:   collection,
		Total:        len(rows),
		Distribution: make(map[string]int),
		TopHolders:   []HolderCount{},
	}

	counts := make(map[string]int)
	for _, row := range rows {
		if !row.Succeeded() {
			s.Failed++
			continue
		}
		s.Succeeded++
		counts[row.Owner.Address()]++
	}
	s.UniqueOwners = len(counts)

	holders := make([]HolderCount, 0, len(counts))
	for owner, n := range counts {
		h := HolderCount{Owner: owner, Mints: n, OffCurve: !isWallet(owner)}
		if h.OffCurve {
			s.OffCurveOwners++
		}
		s.Distribution[bucket(n)]++
		holders = append(holders, h)
	}

	sort.Slice(holders, func(i, j int) bool {
		if holders[i].Mints != holders[j].Mints {
			return holders[i].Mints > holders[j].Mints
		}
		return holders[i].Owner < holders[j].Owner
	})
	if top > 0 && len(holders) > top {
		holders = holders[:top]
	}
	s.TopHolders = append(s.TopHolders, holders...)

	return s
}

// isWallet reports whether owner is a key on the ed25519 curve.
// Undecodable owners are treated as wallets so they are not misreported as programs.
func isWallet(owner string) bool {
	if _, err := solana.DecodePubkey(owner); err != nil {
		return true
	}
	return solana.IsOnCurve(owner)
}

func bucket(n int) string {
	switch {
	case n == 1:
		return "1 NFT"
	case n <= 5:
		return "2-5 NFTs"
	case n <= 10:
		return "6-10 NFTs"
	default:
		return "11+ NFTs"
	}
}

// Print writes a human readable summary to w.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "\n=== Holder Summary ===\n")
	fmt.Fprintf(w, "Collection: %s\n", s.Collection)
	fmt.Fprintf(w, "Mints: %d (%d succeeded, %d failed)\n", s.Total, s.Succeeded, s.Failed)
	fmt.Fprintf(w, "Unique Holders: %d (%d program owned)\n", s.UniqueOwners, s.OffCurveOwners)

	if len(s.Distribution) > 0 {
		fmt.Fprintln(w, "\nDistribution:")
		for _, key := range []string{"1 NFT", "2-5 NFTs", "6-10 NFTs", "11+ NFTs"} {
			if n := s.Distribution[key]; n > 0 {
				fmt.Fprintf(w, "  %s: %d holders\n", key, n)
			}
		}
	}

	if len(s.TopHolders) > 0 {
		fmt.Fprintf(w, "\nTop %d Holders:\n", len(s.TopHolders))
		for i, h := range s.TopHolders {
			fmt.Fprintf(w, "  %d. %s: %d NFTs\n", i+1, h.Owner, h.Mints)
		}
	}
}

// WriteJSON atomically writes the summary as indented JSON to path.
func (s Summary) WriteJSON(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write summary %s: %w", path, err)
	}
	return nil
}
