package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PubkeyLength is the size of a Solana public key in bytes.
const PubkeyLength = 32

// MetadataProgramID is the Metaplex token metadata program.
const MetadataProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

// DecodePubkey decodes a base58 public key and checks its length.
func DecodePubkey(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode pubkey %q: %w", s, err)
	}
	if len(b) != PubkeyLength {
		return nil, fmt.Errorf("decode pubkey %q: expected %d bytes, got %d", s, PubkeyLength, len(b))
	}
	return b, nil
}

// EncodePubkey encodes 32 raw bytes as a base58 public key.
func EncodePubkey(b []byte) string {
	return base58.Encode(b)
}

// IsOnCurve reports whether the public key is a point on the ed25519 curve.
// Wallets are on-curve; program derived addresses are not.
func IsOnCurve(pubkey string) bool {
	b, err := DecodePubkey(pubkey)
	if err != nil {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(b)
	return err == nil
}
