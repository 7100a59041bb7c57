package metaplex

import (
	"encoding/binary"

	"solana-nft-holders/internal/domain"
	"solana-nft-holders/internal/solana"
)

// metadataV1Key is the account key discriminator of a metadata account.
const metadataV1Key = 4

// Encode writes md in the layout the metadata program stores, with name,
// symbol and uri NUL-padded to their capacities. Addresses that are not valid
// base58 public keys are written as zeros.
func Encode(md *domain.TokenMetadata) []byte {
	buf := []byte{metadataV1Key}
	buf = appendPubkey(buf, md.UpdateAuthority)
	buf = appendPubkey(buf, md.Mint)
	buf = appendPadded(buf, md.Name, MaxNameLength)
	buf = appendPadded(buf, md.Symbol, MaxSymbolLength)
	buf = appendPadded(buf, md.URI, MaxURILength)
	buf = binary.LittleEndian.AppendUint16(buf, md.SellerFeeBasisPoints)

	if md.Creators == nil {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(md.Creators)))
		for _, c := range md.Creators {
			buf = appendPubkey(buf, c.Address)
			buf = append(buf, boolByte(c.Verified), c.Share)
		}
	}

	return append(buf, boolByte(md.PrimarySaleHappened), boolByte(md.IsMutable))
}

func appendPubkey(buf []byte, s string) []byte {
	b, err := solana.DecodePubkey(s)
	if err != nil {
		b = make([]byte, solana.PubkeyLength)
	}
	return append(buf, b...)
}

func appendPadded(buf []byte, s string, capacity int) []byte {
	if len(s) > capacity {
		s = s[:capacity]
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(capacity))
	padded := make([]byte, capacity)
	copy(padded, s)
	return append(buf, padded...)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
