// Package metaplex decodes Metaplex token metadata accounts.
package metaplex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"solana-nft-holders/internal/domain"
	"solana-nft-holders/internal/solana"
)

// Fixed string capacities of the metadata account. Strings are stored
// length-prefixed and NUL-padded up to these sizes.
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200
)

// FirstCreatorOffset is the byte offset of creators[0].address in a metadata account:
// key(1) | update_authority(32) | mint(32) | name(4+32) | symbol(4+10) | uri(4+200) |
// seller_fee_basis_points(2) | creators option tag(1) | creators length(4).
const FirstCreatorOffset = 1 + 32 + 32 + 4 + MaxNameLength + 4 + MaxSymbolLength + 4 + MaxURILength + 2 + 1 + 4

// ErrMalformed is returned when account data does not follow the metadata layout.
var ErrMalformed = errors.New("malformed metadata account")

// Decode parses the metadata layout from raw account data.
// Trailing fields added by later program versions are ignored.
func Decode(data []byte) (*domain.TokenMetadata, error) {
	r := &reader{buf: data}

	r.u8() // account key discriminator
	md := &domain.TokenMetadata{
		UpdateAuthority: r.pubkey(),
		Mint:            r.pubkey(),
		Name:            r.str(),
		Symbol:          r.str(),
		URI:             r.str(),
	}
	md.SellerFeeBasisPoints = r.u16()

	if r.option() {
		n := r.u32()
		if r.err == nil && int(n) > r.remaining()/34 {
			r.fail("creators length %d exceeds data", n)
		}
		for i := uint32(0); i < n && r.err == nil; i++ {
			md.Creators = append(md.Creators, domain.Creator{
				Address:  r.pubkey(),
				Verified: r.boolean(),
				Share:    r.u8(),
			})
		}
	}

	md.PrimarySaleHappened = r.boolean()
	md.IsMutable = r.boolean()

	if r.err != nil {
		return nil, r.err
	}
	return md, nil
}

// reader is a sticky-error borsh reader.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) fail(format string, args ...interface{}) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: at offset %d: %s", ErrMalformed, r.off, fmt.Sprintf(format, args...))
	}
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.remaining() < n {
		r.fail("need %d bytes, have %d", n, r.remaining())
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) boolean() bool {
	switch v := r.u8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail("invalid bool %d", v)
		return false
	}
}

func (r *reader) option() bool {
	switch v := r.u8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail("invalid option tag %d", v)
		return false
	}
}

func (r *reader) pubkey() string {
	b := r.take(solana.PubkeyLength)
	if b == nil {
		return ""
	}
	return solana.EncodePubkey(b)
}

func (r *reader) str() string {
	n := r.u32()
	if r.err == nil && int(n) > r.remaining() {
		r.fail("string length %d exceeds data", n)
	}
	b := r.take(int(n))
	return strings.TrimRight(string(b), "\x00")
}
