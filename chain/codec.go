package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ledgerforge/node/common"
)

// MaxExtraDataBytes bounds header.extra_data.
const MaxExtraDataBytes = 1024

// NonceBytes is the required width of a sealed (non-genesis) block nonce.
const NonceBytes = 32

// EncodeInt renders a non-negative integer as the shortest big-endian byte
// string with no leading zero; zero encodes to the empty string.
func EncodeInt(v *big.Int) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if v.Sign() < 0 {
		return nil, newErr(KindFatal, "codec: negative integer has no canonical encoding")
	}
	if v.Sign() == 0 {
		return nil, nil
	}
	return v.Bytes(), nil
}

// DecodeInt is the inverse of EncodeInt.
func DecodeInt(b []byte) *big.Int {
	if len(b) == 0 {
		return new(big.Int)
	}
	return new(big.Int).SetBytes(b)
}

// EncodeUint64 and DecodeUint64 are the uint64-typed convenience wrappers
// used for fields that never need to exceed machine-word range (number,
// gas figures, timestamp).
func EncodeUint64(v uint64) []byte {
	if v == 0 {
		return nil
	}
	b, _ := EncodeInt(new(big.Int).SetUint64(v))
	return b
}

func DecodeUint64(b []byte) (uint64, error) {
	v := DecodeInt(b)
	if !v.IsUint64() {
		return 0, newErr(KindFatal, "codec: integer overflows uint64")
	}
	return v.Uint64(), nil
}

// EncodeBin/DecodeBin pass byte strings through unchanged; the adapter
// exists so callers never construct raw slices for a "bin" field by hand.
func EncodeBin(b []byte) []byte { return b }

func DecodeBin(b []byte) []byte { return b }

// EncodeAddr/DecodeAddr fix the field width at common.AddressLength.
func EncodeAddr(a common.Address) []byte { return a.Bytes() }

func DecodeAddr(b []byte) (common.Address, error) {
	if len(b) != common.AddressLength {
		return common.Address{}, newErr(KindFatal, fmt.Sprintf("codec: address has %d bytes, want %d", len(b), common.AddressLength))
	}
	return common.BytesToAddress(b), nil
}

// EncodeHash/DecodeHash and EncodeTrieRoot/DecodeTrieRoot fix the field
// width at common.HashLength; trie roots are hashes but kept as a distinct
// semantic type per the field table.
func EncodeHash(h common.Hash) []byte { return h.Bytes() }

func DecodeHash(b []byte) (common.Hash, error) {
	if len(b) != common.HashLength {
		return common.Hash{}, newErr(KindFatal, fmt.Sprintf("codec: hash has %d bytes, want %d", len(b), common.HashLength))
	}
	return common.BytesToHash(b), nil
}

func EncodeTrieRoot(h common.Hash) []byte { return EncodeHash(h) }

func DecodeTrieRoot(b []byte) (common.Hash, error) { return DecodeHash(b) }

// PrintInt/PrintBin print the canonical encoding of a field for diagnostics:
// decimal for integers, hex for raw byte strings.
func PrintInt(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func PrintBin(b []byte) string { return "0x" + hex.EncodeToString(b) }
