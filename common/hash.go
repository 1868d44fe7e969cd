// Package common holds the address/hash primitives shared by every other
// package in the tree: chain, trie, state, store and p2p all sit on top of
// these two fixed-width types instead of passing raw []byte around.
package common

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// HashLength is the width in bytes of a Keccak-256 digest.
const HashLength = 32

// AddressLength is the width in bytes of an account address.
const AddressLength = 20

// Hash is a 32-byte Keccak-256 digest: a block hash, state root, tx-list
// root, storage root or code hash.
type Hash [HashLength]byte

// ZeroHash is the all-zero sentinel used for the genesis parent hash.
var ZeroHash = Hash{}

// BytesToHash left-pads or truncates b to HashLength bytes.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

func (h Hash) IsZero() bool { return h == ZeroHash }

// HashFromHex parses a 0x-prefixed or bare hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	b, err := decodeHexString(s)
	if err != nil {
		return Hash{}, err
	}
	if len(b) != HashLength {
		return Hash{}, fmt.Errorf("common: hash %q has %d bytes, want %d", s, len(b), HashLength)
	}
	return BytesToHash(b), nil
}

// Address is a 20-byte account identifier.
type Address [AddressLength]byte

var ZeroAddress = Address{}

func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

func (a Address) Bytes() []byte { return a[:] }

func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

func (a Address) IsZero() bool { return a == ZeroAddress }

func AddressFromHex(s string) (Address, error) {
	b, err := decodeHexString(s)
	if err != nil {
		return Address{}, err
	}
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("common: address %q has %d bytes, want %d", s, len(b), AddressLength)
	}
	return BytesToAddress(b), nil
}

func decodeHexString(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return hex.DecodeString(s)
}

// Keccak256 is the spec's sha3(...): SHA3-256 over the concatenation of
// data, matching the teacher's sha3_256 helper.
func Keccak256(data ...[]byte) Hash {
	if len(data) == 1 {
		return Hash(sha3.Sum256(data[0]))
	}
	var buf []byte
	for _, b := range data {
		buf = append(buf, b...)
	}
	return Hash(sha3.Sum256(buf))
}

// Keccak256Bytes is Keccak256 returning a plain slice, for callers that
// build up further hash input from the result.
func Keccak256Bytes(data ...[]byte) []byte {
	h := Keccak256(data...)
	return h[:]
}
