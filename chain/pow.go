package chain

import (
	"math/big"

	"github.com/ledgerforge/node/common"
)

var (
	// powLimit is 2**256, the modulus PoW difficulty divides into.
	powLimit = new(big.Int).Lsh(big.NewInt(1), 256)
)

// CheckPoW verifies §4.5's proof-of-work condition: with Hn the encoding of
// the first 12 header fields and nonce the 13th, h = sha3(sha3(Hn) ∥ nonce)
// read as a big-endian integer must be strictly less than 2**256/difficulty.
// The nonce must be exactly NonceBytes long.
func CheckPoW(h Header) error {
	if len(h.Nonce) != NonceBytes {
		return newErr(KindInvalidBlock, "pow: nonce must be 32 bytes")
	}
	if h.Difficulty == nil || h.Difficulty.Sign() <= 0 {
		return newErr(KindInvalidBlock, "pow: difficulty must be positive")
	}
	sealBytes, err := h.SealBytes()
	if err != nil {
		return err
	}
	mid := common.Keccak256(sealBytes)
	digest := common.Keccak256(mid.Bytes(), h.Nonce)

	target := new(big.Int).Div(powLimit, h.Difficulty)
	v := new(big.Int).SetBytes(digest.Bytes())
	if v.Cmp(target) >= 0 {
		return newErr(KindInvalidBlock, "pow: hash does not satisfy difficulty target")
	}
	return nil
}

// SealHash returns sha3(Hn), the PoW midstate a miner iterates a nonce
// against.
func SealHash(h Header) (common.Hash, error) {
	b, err := h.SealBytes()
	if err != nil {
		return common.Hash{}, err
	}
	return common.Keccak256(b), nil
}
