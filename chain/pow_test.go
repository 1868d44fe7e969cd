package chain

import (
	"math/big"
	"testing"
)

func testableHeader() Header {
	h := DefaultHeader()
	h.Difficulty = big.NewInt(1)
	h.Nonce = make([]byte, NonceBytes)
	return h
}

func TestCheckPoWAcceptsDifficultyOne(t *testing.T) {
	// difficulty 1 means target = 2**256, which every 32-byte digest
	// satisfies, so this is deterministic without a real nonce search.
	h := testableHeader()
	if err := CheckPoW(h); err != nil {
		t.Fatalf("CheckPoW with difficulty 1 should always pass: %v", err)
	}
}

func TestCheckPoWRejectsShortNonce(t *testing.T) {
	h := testableHeader()
	h.Nonce = []byte{1, 2, 3}
	if err := CheckPoW(h); err == nil {
		t.Fatal("expected error for undersized nonce")
	}
}

func TestCheckPoWRejectsNonPositiveDifficulty(t *testing.T) {
	h := testableHeader()
	h.Difficulty = big.NewInt(0)
	if err := CheckPoW(h); err == nil {
		t.Fatal("expected error for zero difficulty")
	}
}

func TestCheckPoWRejectsUnsatisfiedTarget(t *testing.T) {
	h := testableHeader()
	h.Difficulty = new(big.Int).Lsh(big.NewInt(1), 255) // target ~= 2**1, almost never satisfied
	if err := CheckPoW(h); err == nil {
		t.Fatal("expected a near-impossible target to reject a fixed all-zero nonce")
	}
}

func TestSealHashExcludesNonce(t *testing.T) {
	h := testableHeader()
	before, err := SealHash(h)
	if err != nil {
		t.Fatal(err)
	}
	h.Nonce = make([]byte, NonceBytes)
	h.Nonce[0] = 0xff
	after, err := SealHash(h)
	if err != nil {
		t.Fatal(err)
	}
	if before != after {
		t.Fatal("SealHash must not depend on the nonce field")
	}
}
