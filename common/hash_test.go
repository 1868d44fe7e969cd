package common

import "testing"

func TestHashFromHexRoundTrip(t *testing.T) {
	h := Keccak256([]byte("roundtrip me"))
	got, err := HashFromHex(h.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Fatalf("roundtrip mismatch: got %s want %s", got.Hex(), h.Hex())
	}
}

func TestHashFromHexAcceptsBareHex(t *testing.T) {
	h := Keccak256([]byte("bare hex"))
	bare := h.Hex()[2:]
	got, err := HashFromHex(bare)
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Fatalf("bare-hex roundtrip mismatch: got %s want %s", got.Hex(), h.Hex())
	}
}

func TestHashFromHexRejectsWrongWidth(t *testing.T) {
	if _, err := HashFromHex("0xabcd"); err == nil {
		t.Fatal("expected error for short hash string")
	}
}

func TestAddressFromHexRoundTrip(t *testing.T) {
	a := BytesToAddress([]byte("an address value"))
	got, err := AddressFromHex(a.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if got != a {
		t.Fatalf("roundtrip mismatch: got %s want %s", got.Hex(), a.Hex())
	}
}

func TestAddressFromHexRejectsWrongWidth(t *testing.T) {
	if _, err := AddressFromHex("0x1234"); err == nil {
		t.Fatal("expected error for short address string")
	}
}

func TestKeccak256Deterministic(t *testing.T) {
	a := Keccak256([]byte("same input"))
	b := Keccak256([]byte("same input"))
	if a != b {
		t.Fatal("Keccak256 must be deterministic")
	}
}

func TestKeccak256VariadicMatchesConcatenation(t *testing.T) {
	a := Keccak256([]byte("foo"), []byte("bar"))
	b := Keccak256([]byte("foobar"))
	if a != b {
		t.Fatal("Keccak256(a, b) must equal Keccak256(concat(a, b))")
	}
}

func TestKeccak256EmptyInput(t *testing.T) {
	a := Keccak256(nil)
	b := Keccak256([]byte{})
	if a != b {
		t.Fatal("Keccak256 of nil and empty slice must match")
	}
}

func TestBytesToHashPadsShortInput(t *testing.T) {
	h := BytesToHash([]byte{1, 2, 3})
	if h[HashLength-1] != 3 || h[HashLength-2] != 2 || h[HashLength-3] != 1 {
		t.Fatalf("BytesToHash did not right-align short input: %x", h)
	}
	for i := 0; i < HashLength-3; i++ {
		if h[i] != 0 {
			t.Fatalf("BytesToHash left padding not zero at %d: %x", i, h)
		}
	}
}

func TestZeroValuesAreZero(t *testing.T) {
	if !ZeroHash.IsZero() {
		t.Fatal("ZeroHash.IsZero() must be true")
	}
	if !ZeroAddress.IsZero() {
		t.Fatal("ZeroAddress.IsZero() must be true")
	}
}
