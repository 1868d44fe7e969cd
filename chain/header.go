package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ledgerforge/node/common"
	"github.com/ledgerforge/node/trie"
)

// DefaultDifficulty, DefaultGasLimit and MinGasLimit are the consensus
// constants the header recurrences and genesis construction rely on.
const (
	DefaultDifficulty = 1 << 17 // 131072
	DefaultGasLimit   = 1_000_000
	MinGasLimit       = 125_000
)

// Header holds the 13 consensus fields in their canonical order. The order
// is load-bearing: Hash and SealHash both encode the fields positionally,
// never by name.
type Header struct {
	PrevHash    common.Hash
	UnclesHash  common.Hash
	Coinbase    common.Address
	StateRoot   common.Hash
	TxListRoot  common.Hash
	Difficulty  *big.Int
	Number      *big.Int
	MinGasPrice *big.Int
	GasLimit    *big.Int
	GasUsed     *big.Int
	Timestamp   uint64
	ExtraData   []byte
	Nonce       []byte
}

// headerRLP is the wire shape of Header: big.Int fields travel as RLP
// integers (shortest-big-endian, matching EncodeInt/DecodeInt) and the
// fixed-width fields travel as fixed-width strings.
type headerRLP struct {
	PrevHash    common.Hash
	UnclesHash  common.Hash
	Coinbase    common.Address
	StateRoot   common.Hash
	TxListRoot  common.Hash
	Difficulty  *big.Int
	Number      *big.Int
	MinGasPrice *big.Int
	GasLimit    *big.Int
	GasUsed     *big.Int
	Timestamp   uint64
	ExtraData   []byte
	Nonce       []byte
}

// EmptyUnclesHash is hash(encode(uncles)) for an empty uncle list, the
// default value of header field 1.
var EmptyUnclesHash = common.Keccak256(mustEncodeUncles(nil))

// DefaultHeader returns a header populated with every field's table
// default: the shape of a block header before init_from_parent or genesis
// construction fills in anything real.
func DefaultHeader() Header {
	return Header{
		PrevHash:    common.ZeroHash,
		UnclesHash:  EmptyUnclesHash,
		Coinbase:    common.ZeroAddress,
		StateRoot:   trie.EmptyRoot,
		TxListRoot:  trie.EmptyRoot,
		Difficulty:  big.NewInt(DefaultDifficulty),
		Number:      big.NewInt(0),
		MinGasPrice: big.NewInt(0),
		GasLimit:    big.NewInt(DefaultGasLimit),
		GasUsed:     big.NewInt(0),
		Timestamp:   0,
		ExtraData:   nil,
		Nonce:       nil,
	}
}

func (h Header) toRLP() *headerRLP {
	return &headerRLP{
		PrevHash:    h.PrevHash,
		UnclesHash:  h.UnclesHash,
		Coinbase:    h.Coinbase,
		StateRoot:   h.StateRoot,
		TxListRoot:  h.TxListRoot,
		Difficulty:  nonNilBig(h.Difficulty),
		Number:      nonNilBig(h.Number),
		MinGasPrice: nonNilBig(h.MinGasPrice),
		GasLimit:    nonNilBig(h.GasLimit),
		GasUsed:     nonNilBig(h.GasUsed),
		Timestamp:   h.Timestamp,
		ExtraData:   h.ExtraData,
		Nonce:       h.Nonce,
	}
}

func nonNilBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// Validate checks the header-level invariants that do not require chain
// context: extra_data length and a non-empty coinbase.
func (h Header) Validate() error {
	if len(h.ExtraData) > MaxExtraDataBytes {
		return newErr(KindInvalidBlock, "header: extra_data exceeds 1024 bytes")
	}
	if h.Coinbase.IsZero() {
		return newErr(KindInvalidBlock, "header: coinbase must not be empty")
	}
	return nil
}

// EncodeHeader renders the full 13-field header, including nonce, in
// canonical field order.
func EncodeHeader(h Header) ([]byte, error) {
	b, err := rlp.EncodeToBytes(h.toRLP())
	if err != nil {
		return nil, wrapErr(KindFatal, "header: encode", err)
	}
	return b, nil
}

// DecodeHeader is the inverse of EncodeHeader.
func DecodeHeader(b []byte) (Header, error) {
	var r headerRLP
	if err := rlp.DecodeBytes(b, &r); err != nil {
		return Header{}, wrapErr(KindFatal, "header: decode", err)
	}
	return Header{
		PrevHash:    r.PrevHash,
		UnclesHash:  r.UnclesHash,
		Coinbase:    r.Coinbase,
		StateRoot:   r.StateRoot,
		TxListRoot:  r.TxListRoot,
		Difficulty:  r.Difficulty,
		Number:      r.Number,
		MinGasPrice: r.MinGasPrice,
		GasLimit:    r.GasLimit,
		GasUsed:     r.GasUsed,
		Timestamp:   r.Timestamp,
		ExtraData:   r.ExtraData,
		Nonce:       r.Nonce,
	}, nil
}

// sealHeaderRLP is the first 12 fields only — everything but nonce — used
// as the PoW midstate input Hn.
type sealHeaderRLP struct {
	PrevHash    common.Hash
	UnclesHash  common.Hash
	Coinbase    common.Address
	StateRoot   common.Hash
	TxListRoot  common.Hash
	Difficulty  *big.Int
	Number      *big.Int
	MinGasPrice *big.Int
	GasLimit    *big.Int
	GasUsed     *big.Int
	Timestamp   uint64
	ExtraData   []byte
}

// SealBytes encodes fields 0-11 (everything but nonce): the PoW midstate
// input Hn of §4.5.
func (h Header) SealBytes() ([]byte, error) {
	r := h.toRLP()
	b, err := rlp.EncodeToBytes(&sealHeaderRLP{
		PrevHash:    r.PrevHash,
		UnclesHash:  r.UnclesHash,
		Coinbase:    r.Coinbase,
		StateRoot:   r.StateRoot,
		TxListRoot:  r.TxListRoot,
		Difficulty:  r.Difficulty,
		Number:      r.Number,
		MinGasPrice: r.MinGasPrice,
		GasLimit:    r.GasLimit,
		GasUsed:     r.GasUsed,
		Timestamp:   r.Timestamp,
		ExtraData:   r.ExtraData,
	})
	if err != nil {
		return nil, wrapErr(KindFatal, "header: seal encode", err)
	}
	return b, nil
}

// Hash is sha3(encode(header)): the block hash, computed over all 13
// fields including nonce.
func (h Header) Hash() (common.Hash, error) {
	b, err := EncodeHeader(h)
	if err != nil {
		return common.Hash{}, err
	}
	return common.Keccak256(b), nil
}

func mustEncodeUncles(uncles []Header) []byte {
	b, err := EncodeUncles(uncles)
	if err != nil {
		panic(err)
	}
	return b
}

// EncodeUncles renders an uncle list canonically; used both to compute
// uncles_hash and to serialize a block's uncle section.
func EncodeUncles(uncles []Header) ([]byte, error) {
	rs := make([]*headerRLP, len(uncles))
	for i, u := range uncles {
		rs[i] = u.toRLP()
	}
	b, err := rlp.EncodeToBytes(rs)
	if err != nil {
		return nil, wrapErr(KindFatal, "uncles: encode", err)
	}
	return b, nil
}

// DecodeUncles is the inverse of EncodeUncles.
func DecodeUncles(b []byte) ([]Header, error) {
	var rs []*headerRLP
	if err := rlp.DecodeBytes(b, &rs); err != nil {
		return nil, wrapErr(KindFatal, "uncles: decode", err)
	}
	out := make([]Header, len(rs))
	for i, r := range rs {
		out[i] = Header{
			PrevHash:    r.PrevHash,
			UnclesHash:  r.UnclesHash,
			Coinbase:    r.Coinbase,
			StateRoot:   r.StateRoot,
			TxListRoot:  r.TxListRoot,
			Difficulty:  r.Difficulty,
			Number:      r.Number,
			MinGasPrice: r.MinGasPrice,
			GasLimit:    r.GasLimit,
			GasUsed:     r.GasUsed,
			Timestamp:   r.Timestamp,
			ExtraData:   r.ExtraData,
			Nonce:       r.Nonce,
		}
	}
	return out, nil
}

// UnclesHash computes hash(encode(uncles)) for the given uncle set.
func UnclesHash(uncles []Header) (common.Hash, error) {
	b, err := EncodeUncles(uncles)
	if err != nil {
		return common.Hash{}, err
	}
	return common.Keccak256(b), nil
}
