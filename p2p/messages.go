package p2p

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/ledgerforge/node/common"
)

const (
	// MaxCapabilityBytes is the size limit for a single advertised
	// capability string; decoding a Hello does not check it.
	MaxCapabilityBytes = 64
	// MaxNodeIDBytes is the fixed length of a node identifier.
	MaxNodeIDBytes = 64
	// MaxClientVersionBytes is the size limit for the free-form client
	// version string; decoding a Hello does not check it.
	MaxClientVersionBytes = 256
)

// NodeID is a fixed-width peer identifier, carried raw on the wire.
type NodeID [MaxNodeIDBytes]byte

type HelloPayload struct {
	ProtocolVersion uint64
	ClientVersion   string
	Capabilities    []string
	ListenPort      uint64
	NodeID          NodeID
}

type DisconnectPayload struct {
	Reason DisconnectReason
}

type PingPayload struct{}
type PongPayload struct{}
type GetPeersPayload struct{}
type GetTransactionsPayload struct{}

type PeerAddr struct {
	IP     [4]byte
	Port   uint64
	NodeID NodeID
}

type PeersPayload struct {
	Peers []PeerAddr
}

type StatusPayload struct {
	EthVersion      uint64
	NetworkID       uint64
	TotalDifficulty *big.Int
	LatestHash      common.Hash
	GenesisHash     common.Hash
}

type TransactionsPayload struct {
	Transactions [][]byte
}

type BlocksPayload struct {
	Blocks [][]byte
}

type GetBlocksPayload struct {
	Hashes []common.Hash
}

type BlockHashesPayload struct {
	Hashes []common.Hash
}

type GetBlockHashesPayload struct {
	Hash  common.Hash
	Count uint64
}

// encodePayload RLP-encodes any payload struct as the inner list that rides
// inside the command envelope.
func encodePayload(v interface{}) ([]byte, error) {
	return rlp.EncodeToBytes(v)
}

func decodePayload(raw []byte, v interface{}) error {
	if err := rlp.DecodeBytes(raw, v); err != nil {
		return fmt.Errorf("p2p: decode payload: %w", err)
	}
	return nil
}
