package p2p

// CommandID is the first element of every wire packet: a small integer
// identifying which payload follows, numbered in rough age-of-the-protocol
// order the way the original devp2p "eth" subprotocol assigns message
// codes.
type CommandID uint64

const (
	CmdHello CommandID = iota
	CmdDisconnect
	CmdPing
	CmdPong
	CmdGetPeers
	CmdPeers
	CmdStatus
	CmdTransactions
	CmdGetTransactions
	CmdBlocks
	CmdGetBlocks
	CmdBlockHashes
	CmdGetBlockHashes
)

func (c CommandID) String() string {
	switch c {
	case CmdHello:
		return "Hello"
	case CmdDisconnect:
		return "Disconnect"
	case CmdPing:
		return "Ping"
	case CmdPong:
		return "Pong"
	case CmdGetPeers:
		return "GetPeers"
	case CmdPeers:
		return "Peers"
	case CmdStatus:
		return "Status"
	case CmdTransactions:
		return "Transactions"
	case CmdGetTransactions:
		return "GetTransactions"
	case CmdBlocks:
		return "Blocks"
	case CmdGetBlocks:
		return "GetBlocks"
	case CmdBlockHashes:
		return "BlockHashes"
	case CmdGetBlockHashes:
		return "GetBlockHashes"
	default:
		return "Unknown"
	}
}
