package p2p

// RequiredCapability is the capability string a peer's Hello must list for
// its Status exchange to be accepted — the "strict" option §14 picks for
// the source's has_ethereum_capabilities-style gate.
const RequiredCapability = "chain/1"

// Per-peer flow limits. Outbound lists are truncated to them before they are
// sent; on receipt, a Blocks packet over MaxBlocksAccepted is logged as a
// warning and still delivered, and inbound hash lists are not checked.
const (
	MaxGetChainAcceptHashes = 2048
	MaxGetChainSendHashes   = 2048
	MaxGetChainAskBlocks    = 512
	MaxGetChainRequestBlocks = 512
	MaxBlocksSend           = 512
	MaxBlocksAccepted       = 512
)

// Clamp truncates a slice to at most max elements, for bounding outbound
// Peers/GetBlocks/BlockHashes lists before they are sent.
func Clamp[T any](items []T, max int) []T {
	if len(items) > max {
		return items[:max]
	}
	return items
}
