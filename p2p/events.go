package p2p

import (
	"sync"

	"github.com/ledgerforge/node/common"
)

// EventKind names one of the fixed set of signals a peer session emits.
// Higher layers subscribe to a Bus and drive chain logic off these; the
// peer itself never calls back into chain logic directly.
type EventKind string

const (
	EventPeerHandshakeSuccess       EventKind = "peer_handshake_success"
	EventPeerStatusReceived         EventKind = "peer_status_received"
	EventPeerDisconnectRequested    EventKind = "peer_disconnect_requested"
	EventGetPeersReceived           EventKind = "getpeers_received"
	EventPeerAddressesReceived      EventKind = "peer_addresses_received"
	EventGetTransactionsReceived    EventKind = "gettransactions_received"
	EventRemoteTransactionsReceived EventKind = "remote_transactions_received"
	EventGetBlocksReceived          EventKind = "get_blocks_received"
	EventRemoteBlocksReceived       EventKind = "remote_blocks_received"
	EventGetBlockHashesReceived     EventKind = "get_block_hashes_received"
	EventRemoteBlockHashesReceived  EventKind = "remote_block_hashes_received"
)

// Event is the single envelope type carried over a Bus. Only the fields
// relevant to Kind are populated; the rest are zero.
type Event struct {
	Kind         EventKind
	Peer         *Peer
	Forget       *bool
	Addresses    []PeerAddr
	Transactions [][]byte
	BlockHashes  []common.Hash
	BlockHash    common.Hash
	Count        uint64
	Blocks       [][]byte
}

// Bus is a minimal typed publish point: Publish fans an event out to every
// current subscriber, synchronously and in call order, so a single peer's
// events are always observed by every subscriber in the order the peer
// loop produced them.
type Bus struct {
	mu   sync.Mutex
	subs []chan Event
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new listener and returns its channel, buffered to
// hold buffer events. Publish blocks while this channel is full, so a
// subscriber that stops draining stalls every Publish.
func (b *Bus) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers e to every current subscriber in registration order.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	subs := make([]chan Event, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, ch := range subs {
		ch <- e
	}
}
