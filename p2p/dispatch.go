package p2p

// dispatch applies the transition rules of §4.7 to one decoded packet and
// publishes the matching C8 event. Run has already split the envelope and
// handled framing failures; dispatch receives the raw payload bytes, and
// each on* handler decodes its own payload and sends a Disconnect with
// ReasonBadProtocol when that decode fails.
func (p *Peer) dispatch(cmd CommandID, raw []byte) {
	switch cmd {
	case CmdHello:
		p.onHello(raw)
	case CmdDisconnect:
		p.onDisconnect(raw)
	case CmdPing:
		p.onPing(raw)
	case CmdPong:
		// RTT tracking is left to higher layers; nothing to do here.
	case CmdGetPeers:
		p.onGetPeers(raw)
	case CmdPeers:
		p.onPeers(raw)
	case CmdStatus:
		p.onStatus(raw)
	case CmdTransactions:
		p.onTransactions(raw)
	case CmdGetTransactions:
		p.onGetTransactions(raw)
	case CmdBlocks:
		p.onBlocks(raw)
	case CmdGetBlocks:
		p.onGetBlocks(raw)
	case CmdBlockHashes:
		p.onBlockHashes(raw)
	case CmdGetBlockHashes:
		p.onGetBlockHashes(raw)
	default:
		p.log.WithField("command", cmd).Warn("p2p: unknown command, ignoring")
	}
}

func (p *Peer) onHello(raw []byte) {
	var h HelloPayload
	if err := decodePayload(raw, &h); err != nil {
		_ = p.sendDisconnect(ReasonBadProtocol)
		return
	}
	if h.ProtocolVersion != p.cfg.ProtocolVersion {
		_ = p.sendDisconnect(ReasonIncompatibleProtocol)
		return
	}

	p.mu.Lock()
	p.remoteProtocolVersion = h.ProtocolVersion
	p.remoteClientVersion = h.ClientVersion
	p.remoteCapabilities = h.Capabilities
	p.remoteNodeID = h.NodeID
	p.remoteListenPort = h.ListenPort
	if p.state == StateNew || p.state == StateHelloSent {
		p.state = StateHelloAck
	}
	needHello := !p.helloSent
	p.mu.Unlock()

	if needHello {
		_ = p.SendHello()
	}
	p.bus.Publish(Event{Kind: EventPeerHandshakeSuccess, Peer: p})
}

func (p *Peer) onStatus(raw []byte) {
	var s StatusPayload
	if err := decodePayload(raw, &s); err != nil {
		_ = p.sendDisconnect(ReasonBadProtocol)
		return
	}
	if !p.hasRemoteCapability(RequiredCapability) {
		_ = p.sendDisconnect(ReasonIncompatibleProtocol)
		return
	}
	if s.EthVersion != p.cfg.EthVersion || s.NetworkID != p.cfg.NetworkID {
		_ = p.sendDisconnect(ReasonIncompatibleProtocol)
		return
	}
	if s.GenesisHash != p.cfg.GenesisHash {
		_ = p.sendDisconnect(ReasonWrongGenesis)
		return
	}

	p.mu.Lock()
	p.remoteTotalDifficulty = s.TotalDifficulty
	p.remoteHeadHash = s.LatestHash
	if p.state == StateHelloAck {
		p.state = StateReady
	}
	p.mu.Unlock()

	p.bus.Publish(Event{Kind: EventPeerStatusReceived, Peer: p})
}

func (p *Peer) onDisconnect(raw []byte) {
	var d DisconnectPayload
	if err := decodePayload(raw, &d); err != nil {
		d = DisconnectPayload{Reason: ReasonBadProtocol}
	}
	p.mu.Lock()
	p.state = StateClosed
	forget := d.Reason.Forget()
	if forget {
		r := d.Reason
		p.forgetReason = &r
	}
	p.mu.Unlock()
	p.bus.Publish(Event{Kind: EventPeerDisconnectRequested, Peer: p, Forget: &forget})
}

func (p *Peer) onPing(raw []byte) {
	var pp PingPayload
	if err := decodePayload(raw, &pp); err != nil {
		_ = p.sendDisconnect(ReasonBadProtocol)
		return
	}
	_ = p.SendPong()
}

func (p *Peer) onGetPeers(raw []byte) {
	var gp GetPeersPayload
	if err := decodePayload(raw, &gp); err != nil {
		_ = p.sendDisconnect(ReasonBadProtocol)
		return
	}
	p.bus.Publish(Event{Kind: EventGetPeersReceived, Peer: p})
}

func (p *Peer) onPeers(raw []byte) {
	var pl PeersPayload
	if err := decodePayload(raw, &pl); err != nil {
		_ = p.sendDisconnect(ReasonBadProtocol)
		return
	}
	p.bus.Publish(Event{Kind: EventPeerAddressesReceived, Peer: p, Addresses: pl.Peers})
}

func (p *Peer) onGetTransactions(raw []byte) {
	var gt GetTransactionsPayload
	if err := decodePayload(raw, &gt); err != nil {
		_ = p.sendDisconnect(ReasonBadProtocol)
		return
	}
	p.bus.Publish(Event{Kind: EventGetTransactionsReceived, Peer: p})
}

func (p *Peer) onTransactions(raw []byte) {
	var tl TransactionsPayload
	if err := decodePayload(raw, &tl); err != nil {
		_ = p.sendDisconnect(ReasonBadProtocol)
		return
	}
	p.bus.Publish(Event{Kind: EventRemoteTransactionsReceived, Peer: p, Transactions: tl.Transactions})
}

func (p *Peer) onGetBlocks(raw []byte) {
	var gb GetBlocksPayload
	if err := decodePayload(raw, &gb); err != nil {
		_ = p.sendDisconnect(ReasonBadProtocol)
		return
	}
	p.bus.Publish(Event{Kind: EventGetBlocksReceived, Peer: p, BlockHashes: gb.Hashes})
}

func (p *Peer) onBlocks(raw []byte) {
	var bl BlocksPayload
	if err := decodePayload(raw, &bl); err != nil {
		_ = p.sendDisconnect(ReasonBadProtocol)
		return
	}
	if len(bl.Blocks) > MaxBlocksAccepted {
		p.log.WithField("count", len(bl.Blocks)).Warn("p2p: blocks exceeds MaxBlocksAccepted")
	}
	p.bus.Publish(Event{Kind: EventRemoteBlocksReceived, Peer: p, Blocks: bl.Blocks})
}

func (p *Peer) onBlockHashes(raw []byte) {
	var bh BlockHashesPayload
	if err := decodePayload(raw, &bh); err != nil {
		_ = p.sendDisconnect(ReasonBadProtocol)
		return
	}
	p.bus.Publish(Event{Kind: EventRemoteBlockHashesReceived, Peer: p, BlockHashes: bh.Hashes})
}

func (p *Peer) onGetBlockHashes(raw []byte) {
	var gh GetBlockHashesPayload
	if err := decodePayload(raw, &gh); err != nil {
		_ = p.sendDisconnect(ReasonBadProtocol)
		return
	}
	p.bus.Publish(Event{Kind: EventGetBlockHashesReceived, Peer: p, BlockHash: gh.Hash, Count: gh.Count})
}
