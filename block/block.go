package block

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ledgerforge/node/chain"
	"github.com/ledgerforge/node/common"
	"github.com/ledgerforge/node/state"
)

// Block is a header plus its uncle set and transaction list, together with
// the account cache and transaction-list trie it owns for the duration of
// assembly or replay (§1, §3 "Lifecycles"). A Block becomes sealed once
// Finalize has run; CommitState is then a no-op and account ops refuse to
// mutate it.
type Block struct {
	backend Backend
	header  chain.Header
	uncles  []chain.Header
	txBytes [][]byte

	cache  *state.Cache
	txList *TxList

	sealed         bool
	rewardsApplied bool
}

// Snapshot is the full §4.3 snapshot: the account cache's contribution plus
// the block-level bookkeeping (gas used, transaction-list root and count)
// that rides alongside it.
type Snapshot struct {
	cache    state.Snapshot
	gasUsed  *big.Int
	txRoot   common.Hash
	txCount  uint64
}

// InitFromParent implements §4.5 init_from_parent: a new, empty, mutable
// block extending parent. state_root starts equal to the parent's (the
// state trie is reopened at the parent's root); tx_list_root starts empty;
// difficulty and gas_limit follow the §4.5 recurrences.
func InitFromParent(backend Backend, parent *Block, coinbase common.Address, extraData []byte, timestamp uint64, uncles []chain.Header) (*Block, error) {
	parentHash, err := parent.Hash()
	if err != nil {
		return nil, err
	}
	unclesHash, err := chain.UnclesHash(uncles)
	if err != nil {
		return nil, err
	}

	h := chain.Header{
		PrevHash:    parentHash,
		UnclesHash:  unclesHash,
		Coinbase:    coinbase,
		StateRoot:   parent.header.StateRoot,
		Difficulty:  chain.NextDifficulty(parent.header.Difficulty, parent.header.Timestamp, timestamp),
		Number:      new(big.Int).Add(parent.header.Number, big.NewInt(1)),
		MinGasPrice: big.NewInt(0),
		GasLimit:    chain.NextGasLimit(parent.header.GasLimit, parent.header.GasUsed),
		GasUsed:     big.NewInt(0),
		Timestamp:   timestamp,
		ExtraData:   extraData,
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}

	b := &Block{
		backend: backend,
		header:  h,
		uncles:  uncles,
		cache:   state.New(backend, h.StateRoot),
		txList:  NewTxList(backend),
	}
	b.header.TxListRoot = b.txList.Root()
	return b, nil
}

// Header returns the block's header with state_root and tx_list_root
// synced to the cache's and transaction list's current roots.
func (b *Block) Header() chain.Header {
	h := b.header
	h.TxListRoot = b.txList.Root()
	h.StateRoot = b.cache.Root()
	return h
}

// Hash is sha3(encode(header)).
func (b *Block) Hash() (common.Hash, error) {
	return b.Header().Hash()
}

// Uncles returns the block's uncle headers.
func (b *Block) Uncles() []chain.Header { return b.uncles }

// SetSealNonce sets the header's proof-of-work nonce, the last field a
// miner fills in before Finalize. It refuses once the block is sealed.
func (b *Block) SetSealNonce(nonce []byte) error {
	if err := b.requireMutable(); err != nil {
		return err
	}
	b.header.Nonce = nonce
	return nil
}

// Sealed reports whether Finalize has run.
func (b *Block) Sealed() bool { return b.sealed }

// --- account operations (§4.5, routed through C3) ---

func (b *Block) requireMutable() error {
	if b.sealed {
		return newBlockErr(chain.KindInvalidBlock, "block: sealed block is immutable")
	}
	return nil
}

func (b *Block) GetAccount(addr common.Address) (chain.Account, error) {
	return b.cache.GetAccount(addr)
}

func (b *Block) GetNonce(addr common.Address) (uint64, error) { return b.cache.GetNonce(addr) }

func (b *Block) SetNonce(addr common.Address, v uint64) error {
	if err := b.requireMutable(); err != nil {
		return err
	}
	return b.cache.SetNonce(addr, v)
}

func (b *Block) GetBalance(addr common.Address) (*big.Int, error) { return b.cache.GetBalance(addr) }

func (b *Block) SetBalance(addr common.Address, v *big.Int) error {
	if err := b.requireMutable(); err != nil {
		return err
	}
	return b.cache.SetBalance(addr, v)
}

// DeltaBalance applies delta to addr's balance, returning false (not an
// error) when a negative delta would underflow, per §7 OverBalance.
func (b *Block) DeltaBalance(addr common.Address, delta *big.Int) (bool, error) {
	if err := b.requireMutable(); err != nil {
		return false, err
	}
	return b.cache.DeltaBalance(addr, delta)
}

func (b *Block) GetCode(addr common.Address) ([]byte, error) { return b.cache.GetCode(addr) }

func (b *Block) SetCode(addr common.Address, code []byte) error {
	if err := b.requireMutable(); err != nil {
		return err
	}
	return b.cache.SetCode(addr, code)
}

func (b *Block) GetStorageData(addr common.Address, idx *big.Int) (*big.Int, error) {
	return b.cache.GetStorageData(addr, idx)
}

func (b *Block) SetStorageData(addr common.Address, idx *big.Int, v *big.Int) error {
	if err := b.requireMutable(); err != nil {
		return err
	}
	return b.cache.SetStorageData(addr, idx, v)
}

// --- snapshot / revert ---

// Snapshot captures the block's full execution state: the cache snapshot
// plus gas used and the transaction list's root and count.
func (b *Block) Snapshot() Snapshot {
	return Snapshot{cache: b.cache.Snapshot(), gasUsed: new(big.Int).Set(b.header.GasUsed), txRoot: b.txList.Root(), txCount: b.txList.Count()}
}

// Revert restores the block to s. Reverting to a snapshot just taken is a
// no-op, per §5 ordering guarantee (4).
func (b *Block) Revert(s Snapshot) {
	b.cache.Revert(s.cache)
	b.header.GasUsed = new(big.Int).Set(s.gasUsed)
	b.txList = ReopenTxList(b.backend, s.txRoot, s.txCount)
	b.txBytes = b.txBytes[:s.txCount]
}

// --- transaction list (C4) ---

// AppendTx records a transaction's bytes, post-state root and cumulative
// gas in the transaction list trie and updates header.gas_used.
func (b *Block) AppendTx(txBytes []byte, postStateRoot common.Hash, cumulativeGasUsed *big.Int) error {
	if err := b.requireMutable(); err != nil {
		return err
	}
	if err := b.txList.Append(txBytes, postStateRoot, cumulativeGasUsed); err != nil {
		return err
	}
	b.txBytes = append(b.txBytes, txBytes)
	b.header.GasUsed = new(big.Int).Set(cumulativeGasUsed)
	return nil
}

// ApplyTransaction runs replayer against this block for a single
// transaction, then records the resulting (tx_bytes, post_state_root,
// cumulative_gas) triple — the out-of-scope apply_transaction contract
// wired through to C4/C5.
func (b *Block) ApplyTransaction(replayer Replayer, txBytes []byte) error {
	cumulativeGas, err := replayer.ApplyTransaction(b, txBytes)
	if err != nil {
		return err
	}
	return b.AppendTx(txBytes, b.cache.Root(), cumulativeGas)
}

// --- finalization (§4.5) ---

// CommitState flushes the account cache into the state trie. Once the
// block is sealed this is a no-op returning the already-committed root,
// satisfying the §8 commit-idempotence property.
func (b *Block) CommitState() (common.Hash, error) {
	if b.sealed {
		return b.header.StateRoot, nil
	}
	root, err := b.cache.Commit()
	if err != nil {
		return common.Hash{}, err
	}
	if err := b.backend.Put(stateRootKey(root), []byte{1}); err != nil {
		return common.Hash{}, err
	}
	b.header.StateRoot = root
	return root, nil
}

// ApplyBlockReward credits the coinbase with BlockReward plus NephewReward
// per uncle, and each uncle's coinbase with UncleReward, then commits the
// account cache so the header's state_root covers the credits. It is
// idempotent: a miner may call it directly to fix the state root before
// searching for a sealing nonce, and Finalize's own call then becomes a
// no-op.
func (b *Block) ApplyBlockReward() error {
	if err := b.requireMutable(); err != nil {
		return err
	}
	if b.rewardsApplied {
		return nil
	}
	reward := new(big.Int).Set(chain.BlockReward)
	if len(b.uncles) > 0 {
		nephew := new(big.Int).Mul(chain.NephewReward, big.NewInt(int64(len(b.uncles))))
		reward.Add(reward, nephew)
	}
	if _, err := b.cache.DeltaBalance(b.header.Coinbase, reward); err != nil {
		return err
	}
	for _, u := range b.uncles {
		if _, err := b.cache.DeltaBalance(u.Coinbase, chain.UncleReward); err != nil {
			return err
		}
	}
	b.rewardsApplied = true
	_, err := b.CommitState()
	return err
}

// Finalize applies the block reward (if ApplyBlockReward hasn't already
// run), commits the account cache, and seals the block. Calling Finalize on
// an already-sealed block is a no-op.
func (b *Block) Finalize() (common.Hash, error) {
	if b.sealed {
		return b.header.StateRoot, nil
	}
	if err := b.ApplyBlockReward(); err != nil {
		return common.Hash{}, err
	}
	b.header.TxListRoot = b.txList.Root()
	root, err := b.CommitState()
	if err != nil {
		return common.Hash{}, err
	}
	b.sealed = true
	return root, nil
}

// --- serialization (§4.5) ---

// envelope is the wire shape serialize = encode([list_header(),
// list_transactions(), uncles]).
type envelope struct {
	Header []byte
	Txs    [][]byte
	Uncles []byte
}

// Serialize renders the block as encode([header, transactions, uncles]).
func (b *Block) Serialize() ([]byte, error) {
	headerBytes, err := chain.EncodeHeader(b.Header())
	if err != nil {
		return nil, err
	}
	unclesBytes, err := chain.EncodeUncles(b.uncles)
	if err != nil {
		return nil, err
	}
	out, err := rlp.EncodeToBytes(&envelope{Header: headerBytes, Txs: b.txBytes, Uncles: unclesBytes})
	if err != nil {
		return nil, newBlockErrWrap(chain.KindFatal, "block: serialize", err)
	}
	return out, nil
}

// Deserialize decodes (header, txs, uncles) from raw. If the header's
// state_root is already present in the backing store, or the header is
// genesis (prevhash is the zero sentinel), the block is constructed
// directly. Otherwise the parent is looked up (UnknownParent if missing)
// and every transaction is replayed against a fresh child block, asserting
// that the recorded intermediate state root and cumulative gas match the
// replay at each index (§4.5, S6).
func Deserialize(backend Backend, raw []byte, replayer Replayer) (*Block, error) {
	var env envelope
	if err := rlp.DecodeBytes(raw, &env); err != nil {
		return nil, newBlockErrWrap(chain.KindInvalidBlock, "block: deserialize envelope", err)
	}
	header, err := chain.DecodeHeader(env.Header)
	if err != nil {
		return nil, err
	}
	uncles, err := chain.DecodeUncles(env.Uncles)
	if err != nil {
		return nil, err
	}
	if err := header.Validate(); err != nil {
		return nil, err
	}
	if header.PrevHash != common.ZeroHash {
		if err := chain.CheckPoW(header); err != nil {
			return nil, err
		}
	}

	if header.PrevHash == common.ZeroHash {
		return directConstruct(backend, header, uncles, env.Txs)
	}
	if has, err := backend.Has(stateRootKey(header.StateRoot)); err == nil && has {
		b, err := directConstruct(backend, header, uncles, env.Txs)
		if err != nil {
			return nil, err
		}
		if err := ValidateUncles(backend, b); err != nil {
			return nil, err
		}
		return b, nil
	}

	parentHeader, ok, err := backend.GetHeader(header.PrevHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newBlockErr(chain.KindUnknownParent, fmt.Sprintf("block: unknown parent %s", header.PrevHash.Hex()))
	}
	parentBlock := &Block{
		backend: backend,
		header:  parentHeader,
		sealed:  true,
		cache:   state.New(backend, parentHeader.StateRoot),
		txList:  ReopenTxList(backend, parentHeader.TxListRoot, 0),
	}

	child, err := InitFromParent(backend, parentBlock, header.Coinbase, header.ExtraData, header.Timestamp, uncles)
	if err != nil {
		return nil, err
	}
	for i, txBytes := range env.Txs {
		wantEntry, ok, err := ReopenTxList(backend, header.TxListRoot, uint64(len(env.Txs))).Get(uint64(i))
		if err != nil || !ok {
			return nil, newBlockErr(chain.KindInvalidBlock, fmt.Sprintf("block: missing recorded entry at index %d", i))
		}
		if err := child.ApplyTransaction(replayer, txBytes); err != nil {
			return nil, err
		}
		gotRoot := child.cache.Root()
		gotGas := child.header.GasUsed
		if gotRoot != wantEntry.PostStateRoot || gotGas.Cmp(wantEntry.CumulativeGasUsed) != 0 {
			return nil, newBlockErr(chain.KindInvalidBlock, fmt.Sprintf("block: replay mismatch at tx index %d", i))
		}
	}
	child.header.Difficulty = header.Difficulty
	child.header.Nonce = header.Nonce
	child.header.GasLimit = header.GasLimit
	child.header.MinGasPrice = header.MinGasPrice
	if err := ValidateUncles(backend, child); err != nil {
		return nil, err
	}
	return child, nil
}

func directConstruct(backend Backend, header chain.Header, uncles []chain.Header, txs [][]byte) (*Block, error) {
	b := &Block{
		backend: backend,
		header:  header,
		uncles:  uncles,
		txBytes: txs,
		cache:   state.New(backend, header.StateRoot),
		txList:  ReopenTxList(backend, header.TxListRoot, uint64(len(txs))),
		sealed:  true,
	}
	return b, nil
}

func decodeEnvelope(raw []byte, env *envelope) error {
	return rlp.DecodeBytes(raw, env)
}

func stateRootKey(root common.Hash) []byte {
	return append([]byte("stateroot-seen:"), root[:]...)
}

func newBlockErr(kind chain.ErrorKind, msg string) error {
	return &chain.Error{Kind: kind, Msg: msg}
}

func newBlockErrWrap(kind chain.ErrorKind, msg string, err error) error {
	return &chain.Error{Kind: kind, Msg: msg, Err: err}
}
