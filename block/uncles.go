package block

import (
	"fmt"

	"github.com/ledgerforge/node/chain"
	"github.com/ledgerforge/node/common"
)

// maxUncleAncestors is the §4.5 ancestor walk depth: [b, parent, ..., 7
// blocks back] is 8 entries, so that ancestors[2:] spans 2-7 blocks back,
// the range uncles' parents must fall within.
const maxUncleAncestors = 8

// ValidateUncles implements §4.5 uncle validation for block b, whose
// parent chain is reachable through backend.
func ValidateUncles(backend Backend, b *Block) error {
	wantHash, err := chain.UnclesHash(b.uncles)
	if err != nil {
		return err
	}
	if wantHash != b.header.UnclesHash {
		return newBlockErr(chain.KindInvalidBlock, "uncles: uncles_hash mismatch")
	}
	if len(b.uncles) == 0 {
		return nil
	}

	ancestors, err := collectAncestors(backend, b.header, maxUncleAncestors)
	if err != nil {
		return err
	}

	ineligible := make(map[common.Hash]struct{})
	for i, a := range ancestors {
		h, err := a.Hash()
		if err != nil {
			return err
		}
		ineligible[h] = struct{}{}
		if i >= 1 {
			for _, u := range ancestorUncles(backend, a) {
				uh, err := u.Hash()
				if err != nil {
					return err
				}
				ineligible[uh] = struct{}{}
			}
		}
	}

	eligibleParents := make(map[common.Hash]struct{})
	for i := 2; i < len(ancestors); i++ {
		h, err := ancestors[i].Hash()
		if err != nil {
			return err
		}
		eligibleParents[h] = struct{}{}
	}

	for idx, u := range b.uncles {
		if err := chain.CheckPoW(u); err != nil {
			return wrapBlockErr(chain.KindInvalidBlock, fmt.Sprintf("uncles[%d]: pow invalid", idx), err)
		}
		if _, ok := eligibleParents[u.PrevHash]; !ok {
			return newBlockErr(chain.KindInvalidBlock, fmt.Sprintf("uncles[%d]: prevhash not an eligible ancestor parent", idx))
		}
		uh, err := u.Hash()
		if err != nil {
			return err
		}
		if _, ok := ineligible[uh]; ok {
			return newBlockErr(chain.KindInvalidBlock, fmt.Sprintf("uncles[%d]: ineligible (duplicate or already-included)", idx))
		}
		ineligible[uh] = struct{}{}
	}
	return nil
}

// collectAncestors returns [header(b), parent(b), ...] up to max entries,
// stopping at genesis.
func collectAncestors(backend Backend, h chain.Header, max int) ([]chain.Header, error) {
	out := make([]chain.Header, 0, max)
	cur := h
	for len(out) < max {
		out = append(out, cur)
		if cur.PrevHash == common.ZeroHash {
			break
		}
		parent, ok, err := backend.GetHeader(cur.PrevHash)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		cur = parent
	}
	return out, nil
}

// ancestorUncles returns the uncle headers an ancestor included, decoded
// from its stored block bytes; a missing or undecodable body yields none.
func ancestorUncles(backend Backend, h chain.Header) []chain.Header {
	hash, err := h.Hash()
	if err != nil {
		return nil
	}
	raw, ok, err := backend.GetBlockBytes(hash)
	if err != nil || !ok {
		return nil
	}
	var env envelope
	if err := decodeEnvelope(raw, &env); err != nil {
		return nil
	}
	uncles, err := chain.DecodeUncles(env.Uncles)
	if err != nil {
		return nil
	}
	return uncles
}

func wrapBlockErr(kind chain.ErrorKind, msg string, err error) error {
	return &chain.Error{Kind: kind, Msg: msg, Err: err}
}
