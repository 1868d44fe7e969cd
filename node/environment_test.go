package node

import (
	"math/big"
	"testing"

	"github.com/ledgerforge/node/chain"
	"github.com/ledgerforge/node/common"
	"github.com/ledgerforge/node/p2p"
)

func testEnvConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.BindAddr = "127.0.0.1:0"
	return cfg
}

func TestNewEnvironmentBootstrapsGenesis(t *testing.T) {
	cfg := testEnvConfig(t)
	alloc := chain.GenesisAlloc{
		common.BytesToAddress([]byte("env-test-alloc")): big.NewInt(42),
	}
	env, err := NewEnvironment(cfg, alloc, p2p.NodeID{})
	if err != nil {
		t.Fatal(err)
	}
	defer env.Close()

	if env.DB.Manifest() == nil {
		t.Fatal("NewEnvironment must bootstrap a genesis manifest")
	}
	if env.Peers.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 before any peer connects", env.Peers.Count())
	}
}

func TestNewEnvironmentRejectsInvalidConfig(t *testing.T) {
	cfg := testEnvConfig(t)
	cfg.BindAddr = "not-an-addr"
	if _, err := NewEnvironment(cfg, chain.DefaultGenesisAlloc(), p2p.NodeID{}); err == nil {
		t.Fatal("expected an error for an invalid bind address")
	}
}

func TestEnvironmentHeadReturnsGenesis(t *testing.T) {
	cfg := testEnvConfig(t)
	alloc := chain.GenesisAlloc{
		common.BytesToAddress([]byte("env-head-alloc")): big.NewInt(7),
	}
	env, err := NewEnvironment(cfg, alloc, p2p.NodeID{})
	if err != nil {
		t.Fatal(err)
	}
	defer env.Close()

	head, err := env.Head(zeroGasReplayer{})
	if err != nil {
		t.Fatal(err)
	}
	if head.Header().Number.Sign() != 0 {
		t.Fatalf("genesis head number = %s, want 0", head.Header().Number)
	}
}

func TestEnvironmentReopenIsIdempotent(t *testing.T) {
	cfg := testEnvConfig(t)
	alloc := chain.GenesisAlloc{
		common.BytesToAddress([]byte("env-reopen-alloc")): big.NewInt(1),
	}
	env, err := NewEnvironment(cfg, alloc, p2p.NodeID{})
	if err != nil {
		t.Fatal(err)
	}
	hash1 := env.DB.Manifest().TipHashHex
	if err := env.Close(); err != nil {
		t.Fatal(err)
	}

	env2, err := NewEnvironment(cfg, alloc, p2p.NodeID{})
	if err != nil {
		t.Fatal(err)
	}
	defer env2.Close()
	if env2.DB.Manifest().TipHashHex != hash1 {
		t.Fatal("reopening the same data dir with the same alloc must yield the same genesis hash")
	}
}
