// Command chaind runs a ledgerforge node: genesis bootstrap, listening
// socket, outbound seed dials, and (optionally) local block mining.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerforge/node/block"
	"github.com/ledgerforge/node/chain"
	"github.com/ledgerforge/node/common"
	"github.com/ledgerforge/node/node"
	"github.com/ledgerforge/node/p2p"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaults := node.DefaultConfig()
	cfg := defaults
	var peerFlags []string
	var mineBlocks int

	root := &cobra.Command{
		Use:   "chaind",
		Short: "ledgerforge block-and-state-engine node daemon",
	}

	root.PersistentFlags().StringVar(&cfg.Network, "network", defaults.Network, "network name (devnet/testnet/mainnet)")
	root.PersistentFlags().StringVar(&cfg.ChainIDHex, "chain-id", defaults.ChainIDHex, "chain id, hex-encoded")
	root.PersistentFlags().StringVar(&cfg.DataDir, "datadir", defaults.DataDir, "node data directory")
	root.PersistentFlags().StringVar(&cfg.BindAddr, "bind", defaults.BindAddr, "bind address host:port")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	root.PersistentFlags().IntVar(&cfg.MaxPeers, "max-peers", defaults.MaxPeers, "max connected peers")
	root.PersistentFlags().StringArrayVar(&peerFlags, "peer", nil, "bootstrap peer host:port (repeatable)")

	root.AddCommand(newGenesisCmd(&cfg))
	root.AddCommand(newStartCmd(&cfg, &peerFlags, &mineBlocks))

	return root
}

func newGenesisCmd(cfg *node.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "genesis",
		Short: "bootstrap the chain directory and print the genesis block hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Peers = node.NormalizePeers()
			if err := node.ValidateConfig(*cfg); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			env, err := node.NewEnvironment(*cfg, chain.DefaultGenesisAlloc(), devNodeID())
			if err != nil {
				return err
			}
			defer env.Close()
			m := env.DB.Manifest()
			fmt.Fprintf(cmd.OutOrStdout(), "genesis hash: %s\nheight: %d\n", m.TipHashHex, m.TipHeight)
			return nil
		},
	}
}

func newStartCmd(cfg *node.Config, peerFlags *[]string, mineBlocks *int) *cobra.Command {
	start := &cobra.Command{
		Use:   "start",
		Short: "start the node: listen, dial seeds, optionally mine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Peers = node.NormalizePeers(*peerFlags...)
			if err := node.ValidateConfig(*cfg); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			env, err := node.NewEnvironment(*cfg, chain.DefaultGenesisAlloc(), devNodeID())
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.Listen(); err != nil {
				return err
			}
			env.DialSeeds()

			live := p2p.NewLivenessChecker(env.Peers, 15*time.Second, 90*time.Second)
			stopLiveness := make(chan struct{})
			go live.Run(stopLiveness)
			defer close(stopLiveness)

			env.Log.WithField("bind", cfg.BindAddr).Info("chaind: listening")

			if *mineBlocks > 0 {
				if err := mineDev(env, *mineBlocks); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			env.Log.Info("chaind: shutting down")
			return nil
		},
	}
	start.Flags().IntVar(mineBlocks, "mine-blocks", 0, "mine N blocks locally after startup (devnet only)")
	return start
}

// mineDev drives node.Miner against a noop replayer — chaind carries no
// transaction execution engine (§1 Non-goals), so devnet mining only ever
// seals empty blocks.
func mineDev(env *node.Environment, count int) error {
	replayer := noopReplayer{}
	parent, err := env.Head(replayer)
	if err != nil {
		return err
	}
	coinbase := common.Address{0xde, 0xad}
	miner, err := node.NewMiner(env.DB, replayer, node.DefaultMinerConfig(coinbase))
	if err != nil {
		return err
	}
	mined, err := miner.MineN(context.Background(), parent, count, nil, nil)
	if err != nil {
		return err
	}
	for _, mb := range mined {
		env.Log.WithField("height", mb.Height).WithField("hash", mb.Hash.Hex()).Info("chaind: mined block")
	}
	return nil
}

type noopReplayer struct{}

func (noopReplayer) ApplyTransaction(*block.Block, []byte) (*big.Int, error) {
	return nil, fmt.Errorf("chaind: devnet miner carries no transactions to replay")
}

func devNodeID() p2p.NodeID {
	var id p2p.NodeID
	copy(id[:], []byte("chaind-dev-node-id"))
	return id
}
