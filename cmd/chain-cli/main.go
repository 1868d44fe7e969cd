// Command chain-cli is a read-only dev/ops inspector over a chaind data
// directory: header lookup, tip, and account balance queries.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ledgerforge/node/chain"
	"github.com/ledgerforge/node/common"
	"github.com/ledgerforge/node/state"
	"github.com/ledgerforge/node/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dataDir string
	var chainIDHex string

	root := &cobra.Command{
		Use:   "chain-cli",
		Short: "inspect a ledgerforge chain data directory",
	}
	root.PersistentFlags().StringVar(&dataDir, "datadir", "", "node data directory (required)")
	root.PersistentFlags().StringVar(&chainIDHex, "chain-id", "01", "chain id, hex-encoded")
	root.MarkPersistentFlagRequired("datadir")

	root.AddCommand(newHeaderCmd(&dataDir, &chainIDHex))
	root.AddCommand(newAccountCmd(&dataDir, &chainIDHex))
	root.AddCommand(newTipCmd(&dataDir, &chainIDHex))

	return root
}

func openStore(dataDir, chainIDHex string) (*store.DB, error) {
	db, err := store.Open(dataDir, chainIDHex)
	if err != nil {
		return nil, err
	}
	if db.Manifest() == nil {
		db.Close()
		return nil, fmt.Errorf("chain-cli: %s has no genesis yet; run `chaind genesis` first", dataDir)
	}
	return db, nil
}

func newHeaderCmd(dataDir, chainIDHex *string) *cobra.Command {
	return &cobra.Command{
		Use:   "header <hash>",
		Short: "print a block header by hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(*dataDir, *chainIDHex)
			if err != nil {
				return err
			}
			defer db.Close()

			hash, err := common.HashFromHex(args[0])
			if err != nil {
				return fmt.Errorf("chain-cli: invalid hash: %w", err)
			}
			h, ok, err := db.GetHeader(hash)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("chain-cli: no header for %s", hash.Hex())
			}
			printHeader(cmd, h)
			return nil
		},
	}
}

func newTipCmd(dataDir, chainIDHex *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tip",
		Short: "print the current chain tip",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(*dataDir, *chainIDHex)
			if err != nil {
				return err
			}
			defer db.Close()

			m := db.Manifest()
			fmt.Fprintf(cmd.OutOrStdout(), "height: %d\nhash: %s\nchain_difficulty: %s\n", m.TipHeight, m.TipHashHex, m.TipChainDifficultyDec)
			return nil
		},
	}
}

func newAccountCmd(dataDir, chainIDHex *string) *cobra.Command {
	return &cobra.Command{
		Use:   "account <address>",
		Short: "print an account's balance, nonce and code hash at the chain tip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(*dataDir, *chainIDHex)
			if err != nil {
				return err
			}
			defer db.Close()

			addr, err := common.AddressFromHex(args[0])
			if err != nil {
				return fmt.Errorf("chain-cli: invalid address: %w", err)
			}
			m := db.Manifest()
			tipHash, err := common.HashFromHex(m.TipHashHex)
			if err != nil {
				return err
			}
			tipHeader, ok, err := db.GetHeader(tipHash)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("chain-cli: tip header missing from store")
			}
			cache := state.New(db, tipHeader.StateRoot)
			acct, err := cache.GetAccount(addr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "balance: %s\nnonce: %d\ncode_hash: %s\n", acct.Balance.String(), acct.Nonce, acct.CodeHash.Hex())
			return nil
		},
	}
}

func printHeader(cmd *cobra.Command, h chain.Header) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "number: %s\n", h.Number.String())
	fmt.Fprintf(out, "prev_hash: %s\n", h.PrevHash.Hex())
	fmt.Fprintf(out, "state_root: %s\n", h.StateRoot.Hex())
	fmt.Fprintf(out, "tx_list_root: %s\n", h.TxListRoot.Hex())
	fmt.Fprintf(out, "uncles_hash: %s\n", h.UnclesHash.Hex())
	fmt.Fprintf(out, "coinbase: %s\n", h.Coinbase.Hex())
	fmt.Fprintf(out, "difficulty: %s\n", h.Difficulty.String())
	fmt.Fprintf(out, "gas_limit: %s\n", h.GasLimit.String())
	fmt.Fprintf(out, "gas_used: %s\n", h.GasUsed.String())
	fmt.Fprintf(out, "timestamp: %d\n", h.Timestamp)
}
