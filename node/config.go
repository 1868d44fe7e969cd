// Package node wires the chain/state/block/store/p2p layers into a single
// running process: configuration, genesis bootstrap, and the chain
// environment shared by every peer goroutine.
package node

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// Config is the ambient process configuration: network identity, on-disk
// layout, listen address, seed peers, and logging — field-for-field the
// shape every node daemon in this corpus carries.
type Config struct {
	Network    string   `json:"network"`
	ChainIDHex string   `json:"chain_id_hex"`
	DataDir    string   `json:"data_dir"`
	BindAddr   string   `json:"bind_addr"`
	LogLevel   string   `json:"log_level"`
	Peers      []string `json:"peers"`
	MaxPeers   int      `json:"max_peers"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// DefaultDataDir mirrors the user's home directory convention; falls back
// to a relative directory if the home directory can't be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".ledgerforge"
	}
	return filepath.Join(home, ".ledgerforge")
}

// DefaultConfig returns the devnet defaults chaind's flags start from.
func DefaultConfig() Config {
	return Config{
		Network:    "devnet",
		ChainIDHex: "01",
		DataDir:    DefaultDataDir(),
		BindAddr:   "0.0.0.0:30303",
		Peers:      nil,
		LogLevel:   "info",
		MaxPeers:   64,
	}
}

// NormalizePeers flattens comma-joined or repeated --peer flags into a
// deduplicated, order-preserving list.
func NormalizePeers(raw ...string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, token := range raw {
		for _, p := range strings.Split(token, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// ValidateConfig checks field-level invariants before a node starts up.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if strings.TrimSpace(cfg.ChainIDHex) == "" {
		return errors.New("chain_id_hex is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	if err := validateAddr(cfg.BindAddr); err != nil {
		return fmt.Errorf("invalid bind_addr: %w", err)
	}
	for _, peer := range cfg.Peers {
		if err := validatePeerAddr(peer); err != nil {
			return fmt.Errorf("invalid peer %q: %w", peer, err)
		}
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.MaxPeers <= 0 {
		return errors.New("max_peers must be > 0")
	}
	if cfg.MaxPeers > 4096 {
		return errors.New("max_peers must be <= 4096")
	}
	return nil
}

func validateAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty address")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(port) == "" {
		return errors.New("missing port")
	}
	if strings.Contains(host, " ") {
		return errors.New("invalid host")
	}
	return nil
}

func validatePeerAddr(addr string) error {
	if err := validateAddr(addr); err != nil {
		return err
	}
	host, _, _ := net.SplitHostPort(addr)
	if strings.TrimSpace(host) == "" {
		return errors.New("missing host")
	}
	return nil
}
