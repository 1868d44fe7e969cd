// Package store is the backing key/value store §6 names: trie nodes, code
// blobs keyed by hash, serialized blocks keyed by block hash, and
// cumulative-difficulty memos. It is a thin bbolt wrapper, adapted from the
// teacher's bucket-per-concern layout.
package store

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/ledgerforge/node/chain"
	"github.com/ledgerforge/node/common"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketKV         = []byte("kv")
	bucketHeaders    = []byte("headers_by_hash")
	bucketBlocks     = []byte("blocks_by_hash")
	bucketCode       = []byte("code_by_hash")
	bucketDifficulty = []byte("difficulty_by_hash")
)

type DB struct {
	chainDir string
	db       *bolt.DB
	manifest *Manifest
}

// Open opens (creating if necessary) the bbolt-backed store for chainIDHex
// under datadir, creating every required bucket and ensuring the empty code
// blob is present regardless of whether any account has materialized yet
// (§9 "empty-code blob... written unconditionally at store initialization").
func Open(datadir string, chainIDHex string) (*DB, error) {
	if datadir == "" {
		return nil, fmt.Errorf("datadir required")
	}
	if chainIDHex == "" {
		return nil, fmt.Errorf("chain_id_hex required")
	}

	chainDir := ChainDir(datadir, chainIDHex)
	if err := ensureDir(chainDir); err != nil {
		return nil, err
	}
	if err := ensureDir(filepath.Join(chainDir, "db")); err != nil {
		return nil, err
	}

	path := filepath.Join(chainDir, "db", "kv.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}

	d := &DB{chainDir: chainDir, db: bdb}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketKV, bucketHeaders, bucketBlocks, bucketCode, bucketDifficulty} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	if err := d.ensureEmptyCodeBlob(); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	m, err := readManifest(chainDir)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil // uninitialized chain; caller must InitGenesis.
		}
		_ = bdb.Close()
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if m.SchemaVersion > SchemaVersionV1 {
		_ = bdb.Close()
		return nil, fmt.Errorf("manifest schema_version %d > supported %d", m.SchemaVersion, SchemaVersionV1)
	}
	d.manifest = m
	return d, nil
}

func (d *DB) ensureEmptyCodeBlob() error {
	return d.PutCode(chain.EmptyCodeHash, nil)
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) ChainDir() string { return d.chainDir }

func (d *DB) Manifest() *Manifest {
	if d == nil {
		return nil
	}
	return d.manifest
}

func (d *DB) SetManifest(m *Manifest) error {
	if d == nil {
		return fmt.Errorf("db: nil")
	}
	if err := writeManifestAtomic(d.chainDir, m); err != nil {
		return err
	}
	d.manifest = m
	return nil
}

// --- trie.KVStore / generic byte-keyed dictionary ---

func (d *DB) Get(key []byte) ([]byte, bool, error) {
	var out []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketKV).Get(key)
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (d *DB) Put(key []byte, value []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Put(key, value)
	})
}

func (d *DB) Delete(key []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Delete(key)
	})
}

func (d *DB) Has(key []byte) (bool, error) {
	_, ok, err := d.Get(key)
	return ok, err
}

// --- code blobs ---

func (d *DB) GetCode(hash common.Hash) ([]byte, bool, error) {
	var out []byte
	var ok bool
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCode).Get(hash[:])
		if v != nil {
			out = append([]byte(nil), v...)
			ok = true
		}
		return nil
	})
	return out, ok, err
}

func (d *DB) PutCode(hash common.Hash, code []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCode).Put(hash[:], code)
	})
}

// --- headers ---

func (d *DB) GetHeader(hash common.Hash) (chain.Header, bool, error) {
	var raw []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHeaders).Get(hash[:])
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return chain.Header{}, false, err
	}
	if raw == nil {
		return chain.Header{}, false, nil
	}
	h, err := chain.DecodeHeader(raw)
	return h, err == nil, err
}

func (d *DB) PutHeader(hash common.Hash, h chain.Header) error {
	raw, err := chain.EncodeHeader(h)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHeaders).Put(hash[:], raw)
	})
}

// --- serialized blocks ---

func (d *DB) GetBlockBytes(hash common.Hash) ([]byte, bool, error) {
	var out []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlocks).Get(hash[:])
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (d *DB) PutBlockBytes(hash common.Hash, raw []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlocks).Put(hash[:], raw)
	})
}

// --- cumulative-difficulty memos ---

func (d *DB) GetDifficulty(hash common.Hash) (*big.Int, bool, error) {
	var out *big.Int
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketDifficulty).Get(hash[:])
		if v != nil {
			out = new(big.Int).SetBytes(v)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (d *DB) PutDifficulty(hash common.Hash, v *big.Int) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDifficulty).Put(hash[:], v.Bytes())
	})
}
