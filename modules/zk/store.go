package zk

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/thebeyondr/sekiva/modules/common"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/davidlazar/go-crypto/encoding/base32"
	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	flatfs "github.com/ipfs/go-ds-flatfs"
	"github.com/minio/sha256-simd"
)

// flatfs only accepts upper case base32 style keys
func makeKey(t string, id string) datastore.Key {
	k1 := base32.EncodeToString([]byte(t + "-" + base64.RawURLEncoding.EncodeToString([]byte(id))))
	return datastore.NewKey(strings.ToUpper(k1))
}

func shareKey(contract common.Address, id SecretVarId, word int) datastore.Key {
	return makeKey("share", fmt.Sprintf("%s/%d/%d", contract, id, word))
}

// Each node keeps only its own shares
type shareStore struct {
	nodes []datastore.Batching
}

func (s *shareStore) put(ctx context.Context, contract common.Address, id SecretVarId, words []Secret) error {
	for n, node := range s.nodes {
		batch, err := node.Batch(ctx)
		if err != nil {
			return err
		}
		for w, word := range words {
			if err := batch.Put(ctx, shareKey(contract, id, w), shareBytes(&word.shares[n])); err != nil {
				return err
			}
		}
		if err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("zk: node %d: %w", n, err)
		}
	}
	return nil
}

func (s *shareStore) get(ctx context.Context, contract common.Address, id SecretVarId, widths []uint8) ([]Secret, error) {
	words := make([]Secret, len(widths))
	for w, bits := range widths {
		words[w] = Secret{make([]fr.Element, len(s.nodes)), bits}
	}
	for n, node := range s.nodes {
		for w := range widths {
			b, err := node.Get(ctx, shareKey(contract, id, w))
			if err != nil {
				return nil, fmt.Errorf("zk: node %d share %d/%d: %w", n, id, w, err)
			}
			e, err := shareFromBytes(b)
			if err != nil {
				return nil, err
			}
			words[w].shares[n] = e
		}
	}
	return words, nil
}

func (s *shareStore) delete(ctx context.Context, contract common.Address, id SecretVarId, widths []uint8) error {
	var errs []error
	for _, node := range s.nodes {
		for w := range widths {
			err := node.Delete(ctx, shareKey(contract, id, w))
			if err != nil && !errors.Is(err, datastore.ErrNotFound) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func commit(contract common.Address, id SecretVarId, words []Secret) [32]byte {
	h := sha256.New()
	h.Write(contract.Bytes())
	h.Write([]byte(fmt.Sprint(id)))
	for _, word := range words {
		h.Write([]byte{word.bits})
		for i := range word.shares {
			h.Write(shareBytes(&word.shares[i]))
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// In-memory node stores for tests and the devnet
func MemoryNodes(n int) []datastore.Batching {
	nodes := make([]datastore.Batching, n)
	for i := range nodes {
		nodes[i] = dssync.MutexWrap(datastore.NewMapDatastore())
	}
	return nodes
}

// One flatfs store per node under dir/node-<i>
func FlatfsNodes(dir string, n int) ([]datastore.Batching, error) {
	nodes := make([]datastore.Batching, n)
	for i := range nodes {
		path := filepath.Join(dir, fmt.Sprintf("node-%d", i))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		ds, err := flatfs.CreateOrOpen(path, flatfs.Prefix(1), false)
		if err != nil {
			return nil, err
		}
		nodes[i] = ds
	}
	return nodes, nil
}
