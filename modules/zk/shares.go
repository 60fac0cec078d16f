package zk

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// A secret word: one additive share per node over the bls12-381 scalar field.
// Signed values v are embedded as v mod r.
type Secret struct {
	shares []fr.Element
	bits   uint8
}

func (s Secret) Bits() uint8 {
	return s.bits
}

var halfModulus = new(big.Int).Rsh(fr.Modulus(), 1)

func split(value int64, nodes int, bits uint8) (Secret, error) {
	shares := make([]fr.Element, nodes)
	var sum fr.Element
	for i := 0; i < nodes-1; i++ {
		if _, err := shares[i].SetRandom(); err != nil {
			return Secret{}, fmt.Errorf("zk: share randomness: %w", err)
		}
		sum.Add(&sum, &shares[i])
	}
	var v fr.Element
	v.SetInt64(value)
	shares[nodes-1].Sub(&v, &sum)
	return Secret{shares, bits}, nil
}

// Public constants need no randomness: the first node holds the value.
func constant(value int64, nodes int, bits uint8) Secret {
	shares := make([]fr.Element, nodes)
	shares[0].SetInt64(value)
	return Secret{shares, bits}
}

func reconstruct(s Secret) int64 {
	var sum fr.Element
	for i := range s.shares {
		sum.Add(&sum, &s.shares[i])
	}
	var x big.Int
	sum.BigInt(&x)
	if x.Cmp(halfModulus) > 0 {
		x.Sub(&x, fr.Modulus())
	}
	return x.Int64()
}

// Share-wise addition; no communication between nodes needed
func add(a, b Secret) Secret {
	out := make([]fr.Element, len(a.shares))
	for i := range out {
		out[i].Add(&a.shares[i], &b.shares[i])
	}
	return Secret{out, max(a.bits, b.bits)}
}

// Little-endian two's complement in bits/8 bytes
func encodeWord(v int64, bits uint8) []byte {
	n := int(bits / 8)
	out := make([]byte, n)
	u := uint64(v)
	for i := 0; i < n; i++ {
		out[i] = byte(u >> (8 * i))
	}
	return out
}

func shareBytes(e *fr.Element) []byte {
	b := e.Bytes()
	return b[:]
}

func shareFromBytes(b []byte) (fr.Element, error) {
	var e fr.Element
	if len(b) != fr.Bytes {
		return e, fmt.Errorf("zk: share must be %d bytes, got %d", fr.Bytes, len(b))
	}
	e.SetBytes(b)
	return e, nil
}
