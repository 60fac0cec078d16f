package common

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"

	"github.com/thebeyondr/sekiva/lib/rpc"

	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

type AddressType uint8

const (
	AccountAddress AddressType = iota
	SystemContractAddress
	PublicContractAddress
	ZkContractAddress
	GovContractAddress
)

const ADDRESS_LEN = 21

var ErrInvalidAddress = errors.New("invalid address")

func (t AddressType) String() string {
	switch t {
	case AccountAddress:
		return "Account"
	case SystemContractAddress:
		return "SystemContract"
	case PublicContractAddress:
		return "PublicContract"
	case ZkContractAddress:
		return "ZkContract"
	case GovContractAddress:
		return "GovContract"
	}
	return fmt.Sprintf("AddressType(%d)", uint8(t))
}

func (t AddressType) IsContract() bool {
	return t == PublicContractAddress || t == ZkContractAddress || t == SystemContractAddress || t == GovContractAddress
}

// 1 type byte + 20 identifier bytes. Text form is the 42 char hex of both.
type Address struct {
	Type       AddressType
	Identifier [20]byte
}

func NewAddress(t AddressType, identifier []byte) (Address, error) {
	if len(identifier) != 20 {
		return Address{}, fmt.Errorf("%w: identifier must be 20 bytes, got %d", ErrInvalidAddress, len(identifier))
	}
	a := Address{Type: t}
	copy(a.Identifier[:], identifier)
	return a, nil
}

func ParseAddress(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}
	if len(b) != ADDRESS_LEN {
		return Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, ADDRESS_LEN, len(b))
	}
	if b[0] > uint8(GovContractAddress) {
		return Address{}, fmt.Errorf("%w: unknown type %d", ErrInvalidAddress, b[0])
	}
	return NewAddress(AddressType(b[0]), b[1:])
}

// Panics on malformed input; for constants and tests
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) Bytes() []byte {
	return append([]byte{byte(a.Type)}, a.Identifier[:]...)
}

func (a Address) String() string {
	return hex.EncodeToString(a.Bytes())
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) Compare(b Address) int {
	if a.Type != b.Type {
		if a.Type < b.Type {
			return -1
		}
		return 1
	}
	return bytes.Compare(a.Identifier[:], b.Identifier[:])
}

func (a Address) WriteRPC(w *rpc.Writer) {
	w.WriteFixed(a.Bytes())
}

func ReadAddress(r *rpc.Reader) Address {
	b := r.ReadFixed(ADDRESS_LEN)
	if b == nil {
		return Address{}
	}
	if b[0] > uint8(GovContractAddress) {
		r.Fail(fmt.Errorf("%w: unknown type %d", ErrInvalidAddress, b[0]))
		return Address{}
	}
	a, _ := NewAddress(AddressType(b[0]), b[1:])
	return a
}

func WriteAddresses(w *rpc.Writer, addrs []Address) {
	rpc.WriteVec(w, addrs, func(w *rpc.Writer, a Address) { a.WriteRPC(w) })
}

func ReadAddresses(r *rpc.Reader) []Address {
	return rpc.ReadVec(r, ReadAddress)
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Stored as the hex string so state documents stay readable in mongo

func (a Address) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bsontype.String, bsoncore.AppendString(nil, a.String()), nil
}

func (a *Address) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t != bsontype.String {
		return fmt.Errorf("%w: bson type %s", ErrInvalidAddress, t)
	}
	s, _, ok := bsoncore.ReadString(data)
	if !ok {
		return fmt.Errorf("%w: malformed bson string", ErrInvalidAddress)
	}
	return a.UnmarshalText([]byte(s))
}

// Address sets are kept as sorted, duplicate free slices so that
// persisted state is deterministic. All helpers return new slices.

func ContainsAddress(set []Address, a Address) bool {
	_, found := slices.BinarySearchFunc(set, a, Address.Compare)
	return found
}

func InsertAddress(set []Address, a Address) []Address {
	i, found := slices.BinarySearchFunc(set, a, Address.Compare)
	if found {
		return slices.Clone(set)
	}
	return slices.Insert(slices.Clone(set), i, a)
}

func RemoveAddress(set []Address, a Address) []Address {
	i, found := slices.BinarySearchFunc(set, a, Address.Compare)
	if !found {
		return slices.Clone(set)
	}
	return slices.Delete(slices.Clone(set), i, i+1)
}

func MergeAddresses(set []Address, add []Address) []Address {
	out := slices.Clone(set)
	for _, a := range add {
		out = InsertAddress(out, a)
	}
	return out
}

func FilterAddresses(set []Address, remove []Address) []Address {
	out := slices.Clone(set)
	for _, a := range remove {
		out = RemoveAddress(out, a)
	}
	return out
}

// Sorted, duplicate free copy
func AddressSet(addrs ...Address) []Address {
	out := slices.Clone(addrs)
	slices.SortFunc(out, Address.Compare)
	return slices.CompactFunc(out, func(a, b Address) bool { return a == b })
}
