package common

import (
	"bytes"
	"encoding/json"

	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/multiformats/go-multicodec"
	multihash "github.com/multiformats/go-multihash/core"

	codecJson "github.com/ipld/go-ipld-prime/codec/json"
)

// Canonical DAG-CBOR of any json-marshalable value
func EncodeDagCbor(obj interface{}) ([]byte, error) {
	buf, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}

	nb := basicnode.Prototype.Any.NewBuilder()
	if err := codecJson.Decode(nb, bytes.NewBuffer(buf)); err != nil {
		return nil, err
	}

	var bbuf bytes.Buffer
	if err := dagcbor.Encode(nb.Build(), &bbuf); err != nil {
		return nil, err
	}
	return bbuf.Bytes(), nil
}

func HashBytes(data []byte, mf multicodec.Code) (cid.Cid, error) {
	prefix := cid.Prefix{
		Version:  1,
		Codec:    uint64(mf),
		MhType:   multihash.SHA2_256,
		MhLength: -1,
	}

	return prefix.Sum(data)
}

// Last 32 bytes of the cid's multihash, i.e. the raw sha2-256 digest
func DigestOf(c cid.Cid) Hash {
	b := c.Hash()
	return HashFromBytes(b[len(b)-32:])
}

// Content id of contract code; used to look up the native implementation
func CodeId(code []byte) (cid.Cid, error) {
	return HashBytes(code, multicodec.Raw)
}
