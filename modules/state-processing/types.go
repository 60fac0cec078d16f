package stateEngine

import (
	"errors"

	"github.com/thebeyondr/sekiva/lib/rpc"
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/contract/invocation"
	"github.com/thebeyondr/sekiva/modules/zk"

	"github.com/multiformats/go-multicodec"
)

// A signed call from an account. Payload is the shortname followed by the
// arguments, or a deploy request when Contract is a deploy contract.
type Transaction struct {
	Sender   common.Address `json:"sender"`
	Nonce    uint64         `json:"nonce"`
	Contract common.Address `json:"contract"`
	Payload  []byte         `json:"payload"`
}

// sha2-256 of the DAG-CBOR encoded transaction
func (tx Transaction) Hash() (common.Hash, error) {
	b, err := common.EncodeDagCbor(tx)
	if err != nil {
		return common.Hash{}, err
	}
	c, err := common.HashBytes(b, multicodec.DagCbor)
	if err != nil {
		return common.Hash{}, err
	}
	return common.DigestOf(c), nil
}

type ErrorSymbol string

const (
	SYMBOL_REVERT             ErrorSymbol = "revert"
	SYMBOL_CONTRACT_NOT_FOUND ErrorSymbol = "contract-not-found"
	SYMBOL_DECODE_FAILED      ErrorSymbol = "decode-failed"
	SYMBOL_ENGINE_REJECTED    ErrorSymbol = "engine-rejected"
	SYMBOL_INVALID_NONCE      ErrorSymbol = "invalid-nonce"
)

var (
	ErrContractNotFound  = errors.New("contract not found")
	ErrCodeNotRegistered = errors.New("no implementation registered for code")
	ErrInvalidNonce      = errors.New("invalid nonce")
	ErrAddressTaken      = errors.New("address already in use")
	ErrBinderMismatch    = errors.New("binder id does not match the deploy contract")
	ErrNoInputDef        = errors.New("secret input handler returned no input definition")
	ErrEngineRejected    = errors.New("rejected by the zk engine")
	ErrQueueOverflow     = errors.New("dispatch queue did not drain")
)

var decodeErrors = []error{
	rpc.ErrUnexpectedEOF,
	rpc.ErrTrailingBytes,
	rpc.ErrMissingHeader,
	rpc.ErrInvalidBool,
	rpc.ErrInvalidVariant,
	rpc.ErrShortnameLength,
	common.ErrInvalidAddress,
	invocation.ErrUnknownShortname,
	invocation.ErrUnsupported,
}

var engineErrors = []error{
	ErrEngineRejected,
	ErrNoInputDef,
	zk.ErrUnknownContract,
	zk.ErrInputOutOfRange,
	zk.ErrNotWaiting,
	zk.ErrUnknownProgram,
	zk.ErrCommitmentMismatch,
}

func Classify(err error) ErrorSymbol {
	switch {
	case errors.Is(err, ErrContractNotFound), errors.Is(err, ErrCodeNotRegistered):
		return SYMBOL_CONTRACT_NOT_FOUND
	case errors.Is(err, ErrInvalidNonce):
		return SYMBOL_INVALID_NONCE
	}
	for _, e := range engineErrors {
		if errors.Is(err, e) {
			return SYMBOL_ENGINE_REJECTED
		}
	}
	for _, e := range decodeErrors {
		if errors.Is(err, e) {
			return SYMBOL_DECODE_FAILED
		}
	}
	return SYMBOL_REVERT
}

// Outcome of a submitted transaction. Ret is the hex encoded return data of
// an action, the address of a deployment, the variable id of a secret input,
// or the error message.
type TxResult struct {
	Id       string         `json:"id"`
	Success  bool           `json:"success"`
	Ret      string         `json:"ret"`
	Symbol   ErrorSymbol    `json:"symbol,omitempty"`
	Contract common.Address `json:"contract"`
	// Event groups the transaction queued
	Spawned int `json:"spawned"`
}

func errorToTxResult(id common.Hash, contract common.Address, err error) TxResult {
	return TxResult{
		Id:       id.String(),
		Success:  false,
		Ret:      err.Error(),
		Symbol:   Classify(err),
		Contract: contract,
	}
}

// What ProduceBlock did
type BlockSummary struct {
	Height    uint64 `json:"height"`
	BlockTime int64  `json:"block_time"`
	Processed int    `json:"processed"`
	Saved     int    `json:"saved"`
	Events    int    `json:"events"`
}
