package common

import "encoding/hex"

type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func HashFromBytes(b []byte) Hash {
	var h Hash
	copy(h[:], b)
	return h
}

// Everything a contract may know about the invocation it is running in
type ContractContext struct {
	ContractAddress Address
	Sender          Address
	// Seconds
	BlockTime int64
	// Milliseconds
	BlockProductionTime int64
	CurrentTransaction  Hash
	// The signed transaction that started the chain of events
	OriginalTransaction Hash
}

type ExecutionResult struct {
	Succeeded  bool
	ReturnData []byte
}

// Handed to the callback of an event group once every interaction ran
type CallbackContext struct {
	Success bool
	Results []ExecutionResult
}

func (ctx ContractContext) SentBySelf() bool {
	return ctx.Sender == ctx.ContractAddress
}
