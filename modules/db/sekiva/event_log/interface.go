package event_log

import (
	a "github.com/thebeyondr/sekiva/modules/aggregate"
	"github.com/thebeyondr/sekiva/modules/common"
)

type EventLog interface {
	a.Plugin
	Append(records ...EventRecord) error
	ByContract(address common.Address, offset int64, limit int64) ([]EventRecord, error)
	ByTransaction(txId string) ([]EventRecord, error)
}

// One executed invocation. Index orders the records of a block.
type EventRecord struct {
	Height    uint64         `bson:"height" json:"height"`
	Index     int            `bson:"index" json:"index"`
	BlockTime int64          `bson:"block_time" json:"block_time"`
	TxId      string         `bson:"tx_id" json:"tx_id"`
	Contract  common.Address `bson:"contract" json:"contract"`
	Sender    common.Address `bson:"sender" json:"sender"`
	Kind      string         `bson:"kind" json:"kind"`
	Shortname uint32         `bson:"shortname" json:"shortname"`
	Success   bool           `bson:"success" json:"success"`
	Error     string         `bson:"error,omitempty" json:"error,omitempty"`
	Spawned   int            `bson:"spawned" json:"spawned"`
}
