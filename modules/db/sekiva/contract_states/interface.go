package contract_states

import (
	a "github.com/thebeyondr/sekiva/modules/aggregate"
	"github.com/thebeyondr/sekiva/modules/common"
)

type ContractStates interface {
	a.Plugin
	SaveState(record ContractStateRecord) error
	// Most recent snapshot; mongo.ErrNoDocuments when the contract was never saved
	GetLatest(address common.Address) (ContractStateRecord, error)
	History(address common.Address, limit int64) ([]ContractStateRecord, error)
}

// Snapshot of a contract's state document at the end of a block
type ContractStateRecord struct {
	Address   common.Address `bson:"address" json:"address"`
	Height    uint64         `bson:"height" json:"height"`
	BlockTime int64          `bson:"block_time" json:"block_time"`
	Kind      string         `bson:"kind" json:"kind"`
	CodeId    string         `bson:"code_id" json:"code_id"`
	State     []byte         `bson:"state" json:"state"`
}
