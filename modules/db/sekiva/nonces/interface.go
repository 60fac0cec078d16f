package nonces

import (
	a "github.com/thebeyondr/sekiva/modules/aggregate"
	"github.com/thebeyondr/sekiva/modules/common"
)

type Nonces interface {
	a.Plugin
	GetNonce(account common.Address) (NonceRecord, error)
	SetNonce(account common.Address, nonce uint64) error
}

type NonceRecord struct {
	Account common.Address `bson:"account"`
	Nonce   uint64         `bson:"nonce"`
}
