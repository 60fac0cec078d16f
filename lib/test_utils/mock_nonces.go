package test_utils

import (
	"sync"

	"github.com/thebeyondr/sekiva/modules/aggregate"
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/db/sekiva/nonces"

	"go.mongodb.org/mongo-driver/mongo"
)

type MockNonceDb struct {
	aggregate.Plugin
	mu     sync.Mutex
	Nonces map[common.Address]uint64
}

var _ nonces.Nonces = &MockNonceDb{}

func (m *MockNonceDb) GetNonce(account common.Address) (nonces.NonceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.Nonces[account]
	if !ok {
		return nonces.NonceRecord{}, mongo.ErrNoDocuments
	}
	return nonces.NonceRecord{Account: account, Nonce: n}, nil
}

func (m *MockNonceDb) SetNonce(account common.Address, nonce uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Nonces == nil {
		m.Nonces = make(map[common.Address]uint64)
	}
	m.Nonces[account] = nonce
	return nil
}
