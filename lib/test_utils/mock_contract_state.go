package test_utils

import (
	"slices"
	"sync"

	"github.com/thebeyondr/sekiva/modules/aggregate"
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/db/sekiva/contract_states"

	"go.mongodb.org/mongo-driver/mongo"
)

type MockContractStateDb struct {
	aggregate.Plugin
	mu      sync.Mutex
	Records []contract_states.ContractStateRecord
}

var _ contract_states.ContractStates = &MockContractStateDb{}

func (m *MockContractStateDb) SaveState(record contract_states.ContractStateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.State = slices.Clone(record.State)
	for i, existing := range m.Records {
		if existing.Address == record.Address && existing.Height == record.Height {
			m.Records[i] = record
			return nil
		}
	}
	m.Records = append(m.Records, record)
	return nil
}

func (m *MockContractStateDb) GetLatest(address common.Address) (contract_states.ContractStateRecord, error) {
	history, _ := m.History(address, 1)
	if len(history) == 0 {
		return contract_states.ContractStateRecord{}, mongo.ErrNoDocuments
	}
	return history[0], nil
}

func (m *MockContractStateDb) History(address common.Address, limit int64) ([]contract_states.ContractStateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]contract_states.ContractStateRecord, 0)
	for _, r := range m.Records {
		if r.Address == address {
			records = append(records, r)
		}
	}
	slices.SortStableFunc(records, func(a, b contract_states.ContractStateRecord) int {
		return int(int64(b.Height) - int64(a.Height))
	})
	if limit > 0 && int64(len(records)) > limit {
		records = records[:limit]
	}
	return records, nil
}
