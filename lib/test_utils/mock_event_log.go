package test_utils

import (
	"sync"

	"github.com/thebeyondr/sekiva/modules/aggregate"
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/db/sekiva/event_log"
)

type MockEventLogDb struct {
	aggregate.Plugin
	mu      sync.Mutex
	Records []event_log.EventRecord
}

var _ event_log.EventLog = &MockEventLogDb{}

func (m *MockEventLogDb) Append(records ...event_log.EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, records...)
	return nil
}

func (m *MockEventLogDb) filter(keep func(event_log.EventRecord) bool) []event_log.EventRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event_log.EventRecord, 0)
	for _, r := range m.Records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *MockEventLogDb) ByContract(address common.Address, offset int64, limit int64) ([]event_log.EventRecord, error) {
	records := m.filter(func(r event_log.EventRecord) bool { return r.Contract == address })
	if offset >= int64(len(records)) {
		return []event_log.EventRecord{}, nil
	}
	records = records[offset:]
	if limit > 0 && int64(len(records)) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *MockEventLogDb) ByTransaction(txId string) ([]event_log.EventRecord, error) {
	return m.filter(func(r event_log.EventRecord) bool { return r.TxId == txId }), nil
}
