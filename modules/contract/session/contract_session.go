package contract_session

import (
	"maps"
	"slices"

	"github.com/thebeyondr/sekiva/modules/common"
)

// A deployed contract as the host keeps it
type ContractRecord struct {
	Address common.Address
	// Name of the native implementation
	Kind   string
	CodeId string
	State  []byte
	// Set once the record was written during the current block
	Dirty bool
}

func (r ContractRecord) clone() ContractRecord {
	r.State = slices.Clone(r.State)
	return r
}

// Committed contract records the session reads through to
type Store interface {
	Record(address common.Address) (ContractRecord, bool)
}

type TempOutput struct {
	Record ContractRecord
	Logs   []string
}

// Session for one invocation. Nothing reaches the store until the host
// takes the outputs, so dropping the session is a rollback.
type CallSession struct {
	store   Store
	pending map[common.Address]*TempOutput
}

func NewCallSession(store Store) *CallSession {
	return &CallSession{
		store:   store,
		pending: make(map[common.Address]*TempOutput),
	}
}

// Staged record if there is one, else the committed one.
func (cs *CallSession) Get(address common.Address) (ContractRecord, bool) {
	if out, ok := cs.pending[address]; ok {
		return out.Record.clone(), true
	}
	rec, ok := cs.store.Record(address)
	if !ok {
		return ContractRecord{}, false
	}
	return rec.clone(), true
}

func (cs *CallSession) Exists(address common.Address) bool {
	_, ok := cs.Get(address)
	return ok
}

func (cs *CallSession) Put(record ContractRecord) {
	out, ok := cs.pending[record.Address]
	if !ok {
		out = &TempOutput{}
		cs.pending[record.Address] = out
	}
	record.Dirty = true
	out.Record = record.clone()
}

// Append logs for a contract
func (cs *CallSession) AppendLogs(address common.Address, logs ...string) {
	out, ok := cs.pending[address]
	if !ok {
		rec, _ := cs.store.Record(address)
		out = &TempOutput{Record: rec.clone()}
		cs.pending[address] = out
	}
	out.Logs = append(out.Logs, logs...)
}

// Detaches the staged output of a contract from the session
func (cs *CallSession) takePending(address common.Address) *TempOutput {
	out, ok := cs.pending[address]
	if !ok {
		return nil
	}
	delete(cs.pending, address)
	cloned := cloneTempOutputs(map[common.Address]*TempOutput{address: out})
	return cloned[address]
}

// Every staged output, ordered by address. The session is empty afterwards.
func (cs *CallSession) ToOutputs() []TempOutput {
	addrs := slices.SortedFunc(maps.Keys(cs.pending), common.Address.Compare)
	outputs := make([]TempOutput, 0, len(addrs))
	for _, addr := range addrs {
		outputs = append(outputs, *cs.takePending(addr))
	}
	return outputs
}

// Rollback state changes
func (cs *CallSession) Rollback() {
	cs.pending = make(map[common.Address]*TempOutput)
}

func cloneTempOutputs(src map[common.Address]*TempOutput) map[common.Address]*TempOutput {
	if len(src) == 0 {
		return nil
	}
	out := make(map[common.Address]*TempOutput, len(src))
	for addr, o := range src {
		out[addr] = &TempOutput{
			Record: o.Record.clone(),
			Logs:   slices.Clone(o.Logs),
		}
	}
	return out
}
