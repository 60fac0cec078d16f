package stateEngine

import (
	"fmt"
	"sync"

	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/contract/ballot"
	"github.com/thebeyondr/sekiva/modules/contract/factory"
	"github.com/thebeyondr/sekiva/modules/contract/invocation"
	"github.com/thebeyondr/sekiva/modules/contract/organization"
)

// Code blobs the natively compiled contracts are registered under. A deploy
// request carrying one of them instantiates the matching implementation.
var (
	FACTORY_CODE      = []byte("sekiva/factory/v1")
	FACTORY_ABI       = []byte("sekiva/factory/v1/abi")
	ORGANIZATION_CODE = []byte("sekiva/organization/v1")
	ORGANIZATION_ABI  = []byte("sekiva/organization/v1/abi")
	BALLOT_CODE       = []byte("sekiva/ballot/v1")
	BALLOT_ABI        = []byte("sekiva/ballot/v1/abi")
)

// Code id -> implementation
type CodeRegistry struct {
	mu    sync.RWMutex
	impls map[string]invocation.Contract
}

func NewCodeRegistry() *CodeRegistry {
	return &CodeRegistry{impls: make(map[string]invocation.Contract)}
}

func (r *CodeRegistry) Register(code []byte, impl invocation.Contract) (string, error) {
	c, err := common.CodeId(code)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.impls[c.String()] = impl
	return c.String(), nil
}

func (r *CodeRegistry) Lookup(codeId string) (invocation.Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impl, ok := r.impls[codeId]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCodeNotRegistered, codeId)
	}
	return impl, nil
}

// Code id and implementation of a code blob
func (r *CodeRegistry) Resolve(code []byte) (string, invocation.Contract, error) {
	c, err := common.CodeId(code)
	if err != nil {
		return "", nil, err
	}
	impl, err := r.Lookup(c.String())
	return c.String(), impl, err
}

// Registers factory, organization and ballot under their code blobs
func (r *CodeRegistry) RegisterNatives() error {
	natives := []struct {
		code []byte
		impl invocation.Contract
	}{
		{FACTORY_CODE, factory.Contract{}},
		{ORGANIZATION_CODE, organization.Contract{}},
		{BALLOT_CODE, ballot.Contract{}},
	}
	for _, n := range natives {
		if _, err := r.Register(n.code, n.impl); err != nil {
			return err
		}
	}
	return nil
}

// Init data of a factory serving the native organization and ballot code
func NativeFactoryCode() factory.ContractCode {
	return factory.ContractCode{
		OrganizationCode: ORGANIZATION_CODE,
		OrganizationAbi:  ORGANIZATION_ABI,
		BallotCode:       BALLOT_CODE,
		BallotAbi:        BALLOT_ABI,
	}
}
