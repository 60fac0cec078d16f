package stateEngine

import (
	"context"
	"fmt"

	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/contract/invocation"
	contract_session "github.com/thebeyondr/sekiva/modules/contract/session"
	"github.com/thebeyondr/sekiva/modules/zk"

	"github.com/JustinKnueppel/go-result"
)

func isDeployContract(address common.Address) bool {
	return address == common.DeployZkContractAddress || address == common.DeployPublicContractAddress
}

type deployment struct {
	Address common.Address
	Outcome invocation.Outcome
}

// The system deploy contracts. The new contract lands at the address
// predicted from the original transaction and is initialized with the
// deployer as sender.
func (se *StateEngine) deploy(ctx context.Context, c call, in common.Interaction) result.Result[deployment] {
	c.inv = invocation.Invocation{Kind: invocation.Init}
	d, err := se.instantiate(&c, in)
	if err != nil {
		se.record(c, "deploy", 0, err)
		se.log.Error("deployment from", c.sender, "failed", err)
		return result.Err[deployment](err)
	}
	se.record(c, "deploy", len(d.Outcome.Events), nil)
	return result.Ok(d)
}

func (se *StateEngine) instantiate(c *call, in common.Interaction) (deployment, error) {
	req, err := common.ReadDeployRequest(in.Contract, in.Payload)
	if err != nil {
		return deployment{}, err
	}
	zkDeploy := in.Contract == common.DeployZkContractAddress
	binder, addrType := int32(common.PUBLIC_BINDER_ID), common.PublicContractAddress
	if zkDeploy {
		binder, addrType = common.ZK_BINDER_ID, common.ZkContractAddress
	}
	if req.BinderId != binder {
		return deployment{}, fmt.Errorf("%w: got %d, want %d", ErrBinderMismatch, req.BinderId, binder)
	}

	codeId, impl, err := se.registry.Resolve(req.Code)
	if err != nil {
		return deployment{}, err
	}
	zkImpl, isZk := impl.(invocation.ZkContract)
	if isZk != zkDeploy {
		return deployment{}, fmt.Errorf("%w: %s through %s", ErrBinderMismatch, impl.Name(), in.Contract)
	}

	addr := common.PredictedAddress(common.ContractContext{OriginalTransaction: c.original}, addrType)
	c.contract = addr
	c.inv.Rpc = req.InitData

	sess := contract_session.NewCallSession(se.contracts)
	if sess.Exists(addr) {
		return deployment{}, fmt.Errorf("%w: %s", ErrAddressTaken, addr)
	}
	out, err := impl.Invoke(se.contractContext(*c), zk.State{CalculationState: zk.Waiting}, nil, c.inv)
	if err != nil {
		return deployment{}, err
	}
	sess.Put(contract_session.ContractRecord{
		Address: addr,
		Kind:    impl.Name(),
		CodeId:  codeId,
		State:   out.State,
	})
	if isZk {
		se.zk.Attach(addr, zkImpl.Programs())
	}
	if err := se.commit(sess, *c, out); err != nil {
		return deployment{}, err
	}

	se.metrics.Deployments.WithLabelValues(impl.Name()).Inc()
	se.log.Info("deployed", impl.Name(), "at", addr, "by", c.sender)
	return deployment{Address: addr, Outcome: out}, nil
}
