package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/thebeyondr/sekiva/lib/rpc"
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/contract/ballot"
	"github.com/thebeyondr/sekiva/modules/contract/factory"
	"github.com/thebeyondr/sekiva/modules/contract/organization"
	stateEngine "github.com/thebeyondr/sekiva/modules/state-processing"
	"github.com/thebeyondr/sekiva/modules/zk"

	"github.com/minio/sha256-simd"
)

// Account address derived from a name, so demo runs are reproducible
func demoAccount(name string) common.Address {
	sum := sha256.Sum256([]byte(name))
	a, _ := common.NewAddress(common.AccountAddress, sum[:20])
	return a
}

type addressList []common.Address

func (l addressList) WriteRPC(w *rpc.Writer) {
	common.WriteAddresses(w, l)
}

type demo struct {
	ctx context.Context
	se  *stateEngine.StateEngine
	now time.Time
}

func (d *demo) block() error {
	d.now = d.now.Add(3 * time.Second)
	_, err := d.se.ProduceBlock(d.ctx, d.now)
	return err
}

func (d *demo) expect(step string, res stateEngine.TxResult) error {
	if !res.Success {
		return fmt.Errorf("%s: %s %s", step, res.Symbol, res.Ret)
	}
	return nil
}

func (d *demo) call(step string, sender, contract common.Address, sn common.Shortname, args ...rpc.Writable) error {
	if err := d.expect(step, d.se.Call(d.ctx, sender, contract, stateEngine.CallPayload(sn, args...))); err != nil {
		return err
	}
	return d.block()
}

func (d *demo) contractOf(step string, kind string) (common.Address, error) {
	for _, addr := range d.se.Addresses() {
		if rec, ok := d.se.Contract(addr); ok && rec.Kind == kind {
			return addr, nil
		}
	}
	return common.Address{}, fmt.Errorf("%s: no %s deployed", step, kind)
}

// Factory, organization and ballot on an in-memory node; three members vote
// and the tally is printed as json.
func runDemo(out io.Writer) error {
	engine, err := zk.New(zk.MemoryNodes(3), nil, nil)
	if err != nil {
		return err
	}
	d := &demo{
		ctx: context.Background(),
		se:  stateEngine.New(nil, engine, nil, nil, nil, nil, nil),
		now: time.Now(),
	}
	if err := d.se.Init(); err != nil {
		return err
	}

	admin := demoAccount("admin")
	voters := map[common.Address]int64{
		admin:                0,
		demoAccount("ana"):   0,
		demoAccount("bruno"): 1,
	}

	res := d.se.Deploy(d.ctx, admin, false, common.DeployRequest{
		Code:     stateEngine.FACTORY_CODE,
		Abi:      stateEngine.FACTORY_ABI,
		InitData: stateEngine.NativeFactoryCode().Encode(),
		BinderId: common.PUBLIC_BINDER_ID,
	})
	if err := d.expect("deploying factory", res); err != nil {
		return err
	}
	fa := res.Contract

	err = d.call("deploying organization", admin, fa, factory.DEPLOY_ORGANIZATION, factory.OrganizationInit{
		Name:          "Demo collective",
		Description:   "Votes in private",
		Administrator: admin,
	})
	if err != nil {
		return err
	}
	org, err := d.contractOf("deploying organization", organization.Contract{}.Name())
	if err != nil {
		return err
	}

	members := make(addressList, 0, len(voters))
	for v := range voters {
		if v != admin {
			members = append(members, v)
		}
	}
	if err := d.call("adding members", admin, org, organization.ADD_MEMBERS, members); err != nil {
		return err
	}

	err = d.call("deploying ballot", admin, org, organization.DEPLOY_BALLOT, organization.BallotInit{
		Options:       []string{"yes", "no"},
		Title:         "Adopt the demo",
		Description:   "Should the demo be adopted",
		Administrator: admin,
	})
	if err != nil {
		return err
	}
	b, err := d.contractOf("deploying ballot", ballot.Contract{}.Name())
	if err != nil {
		return err
	}

	if err := d.call("opening ballot", admin, b, ballot.SET_VOTE_ACTIVE, rpc.Bool(false)); err != nil {
		return err
	}
	for voter, choice := range voters {
		if err := d.expect("voting", d.se.SubmitSecretInput(d.ctx, voter, b, ballot.CAST_VOTE, nil, choice)); err != nil {
			return err
		}
	}
	if err := d.block(); err != nil {
		return err
	}
	if err := d.call("computing tally", admin, b, ballot.COMPUTE_TALLY); err != nil {
		return err
	}

	rec, ok := d.se.Contract(b)
	if !ok {
		return errors.New("ballot disappeared")
	}
	state, err := ballot.DecodeState(rec.State)
	if err != nil {
		return err
	}
	if state.Status != ballot.Completed {
		return fmt.Errorf("ballot ended %s", state.Status)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(state.View())
}
