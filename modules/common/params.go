package common

import (
	"fmt"

	"github.com/thebeyondr/sekiva/lib/rpc"
)

// Well-known system contracts that deploy new contracts
var DeployZkContractAddress = MustParseAddress("01" + "8bc1ccbb672b87710327713c97d43204905082cb")
var DeployPublicContractAddress = MustParseAddress("01" + "97a0e238e924025bad144aa0c4913e46308f9a4d")

const DEPLOY_ZK_SHORTNAME Shortname = 0x02
const DEPLOY_PUBLIC_SHORTNAME Shortname = 0x04

const ZK_BINDER_ID = 11
const PUBLIC_BINDER_ID = 9

// Stake the zk nodes must lock to serve a deployed zk contract
const ZK_REQUIRED_STAKES = 20_000_000

// Cost budget attached to every callback request
const CALLBACK_COST = 10_000

// Seconds
const DEFAULT_VOTING_DURATION = 7 * 24 * 60 * 60
const MAX_VOTING_DURATION = 30 * 24 * 60 * 60

type DeployRequest struct {
	Code     []byte
	Abi      []byte
	InitData []byte
	BinderId int32
	// zk deployments only
	RequiredStakes       uint64
	AllowedJurisdictions [][]uint32
}

func (d DeployRequest) writeZk(w *rpc.Writer) {
	DEPLOY_ZK_SHORTNAME.WriteRPC(w)
	w.WriteBytes(d.Code)
	w.WriteBytes(d.InitData)
	w.WriteBytes(d.Abi)
	w.WriteU64(d.RequiredStakes)
	rpc.WriteVec(w, d.AllowedJurisdictions, func(w *rpc.Writer, j []uint32) {
		rpc.WriteVec(w, j, (*rpc.Writer).WriteU32)
	})
	w.WriteU32(uint32(d.BinderId))
}

func (d DeployRequest) writePublic(w *rpc.Writer) {
	DEPLOY_PUBLIC_SHORTNAME.WriteRPC(w)
	w.WriteBytes(d.Code)
	w.WriteBytes(d.InitData)
	w.WriteBytes(d.Abi)
	w.WriteI32(d.BinderId)
}

// Adds a deployment interaction to the group. zk selects the deploy contract.
func (b *EventGroupBuilder) Deploy(zk bool, d DeployRequest) *EventGroupBuilder {
	if zk {
		return b.CallRaw(DeployZkContractAddress).Argument(rpcFunc(d.writeZk)).Done()
	}
	return b.CallRaw(DeployPublicContractAddress).Argument(rpcFunc(d.writePublic)).Done()
}

func ReadDeployRequest(contract Address, payload []byte) (DeployRequest, error) {
	r := rpc.NewReader(payload)
	sn := Shortname(r.ReadShortname())
	d := DeployRequest{}
	switch {
	case contract == DeployZkContractAddress && sn == DEPLOY_ZK_SHORTNAME:
		d.Code = r.ReadBytes()
		d.InitData = r.ReadBytes()
		d.Abi = r.ReadBytes()
		d.RequiredStakes = r.ReadU64()
		d.AllowedJurisdictions = rpc.ReadVec(r, func(r *rpc.Reader) []uint32 {
			return rpc.ReadVec(r, (*rpc.Reader).ReadU32)
		})
		d.BinderId = int32(r.ReadU32())
	case contract == DeployPublicContractAddress && sn == DEPLOY_PUBLIC_SHORTNAME:
		d.Code = r.ReadBytes()
		d.InitData = r.ReadBytes()
		d.Abi = r.ReadBytes()
		d.BinderId = r.ReadI32()
	default:
		return DeployRequest{}, fmt.Errorf("unknown deploy invocation 0x%02x on %s", uint32(sn), contract)
	}
	return d, r.Finish()
}

// The address a deployment started in this transaction will get
func PredictedAddress(ctx ContractContext, t AddressType) Address {
	a := Address{Type: t}
	copy(a.Identifier[:], ctx.OriginalTransaction[12:32])
	return a
}

type rpcFunc func(w *rpc.Writer)

func (f rpcFunc) WriteRPC(w *rpc.Writer) { f(w) }
