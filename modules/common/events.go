package common

import (
	"github.com/thebeyondr/sekiva/lib/rpc"

	"github.com/moznion/go-optional"
)

type Shortname uint32

func (sn Shortname) WriteRPC(w *rpc.Writer) {
	w.WriteShortname(uint32(sn))
}

// A single outgoing call. Payload is the shortname followed by the arguments.
type Interaction struct {
	Contract Address
	Payload  []byte
}

// Decodes the leading shortname of an action payload.
func (i Interaction) Split() (Shortname, []byte, error) {
	r := rpc.NewReader(i.Payload)
	sn := r.ReadShortname()
	if err := r.Err(); err != nil {
		return 0, nil, err
	}
	return Shortname(sn), r.Rest(), nil
}

type CallbackRequest struct {
	Shortname Shortname
	Cost      uint64
	Args      []byte
}

// Interactions of a group run in order; the callback (if any) runs on the
// sender once all of them did, with the success of each.
type EventGroup struct {
	Interactions []Interaction
	Callback     optional.Option[CallbackRequest]
}

type EventGroupBuilder struct {
	group EventGroup
}

func NewEventGroupBuilder() *EventGroupBuilder {
	return &EventGroupBuilder{}
}

// Starts a call with a shortname prefixed payload
func (b *EventGroupBuilder) Call(contract Address, sn Shortname) *InteractionBuilder {
	w := rpc.NewWriter()
	sn.WriteRPC(w)
	return &InteractionBuilder{parent: b, contract: contract, w: w}
}

// Starts a call whose payload is written entirely by the caller
func (b *EventGroupBuilder) CallRaw(contract Address) *InteractionBuilder {
	return &InteractionBuilder{parent: b, contract: contract, w: rpc.NewWriter()}
}

func (b *EventGroupBuilder) WithCallback(sn Shortname) *CallbackBuilder {
	return &CallbackBuilder{parent: b, sn: sn, w: rpc.NewWriter()}
}

func (b *EventGroupBuilder) Build() EventGroup {
	return b.group
}

type InteractionBuilder struct {
	parent   *EventGroupBuilder
	contract Address
	w        *rpc.Writer
}

func (ib *InteractionBuilder) Argument(v rpc.Writable) *InteractionBuilder {
	v.WriteRPC(ib.w)
	return ib
}

func (ib *InteractionBuilder) Done() *EventGroupBuilder {
	ib.parent.group.Interactions = append(ib.parent.group.Interactions, Interaction{
		Contract: ib.contract,
		Payload:  ib.w.Bytes(),
	})
	return ib.parent
}

type CallbackBuilder struct {
	parent *EventGroupBuilder
	sn     Shortname
	cost   uint64
	w      *rpc.Writer
}

func (cb *CallbackBuilder) WithCost(cost uint64) *CallbackBuilder {
	cb.cost = cost
	return cb
}

func (cb *CallbackBuilder) Argument(v rpc.Writable) *CallbackBuilder {
	v.WriteRPC(cb.w)
	return cb
}

func (cb *CallbackBuilder) Done() *EventGroupBuilder {
	cb.parent.group.Callback = optional.Some(CallbackRequest{
		Shortname: cb.sn,
		Cost:      cb.cost,
		Args:      cb.w.Bytes(),
	})
	return cb.parent
}
