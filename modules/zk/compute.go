package zk

import (
	"context"
	"fmt"

	"github.com/thebeyondr/sekiva/modules/common"
)

type Program interface {
	Run(env *ComputeEnv) ([]ProgramOutput, error)
}

type ProgramFunc func(env *ComputeEnv) ([]ProgramOutput, error)

func (f ProgramFunc) Run(env *ComputeEnv) ([]ProgramOutput, error) {
	return f(env)
}

// One output variable made of secret words
type ProgramOutput struct {
	Words []Secret
}

// What a program sees while it runs. Only confirmed variables are visible.
type ComputeEnv struct {
	ctx      context.Context
	engine   *Engine
	contract common.Address
	vars     []Variable
}

func (env *ComputeEnv) VariableIds() []SecretVarId {
	ids := make([]SecretVarId, len(env.vars))
	for i, v := range env.vars {
		ids[i] = v.Id
	}
	return ids
}

func (env *ComputeEnv) find(id SecretVarId) (Variable, error) {
	for _, v := range env.vars {
		if v.Id == id {
			return v, nil
		}
	}
	return Variable{}, fmt.Errorf("%w: %d", ErrUnknownVariable, id)
}

func (env *ComputeEnv) Metadata(id SecretVarId) []byte {
	v, err := env.find(id)
	if err != nil {
		return nil
	}
	return v.Metadata
}

func (env *ComputeEnv) Load(id SecretVarId) ([]Secret, error) {
	v, err := env.find(id)
	if err != nil {
		return nil, err
	}
	return env.engine.store.get(env.ctx, env.contract, id, v.Widths)
}

func (env *ComputeEnv) Constant(value int64, bits uint8) Secret {
	return constant(value, len(env.engine.store.nodes), bits)
}

func (env *ComputeEnv) Add(a, b Secret) Secret {
	return add(a, b)
}

// 1 when a == k, 0 otherwise, as a fresh sharing. The comparison runs inside
// the engine; neither the value of a nor the result leaves it.
func (env *ComputeEnv) EqualConst(a Secret, k int64, bits uint8) (Secret, error) {
	indicator := int64(0)
	if reconstruct(a) == k {
		indicator = 1
	}
	return split(indicator, len(env.engine.store.nodes), bits)
}
