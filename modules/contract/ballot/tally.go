package ballot

import (
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/zk"
)

// Counts the confirmed votes per option. Every vote adds a secret 0 or 1 to
// each of the five counters, so neither a single vote nor a partial count is
// ever reconstructed.
func tallyVotes(env *zk.ComputeEnv) ([]zk.ProgramOutput, error) {
	var counts [MAX_OPTIONS]zk.Secret
	for i := range counts {
		counts[i] = env.Constant(0, 32)
	}

	for _, id := range env.VariableIds() {
		meta := env.Metadata(id)
		if len(meta) != 1 || meta[0] != SecretVote {
			continue
		}
		words, err := env.Load(id)
		if err != nil {
			return nil, err
		}
		for option := range counts {
			hit, err := env.EqualConst(words[0], int64(option), 32)
			if err != nil {
				return nil, err
			}
			counts[option] = env.Add(counts[option], hit)
		}
	}

	return []zk.ProgramOutput{{Words: counts[:]}}, nil
}

func Programs() map[common.Shortname]zk.Program {
	return map[common.Shortname]zk.Program{
		TALLY_PROGRAM: zk.ProgramFunc(tallyVotes),
	}
}
