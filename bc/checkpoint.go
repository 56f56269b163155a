package bc

import (
	"fmt"
	"path/filepath"

	omwjson "github.com/sw965/omw/json"
	omwrand "github.com/sw965/omw/math/rand"

	"github.com/sw965/ladle/nn"
)

// Checkpoint はネットワークの再構築に必要な構成とパラメーターの組。
type Checkpoint struct {
	Config Config
	Params nn.Parameters
}

func checkpointPath(dir, name, tag string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s", name, tag)+omwjson.EXTENSION)
}

func (a *Agent) Save(dir, tag string) error {
	c := Checkpoint{
		Config: a.Policy.Config,
		Params: a.Policy.Parameters(),
	}
	return omwjson.Write[Checkpoint](&c, checkpointPath(dir, a.Name, tag))
}

// LoadAgent はチェックポイントから同じ構成の方策を再構築し、パラメーターを書き戻す。
func LoadAgent(dir, tag string, pIdx int) (*Agent, error) {
	name := fmt.Sprintf("il_p%d", pIdx+1)
	c, err := omwjson.Load[Checkpoint](checkpointPath(dir, name, tag))
	if err != nil {
		return nil, err
	}

	// 初期化はすぐSetで上書きされる為、乱数源は何でもよい。
	policy, err := NewPolicy(c.Config, omwrand.NewMt19937())
	if err != nil {
		return nil, err
	}
	if err := policy.Parameters().Set(c.Params); err != nil {
		return nil, err
	}
	return NewAgent(pIdx, policy), nil
}

// Load はエージェント自身のパラメーターをチェックポイントで上書きする。
func (a *Agent) Load(dir, tag string) error {
	c, err := omwjson.Load[Checkpoint](checkpointPath(dir, a.Name, tag))
	if err != nil {
		return err
	}
	return a.Policy.Parameters().Set(c.Params)
}
