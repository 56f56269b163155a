package bc

import (
	"fmt"
	"math/rand"

	oslices "github.com/sw965/omw/slices"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/sw965/ladle/blas32/tensor/3d"
	"github.com/sw965/ladle/blas32/vector"
	"github.com/sw965/ladle/kitchen"
)

/*
Agent は方策にサブタスク信念の状態管理を被せたラッパー。
信念はエピソード開始時とインタラクト行動の直後にのみ更新される。
移動中に信念が揺れると一貫性の無い行動になる為、それ以外の時刻では固定する。
*/
type Agent struct {
	Name   string
	PIdx   int
	Policy *Policy

	currSubtask kitchen.Subtask
	firstStep   bool
}

func NewAgent(pIdx int, policy *Policy) *Agent {
	a := &Agent{
		Name:   fmt.Sprintf("il_p%d", pIdx+1),
		PIdx:   pIdx,
		Policy: policy,
	}
	a.Reset()
	return a
}

func (a *Agent) Reset() {
	a.currSubtask = kitchen.SubtaskUnknown
	a.firstStep = true
}

func (a *Agent) SubtaskBelief() kitchen.Subtask {
	return a.currSubtask
}

// Observation は現在の信念をone-hotで注入した方策入力を組み立てる。
func (a *Agent) Observation(vis tensor3d.General, agentObs blas32.Vector) Observation {
	obs := Observation{
		Visual: vis,
		Agent:  agentObs,
	}
	if a.Policy.Config.UseSubtasks {
		obs.Subtask = vector.NewOneHot(a.Policy.Config.NumSubtasks, int(a.currSubtask))
	}
	return obs
}

/*
Predict は行動を選択し、必要なら信念を遷移させる。
インタラクト行動を選んだ時(とエピソードの最初の1手)だけ、
サブタスクヘッドのargmaxを新しい信念として採用する。
*/
func (a *Agent) Predict(vis tensor3d.General, agentObs blas32.Vector, sample bool, rng *rand.Rand) (kitchen.Action, error) {
	obs := a.Observation(vis, agentObs)
	actionLogits, subtaskLogits, err := a.Policy.Forward(&obs)
	if err != nil {
		return kitchen.ActionStay, err
	}

	action := kitchen.Action(SelectAction(actionLogits, sample, rng))

	if a.Policy.Config.UseSubtasks && (action == kitchen.ActionInteract || a.firstStep) {
		a.currSubtask = kitchen.Subtask(oslices.MaxIndices(subtaskLogits.Data)[0])
	}
	a.firstStep = false

	return action, nil
}
