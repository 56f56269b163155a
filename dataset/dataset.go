package dataset

import (
	"fmt"

	"github.com/sw965/omw/encoding/gobx"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/sw965/ladle/blas32/tensor/3d"
	"github.com/sw965/ladle/blas32/vector"
	"github.com/sw965/ladle/kitchen"
)

// PlayerSteps は片方のプレイヤーの時系列データ。全スライスは同じ長さ。
type PlayerSteps struct {
	Visuals  []tensor3d.General
	Agents   []blas32.Vector
	Actions  []kitchen.Action
	Subtasks []kitchen.Subtask

	// NextSubtasks はインタラクト直後に切り替わるサブタスク。
	// インタラクト以外の時刻では現在のサブタスクと一致する。
	NextSubtasks []kitchen.Subtask
}

func (ps *PlayerSteps) append(vis tensor3d.General, agent blas32.Vector, a kitchen.Action, sub kitchen.Subtask) {
	ps.Visuals = append(ps.Visuals, vis)
	ps.Agents = append(ps.Agents, agent)
	ps.Actions = append(ps.Actions, a)
	ps.Subtasks = append(ps.Subtasks, sub)
}

type Trajectories struct {
	LayoutName string
	Horizon    int
	Players    [2]PlayerSteps
}

func (ts *Trajectories) N() int {
	return len(ts.Players[0].Actions)
}

/*
Collect はルールベース調理人同士の自己対戦からデモンストレーション軌跡を集める。
各時刻のサブタスクラベルは調理人が遂行中のサブゴール。
次サブタスクラベルは、インタラクト行動の時刻のみ次の時刻のサブゴールになる。
*/
func Collect(env *kitchen.Env, cooks [2]*kitchen.GreedyCook, episodes int) *Trajectories {
	ts := &Trajectories{
		LayoutName: env.Layout.Name,
		Horizon:    env.Horizon,
	}

	for ep := 0; ep < episodes; ep++ {
		env.Reset()
		for _, cook := range cooks {
			cook.Reset()
		}

		epStart := ts.N()
		for !env.Done() {
			joint := kitchen.JointAction{}
			for i, cook := range cooks {
				vis, agent := env.Obs(i)
				joint[i] = cook.Act(env)
				ts.Players[i].append(vis, agent, joint[i], cook.Goal())
			}
			env.Step(joint)
		}

		epEnd := ts.N()
		for i := range ts.Players {
			ps := &ts.Players[i]
			for t := epStart; t < epEnd; t++ {
				next := ps.Subtasks[t]
				if ps.Actions[t] == kitchen.ActionInteract && t+1 < epEnd {
					next = ps.Subtasks[t+1]
				}
				ps.NextSubtasks = append(ps.NextSubtasks, next)
			}
		}
	}
	return ts
}

// ActionWeights は逆頻度による行動のクラス重み。平均が1になるように正規化する。
func (ts *Trajectories) ActionWeights() blas32.Vector {
	counts := make([]int, kitchen.NumActions)
	for i := range ts.Players {
		for _, a := range ts.Players[i].Actions {
			counts[a]++
		}
	}
	return inverseFrequency(counts)
}

// SubtaskWeights は逆頻度によるサブタスクのクラス重み。
func (ts *Trajectories) SubtaskWeights() blas32.Vector {
	counts := make([]int, kitchen.NumSubtasks)
	for i := range ts.Players {
		for _, s := range ts.Players[i].Subtasks {
			counts[s]++
		}
	}
	return inverseFrequency(counts)
}

func inverseFrequency(counts []int) blas32.Vector {
	w := vector.NewZeros(len(counts))
	sum := float32(0.0)
	for i, c := range counts {
		// 出現しないクラスの重みは発散させない。
		if c == 0 {
			c = 1
		}
		w.Data[i] = 1.0 / float32(c)
		sum += w.Data[i]
	}
	mean := sum / float32(len(counts))
	for i := range w.Data {
		w.Data[i] /= mean
	}
	return w
}

func Save(ts *Trajectories, path string) error {
	return gobx.Save(ts, path)
}

func Load(path string) (*Trajectories, error) {
	ts, err := gobx.Load[Trajectories](path)
	if err != nil {
		return nil, err
	}
	for i := range ts.Players {
		ps := &ts.Players[i]
		n := len(ps.Actions)
		if len(ps.Visuals) != n || len(ps.Agents) != n || len(ps.Subtasks) != n || len(ps.NextSubtasks) != n {
			return nil, fmt.Errorf("軌跡データの長さが揃っていません。")
		}
	}
	return &ts, nil
}
