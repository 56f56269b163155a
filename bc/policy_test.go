package bc_test

import (
	"math"
	"math/rand"
	"testing"

	orand "github.com/sw965/omw/math/rand"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/sw965/ladle/bc"
	"github.com/sw965/ladle/blas32/tensor/3d"
	"github.com/sw965/ladle/blas32/vector"
	"github.com/sw965/ladle/nn"
)

func randomObs(cfg bc.Config, rng *rand.Rand) bc.Observation {
	obs := bc.Observation{}
	if cfg.VisualShape[0] > 0 {
		vis := tensor3d.NewZeros(cfg.VisualShape[0], cfg.VisualShape[1], cfg.VisualShape[2])
		for i := range vis.Data {
			vis.Data[i] = rng.Float32()
		}
		obs.Visual = vis
	}
	agent := vector.NewZeros(cfg.AgentObsDim)
	for i := range agent.Data {
		agent.Data[i] = rng.Float32()
	}
	obs.Agent = agent
	if cfg.UseSubtasks {
		obs.Subtask = vector.NewOneHot(cfg.NumSubtasks, 0)
	}
	return obs
}

// 解析的勾配を中心差分の数値微分と突き合わせる。
func checkGrad(t *testing.T, cfg bc.Config, tol float64) {
	rng := orand.NewMt19937()
	policy, err := bc.NewPolicy(cfg, rng)
	if err != nil {
		panic(err)
	}

	obs := randomObs(cfg, rng)
	actionCE := nn.NewSoftmaxCrossEntropy(blas32.Vector{})
	subtaskCE := nn.NewSoftmaxCrossEntropy(blas32.Vector{})
	actionTarget := 2
	subtaskTarget := 1

	lossFunc := func() float32 {
		actionLogits, subtaskLogits, err := policy.Forward(&obs)
		if err != nil {
			panic(err)
		}
		loss, err := actionCE.Loss(actionLogits, actionTarget)
		if err != nil {
			panic(err)
		}
		if cfg.UseSubtasks {
			subLoss, err := subtaskCE.Loss(subtaskLogits, subtaskTarget)
			if err != nil {
				panic(err)
			}
			loss += subLoss
		}
		return loss
	}

	grads, err := policy.ForwardBackward(&obs, func(actionLogits, subtaskLogits blas32.Vector) (bc.Chains, error) {
		chains := bc.Chains{}
		var err error
		chains.Action, err = actionCE.Derivative(actionLogits, actionTarget)
		if err != nil {
			return bc.Chains{}, err
		}
		if cfg.UseSubtasks {
			chains.Subtask, err = subtaskCE.Derivative(subtaskLogits, subtaskTarget)
			if err != nil {
				return bc.Chains{}, err
			}
		}
		return chains, nil
	})
	if err != nil {
		panic(err)
	}

	params := policy.Parameters()
	h := float32(1e-2)
	for i := range params {
		for _, pair := range [2]struct {
			data []float32
			grad []float32
		}{
			{params[i].Weight.Data, grads[i].Weight.Data},
			{params[i].Bias.Data, grads[i].Bias.Data},
		} {
			if len(pair.data) == 0 {
				continue
			}
			// 全要素は重いので先頭・中間・末尾だけ確かめる。
			for _, j := range []int{0, len(pair.data) / 2, len(pair.data) - 1} {
				orig := pair.data[j]
				pair.data[j] = orig + h
				lossPlus := lossFunc()
				pair.data[j] = orig - h
				lossMinus := lossFunc()
				pair.data[j] = orig

				numeric := float64(lossPlus-lossMinus) / float64(2*h)
				analytic := float64(pair.grad[j])
				diff := math.Abs(numeric - analytic)
				scale := math.Max(math.Abs(numeric)+math.Abs(analytic), 1.0)
				if diff/scale > tol {
					t.Errorf("パラメーター%d[%d]: 解析的=%v 数値=%v", i, j, analytic, numeric)
				}
			}
		}
	}
}

func TestGradMLPOnly(t *testing.T) {
	cfg := bc.Config{
		VisualShape: [3]int{0, 0, 0},
		AgentObsDim: 7,
		HiddenDim:   16,
		NumActions:  6,
		NumSubtasks: 12,
		UseSubtasks: true,
	}
	checkGrad(t, cfg, 2e-2)
}

func TestGradWithEncoder(t *testing.T) {
	cfg := bc.Config{
		VisualShape: [3]int{4, 4, 5},
		AgentObsDim: 7,
		HiddenDim:   16,
		NumActions:  6,
		NumSubtasks: 12,
		UseSubtasks: true,
	}
	checkGrad(t, cfg, 5e-2)
}

func TestSelectAction(t *testing.T) {
	rng := orand.NewMt19937()
	logits := vector.New(0.1, -0.5, 2.3, 0.0, 1.1, -2.0)

	// argmaxは決定的。
	for i := 0; i < 10; i++ {
		if got := bc.SelectAction(logits, false, rng); got != 2 {
			t.Errorf("got=%d", got)
		}
	}

	// サンプリングは常に範囲内。
	for i := 0; i < 100; i++ {
		got := bc.SelectAction(logits, true, rng)
		if got < 0 || got >= logits.N {
			t.Errorf("範囲外の行動 %d", got)
		}
	}
}

func TestPolicyRequiresInput(t *testing.T) {
	rng := orand.NewMt19937()
	cfg := bc.Config{
		VisualShape: [3]int{0, 0, 0},
		AgentObsDim: 0,
		HiddenDim:   8,
		NumActions:  6,
		UseSubtasks: false,
	}
	if _, err := bc.NewPolicy(cfg, rng); err == nil {
		t.Errorf("入力モダリティ無しでもエラーにならなかった")
	}
}
