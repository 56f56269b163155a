package bc

import (
	"fmt"
	"math/rand"

	omwrand "github.com/sw965/omw/math/rand"
	oslices "github.com/sw965/omw/slices"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/sw965/ladle/blas32/tensor/3d"
	"github.com/sw965/ladle/blas32/vector"
	"github.com/sw965/ladle/nn"
)

const (
	encoderChannels = 16
	leakyAlpha      = 0.01
)

// Observation は方策への入力。Subtaskは現サブタスクのone-hot信念で、
// UseSubtasksが偽の構成では空のまま渡す。
type Observation struct {
	Visual  tensor3d.General
	Agent   blas32.Vector
	Subtask blas32.Vector
}

type Config struct {
	VisualShape [3]int
	AgentObsDim int
	HiddenDim   int
	NumActions  int
	NumSubtasks int
	UseSubtasks bool
}

/*
Policy は視覚テンソルと特徴ベクトルから行動ロジットを出力するネットワーク。

	視覚 → conv → LeakyReLU → conv → LeakyReLU → flatten ┐
	特徴ベクトル ─────────────────────────────────────────┼ concat → affine×2 → hidden
	サブタスク信念(one-hot) ──────────────────────────────┘            │
	                                                   hidden → 行動ヘッド
	                                                   hidden → サブタスクヘッド
*/
type Policy struct {
	Config Config

	encForwards   nn.Forwards3D
	encParams     nn.Parameters
	trunkForwards nn.Forwards
	trunkParams   nn.Parameters
	actionHead    nn.Parameter
	subtaskHead   nn.Parameter

	cnnOutDim int
	concatDim int
}

func NewPolicy(cfg Config, rng *rand.Rand) (*Policy, error) {
	if cfg.NumActions <= 0 {
		return nil, fmt.Errorf("行動数が%dです。1以上でなければなりません。", cfg.NumActions)
	}
	if cfg.HiddenDim <= 0 {
		return nil, fmt.Errorf("隠れ層の次元が%dです。1以上でなければなりません。", cfg.HiddenDim)
	}

	chs, rows, cols := cfg.VisualShape[0], cfg.VisualShape[1], cfg.VisualShape[2]
	useVisual := chs > 0

	p := &Policy{Config: cfg}

	if useVisual {
		p.encForwards = nn.Forwards3D{
			nn.NewConvForward(3, 3, true),
			nn.NewLeakyReLUForward3D(leakyAlpha),
			nn.NewConvForward(3, 3, true),
			nn.NewLeakyReLUForward3D(leakyAlpha),
		}
		p.encParams = nn.Parameters{
			nn.NewConvParameter(chs, encoderChannels, 3, 3, rng),
			nn.NewEmptyParameter(),
			nn.NewConvParameter(encoderChannels, encoderChannels, 3, 3, rng),
			nn.NewEmptyParameter(),
		}
		p.cnnOutDim = encoderChannels * rows * cols
	}

	p.concatDim = p.cnnOutDim + cfg.AgentObsDim
	if cfg.UseSubtasks {
		p.concatDim += cfg.NumSubtasks
	}
	if p.concatDim <= 0 {
		return nil, fmt.Errorf("入力モダリティが1つもありません。")
	}

	p.trunkForwards = nn.Forwards{
		nn.AffineForward,
		nn.NewLeakyReLUForward(leakyAlpha),
		nn.AffineForward,
		nn.NewLeakyReLUForward(leakyAlpha),
	}
	p.trunkParams = nn.Parameters{
		nn.NewAffineParameter(p.concatDim, cfg.HiddenDim, rng),
		nn.NewEmptyParameter(),
		nn.NewAffineParameter(cfg.HiddenDim, cfg.HiddenDim, rng),
		nn.NewEmptyParameter(),
	}

	p.actionHead = nn.NewAffineParameter(cfg.HiddenDim, cfg.NumActions, rng)
	if cfg.UseSubtasks {
		p.subtaskHead = nn.NewAffineParameter(cfg.HiddenDim, cfg.NumSubtasks, rng)
	} else {
		p.subtaskHead = nn.NewEmptyParameter()
	}
	return p, nil
}

/*
Parameters は全パラメーターを [エンコーダー..., 幹..., 行動ヘッド, サブタスクヘッド]
の順で平坦に返す。Dataスライスは共有される為、返り値への更新は方策に反映される。
*/
func (p *Policy) Parameters() nn.Parameters {
	params := nn.Parameters{}
	params = append(params, p.encParams...)
	params = append(params, p.trunkParams...)
	params = append(params, p.actionHead, p.subtaskHead)
	return params
}

func (p *Policy) concat(obs *Observation, encOut tensor3d.General) (blas32.Vector, error) {
	parts := []blas32.Vector{}
	if p.cnnOutDim > 0 {
		flat := encOut.ToVector()
		if flat.N != p.cnnOutDim {
			return blas32.Vector{}, fmt.Errorf("エンコーダー出力の次元が%dです。%dでなければなりません。", flat.N, p.cnnOutDim)
		}
		parts = append(parts, flat)
	}
	if p.Config.AgentObsDim > 0 {
		if obs.Agent.N != p.Config.AgentObsDim {
			return blas32.Vector{}, fmt.Errorf("特徴ベクトルの次元が%dです。%dでなければなりません。", obs.Agent.N, p.Config.AgentObsDim)
		}
		parts = append(parts, obs.Agent)
	}
	if p.Config.UseSubtasks {
		if obs.Subtask.N != p.Config.NumSubtasks {
			return blas32.Vector{}, fmt.Errorf("サブタスク信念の次元が%dです。%dでなければなりません。", obs.Subtask.N, p.Config.NumSubtasks)
		}
		parts = append(parts, obs.Subtask)
	}
	return vector.Concat(parts...), nil
}

func headLogits(hidden blas32.Vector, head *nn.Parameter) blas32.Vector {
	return vector.Affine(hidden, head.Weight, head.Bias)
}

// Forward は行動ロジットとサブタスクロジットを返す。
// UseSubtasksが偽ならサブタスクロジットは空。
func (p *Policy) Forward(obs *Observation) (blas32.Vector, blas32.Vector, error) {
	var encOut tensor3d.General
	if p.cnnOutDim > 0 {
		var err error
		encOut, _, err = p.encForwards.Propagate(obs.Visual, p.encParams)
		if err != nil {
			return blas32.Vector{}, blas32.Vector{}, err
		}
	}

	x, err := p.concat(obs, encOut)
	if err != nil {
		return blas32.Vector{}, blas32.Vector{}, err
	}

	hidden, _, err := p.trunkForwards.Propagate(x, p.trunkParams)
	if err != nil {
		return blas32.Vector{}, blas32.Vector{}, err
	}

	actionLogits := headLogits(hidden, &p.actionHead)
	subtaskLogits := blas32.Vector{}
	if p.Config.UseSubtasks {
		subtaskLogits = headLogits(hidden, &p.subtaskHead)
	}
	return actionLogits, subtaskLogits, nil
}

// Chains はヘッド毎の損失勾配(ロジットに対する微分)。
// Subtaskが空ならサブタスクヘッドへの勾配は流れない。
type Chains struct {
	Action  blas32.Vector
	Subtask blas32.Vector
}

type ChainFunc func(actionLogits, subtaskLogits blas32.Vector) (Chains, error)

/*
ForwardBackward は1サンプル分の順伝播と逆伝播をまとめて行う。
chainFnが各ヘッドのロジット勾配を返し、勾配はParameters()と同じ順で返る。
*/
func (p *Policy) ForwardBackward(obs *Observation, chainFn ChainFunc) (nn.GradBuffers, error) {
	var encOut tensor3d.General
	var encBackwards nn.Backwards3D
	if p.cnnOutDim > 0 {
		var err error
		encOut, encBackwards, err = p.encForwards.Propagate(obs.Visual, p.encParams)
		if err != nil {
			return nil, err
		}
	}

	x, err := p.concat(obs, encOut)
	if err != nil {
		return nil, err
	}

	hidden, trunkBackwards, err := p.trunkForwards.Propagate(x, p.trunkParams)
	if err != nil {
		return nil, err
	}

	actionLogits := headLogits(hidden, &p.actionHead)
	subtaskLogits := blas32.Vector{}
	if p.Config.UseSubtasks {
		subtaskLogits = headLogits(hidden, &p.subtaskHead)
	}

	chains, err := chainFn(actionLogits, subtaskLogits)
	if err != nil {
		return nil, err
	}
	if chains.Action.N != p.Config.NumActions {
		return nil, fmt.Errorf("行動ヘッドの勾配の次元が%dです。%dでなければなりません。", chains.Action.N, p.Config.NumActions)
	}

	// ヘッドの逆伝播。dHiddenは両ヘッドからの勾配の和。
	dHidden := vector.NewZeros(p.Config.HiddenDim)
	actionGrad := headBackward(hidden, &p.actionHead, chains.Action, dHidden)

	subtaskGrad := p.subtaskHead.NewGradZerosLike()
	if chains.Subtask.N != 0 {
		if !p.Config.UseSubtasks {
			return nil, fmt.Errorf("サブタスクヘッドが無いのに勾配が渡されました。")
		}
		subtaskGrad = headBackward(hidden, &p.subtaskHead, chains.Subtask, dHidden)
	}

	dConcat, trunkGrads, err := trunkBackwards.Propagate(dHidden)
	if err != nil {
		return nil, err
	}

	encGrads := p.encParams.NewGradsZerosLike()
	if p.cnnOutDim > 0 {
		dEncFlat := blas32.Vector{
			N:    p.cnnOutDim,
			Inc:  1,
			Data: dConcat.Data[:p.cnnOutDim],
		}
		dEncOut := encOut.FromVector(dEncFlat)
		_, encGrads, err = encBackwards.Propagate(dEncOut)
		if err != nil {
			return nil, err
		}
	}

	grads := nn.GradBuffers{}
	grads = append(grads, encGrads...)
	grads = append(grads, trunkGrads...)
	grads = append(grads, actionGrad, subtaskGrad)
	return grads, nil
}

func headBackward(hidden blas32.Vector, head *nn.Parameter, chain, dHidden blas32.Vector) nn.GradBuffer {
	blas32.Gemv(blas.NoTrans, 1.0, head.Weight, chain, 1.0, dHidden)

	dw := blas32.General{
		Rows:   head.Weight.Rows,
		Cols:   head.Weight.Cols,
		Stride: head.Weight.Cols,
		Data:   make([]float32, head.Weight.Rows*head.Weight.Cols),
	}
	blas32.Ger(1.0, hidden, chain, dw)

	db := vector.Clone(chain)
	return nn.GradBuffer{Weight: dw, Bias: db}
}

// SelectAction はsampleが真ならソフトマックス分布からサンプリングし、
// 偽なら最大ロジットの行動を返す。
func SelectAction(logits blas32.Vector, sample bool, rng *rand.Rand) int {
	if sample {
		y := nn.Softmax(logits)
		return omwrand.IntByWeight(y.Data, rng)
	}
	return oslices.MaxIndices(logits.Data)[0]
}
