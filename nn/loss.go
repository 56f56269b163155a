package nn

import (
	"fmt"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/blas/blas32"
	omath "github.com/sw965/omw/math"
)

func Softmax(x blas32.Vector) blas32.Vector {
	xData := x.Data
	maxX := omath.Max(xData...) // オーバーフロー対策
	expX := make([]float32, x.N)
	sumExpX := float32(0.0)
	for i, e := range xData {
		expX[i] = math32.Exp(e - maxX)
		sumExpX += expX[i]
	}

	yData := make([]float32, x.N)
	for i := range expX {
		yData[i] = expX[i] / sumExpX
	}

	return blas32.Vector{
		N:    x.N,
		Inc:  1,
		Data: yData,
	}
}

/*
SoftmaxCrossEntropy はクラス重み付きの多クラス分類損失。
ロジットを受け取り、内部でソフトマックスを適用する。
重みが空の場合は全クラス1.0として扱う。
*/
type SoftmaxCrossEntropy struct {
	Weights blas32.Vector
}

func NewSoftmaxCrossEntropy(weights blas32.Vector) SoftmaxCrossEntropy {
	return SoftmaxCrossEntropy{Weights: weights}
}

func (ce *SoftmaxCrossEntropy) weightAt(idx int) float32 {
	if ce.Weights.N == 0 {
		return 1.0
	}
	return ce.Weights.Data[idx]
}

func (ce *SoftmaxCrossEntropy) Loss(logits blas32.Vector, target int) (float32, error) {
	if target < 0 || target >= logits.N {
		return 0.0, fmt.Errorf("ラベル %d がロジットの次元 %d を超えています。", target, logits.N)
	}
	y := Softmax(logits)
	e := float32(0.0001)
	p := omath.Max(y.Data[target], e)
	return -ce.weightAt(target) * math32.Log(p), nil
}

// Derivative はロジットに対する勾配 w_t * (softmax(x) - onehot(t)) を返す。
func (ce *SoftmaxCrossEntropy) Derivative(logits blas32.Vector, target int) (blas32.Vector, error) {
	if target < 0 || target >= logits.N {
		return blas32.Vector{}, fmt.Errorf("ラベル %d がロジットの次元 %d を超えています。", target, logits.N)
	}
	dx := Softmax(logits)
	dx.Data[target] -= 1.0
	blas32.Scal(ce.weightAt(target), dx)
	return dx, nil
}
