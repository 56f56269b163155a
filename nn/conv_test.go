package nn_test

import (
	"math"
	"testing"

	orand "github.com/sw965/omw/math/rand"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/sw965/ladle/blas32/tensor/3d"
	"github.com/sw965/ladle/nn"
)

func TestConvSamePadShape(t *testing.T) {
	rng := orand.NewMt19937()
	x := tensor3d.NewZeros(3, 4, 5)
	param := nn.NewConvParameter(3, 8, 3, 3, rng)

	conv := nn.NewConvForward(3, 3, true)
	y, _, err := conv(x, &param)
	if err != nil {
		panic(err)
	}
	if y.Channels != 8 || y.Rows != 4 || y.Cols != 5 {
		t.Errorf("y shape = (%d, %d, %d)", y.Channels, y.Rows, y.Cols)
	}

	// フィルター形状の不一致は構成エラー。
	bad := nn.NewConvParameter(2, 8, 3, 3, rng)
	if _, _, err := conv(x, &bad); err == nil {
		t.Errorf("フィルター形状の不一致がエラーにならなかった")
	}
}

// loss = chain・y のランダム射影で畳み込みの逆伝播を数値微分と突き合わせる。
func TestConvGrad(t *testing.T) {
	rng := orand.NewMt19937()
	x := tensor3d.NewZeros(2, 4, 4)
	for i := range x.Data {
		x.Data[i] = rng.Float32() - 0.5
	}
	param := nn.NewConvParameter(2, 3, 3, 3, rng)
	conv := nn.NewConvForward(3, 3, true)

	y, backward, err := conv(x, &param)
	if err != nil {
		panic(err)
	}

	chain := tensor3d.NewZerosLike(y)
	for i := range chain.Data {
		chain.Data[i] = rng.Float32() - 0.5
	}

	lossFunc := func() float32 {
		y, _, err := conv(x, &param)
		if err != nil {
			panic(err)
		}
		return blas32.Dot(chain.ToVector(), y.ToVector())
	}

	dx, grad, err := backward(chain)
	if err != nil {
		panic(err)
	}

	h := float32(1e-2)
	checkNumeric := func(name string, data []float32, analytic []float32) {
		for i := range data {
			orig := data[i]
			data[i] = orig + h
			lossPlus := lossFunc()
			data[i] = orig - h
			lossMinus := lossFunc()
			data[i] = orig

			numeric := float64(lossPlus-lossMinus) / float64(2*h)
			diff := math.Abs(numeric - float64(analytic[i]))
			if diff > 2e-2 {
				t.Errorf("%s[%d]: 解析的=%v 数値=%v", name, i, analytic[i], numeric)
			}
		}
	}

	checkNumeric("dw", param.Weight.Data, grad.Weight.Data)
	checkNumeric("db", param.Bias.Data, grad.Bias.Data)
	checkNumeric("dx", x.Data, dx.Data)
}

func TestForwards3DPropagate(t *testing.T) {
	rng := orand.NewMt19937()
	x := tensor3d.NewZeros(2, 3, 3)
	for i := range x.Data {
		x.Data[i] = rng.Float32() - 0.5
	}

	forwards := nn.Forwards3D{
		nn.NewConvForward(3, 3, true),
		nn.NewLeakyReLUForward3D(0.01),
	}
	params := nn.Parameters{
		nn.NewConvParameter(2, 4, 3, 3, rng),
		nn.NewEmptyParameter(),
	}

	y, backwards, err := forwards.Propagate(x, params)
	if err != nil {
		panic(err)
	}
	if y.Channels != 4 || y.Rows != 3 || y.Cols != 3 {
		t.Errorf("y shape = (%d, %d, %d)", y.Channels, y.Rows, y.Cols)
	}

	dx, grads, err := backwards.Propagate(tensor3d.NewZerosLike(y))
	if err != nil {
		panic(err)
	}
	if dx.Channels != 2 || dx.Rows != 3 || dx.Cols != 3 {
		t.Errorf("dx shape = (%d, %d, %d)", dx.Channels, dx.Rows, dx.Cols)
	}
	if len(grads) != 2 {
		t.Errorf("len(grads)=%d", len(grads))
	}
}
