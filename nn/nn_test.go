package nn_test

import (
	"math"
	"testing"

	orand "github.com/sw965/omw/math/rand"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/sw965/ladle/blas32/vector"
	"github.com/sw965/ladle/nn"
)

func TestSoftmax(t *testing.T) {
	x := vector.New(1.0, 2.0, 3.0, -1.0)
	y := nn.Softmax(x)

	sum := float32(0.0)
	for _, v := range y.Data {
		if v <= 0.0 || v >= 1.0 {
			t.Errorf("y=%v", y.Data)
		}
		sum += v
	}
	if math.Abs(float64(sum)-1.0) > 1e-5 {
		t.Errorf("sum=%v", sum)
	}

	// 定数シフトに不変。
	shifted := vector.New(1001.0, 1002.0, 1003.0, 999.0)
	ys := nn.Softmax(shifted)
	for i := range y.Data {
		if math.Abs(float64(y.Data[i]-ys.Data[i])) > 1e-5 {
			t.Errorf("シフト不変でない: %v != %v", y.Data[i], ys.Data[i])
		}
	}
}

func TestSoftmaxCrossEntropyDerivative(t *testing.T) {
	weights := vector.New(0.5, 2.0, 1.0, 0.25)
	ce := nn.NewSoftmaxCrossEntropy(weights)
	logits := vector.New(0.3, -0.8, 1.2, 0.0)
	target := 1

	grad, err := ce.Derivative(logits, target)
	if err != nil {
		panic(err)
	}

	h := float32(1e-3)
	for i := range logits.Data {
		orig := logits.Data[i]
		logits.Data[i] = orig + h
		lossPlus, err := ce.Loss(logits, target)
		if err != nil {
			panic(err)
		}
		logits.Data[i] = orig - h
		lossMinus, err := ce.Loss(logits, target)
		if err != nil {
			panic(err)
		}
		logits.Data[i] = orig

		numeric := float64(lossPlus-lossMinus) / float64(2*h)
		if math.Abs(numeric-float64(grad.Data[i])) > 1e-3 {
			t.Errorf("dx[%d]: 解析的=%v 数値=%v", i, grad.Data[i], numeric)
		}
	}

	// 範囲外のラベルはエラー。
	if _, err := ce.Loss(logits, 4); err == nil {
		t.Errorf("範囲外のラベルがエラーにならなかった")
	}
}

func TestAffineGrad(t *testing.T) {
	rng := orand.NewMt19937()
	xn, yn := 5, 3
	param := nn.NewAffineParameter(xn, yn, rng)

	x := vector.NewZeros(xn)
	for i := range x.Data {
		x.Data[i] = rng.Float32() - 0.5
	}
	chain := vector.NewZeros(yn)
	for i := range chain.Data {
		chain.Data[i] = rng.Float32() - 0.5
	}

	// loss = chain・y とすると dloss/dy = chain。
	lossFunc := func() float32 {
		y, _, err := nn.AffineForward(x, &param)
		if err != nil {
			panic(err)
		}
		return blas32.Dot(chain, y)
	}

	_, backward, err := nn.AffineForward(x, &param)
	if err != nil {
		panic(err)
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
			if math.Abs(numeric-float64(analytic[i])) > 1e-2 {
				t.Errorf("%s[%d]: 解析的=%v 数値=%v", name, i, analytic[i], numeric)
			}
		}
	}

	checkNumeric("dw", param.Weight.Data, grad.Weight.Data)
	checkNumeric("db", param.Bias.Data, grad.Bias.Data)
	checkNumeric("dx", x.Data, dx.Data)
}

func TestForwardsPropagate(t *testing.T) {
	rng := orand.NewMt19937()
	forwards := nn.Forwards{
		nn.AffineForward,
		nn.NewLeakyReLUForward(0.01),
		nn.AffineForward,
	}
	params := nn.Parameters{
		nn.NewAffineParameter(4, 8, rng),
		nn.NewEmptyParameter(),
		nn.NewAffineParameter(8, 2, rng),
	}

	x := vector.New(0.5, -0.3, 0.1, 0.9)
	y, backwards, err := forwards.Propagate(x, params)
	if err != nil {
		panic(err)
	}
	if y.N != 2 {
		t.Errorf("y.N=%d", y.N)
	}

	chain := vector.New(1.0, -1.0)
	dx, grads, err := backwards.Propagate(chain)
	if err != nil {
		panic(err)
	}
	if dx.N != 4 {
		t.Errorf("dx.N=%d", dx.N)
	}
	if len(grads) != len(params) {
		t.Errorf("len(grads)=%d", len(grads))
	}
	// 活性化層の勾配は空。
	if grads[1].Weight.Rows != 0 || grads[1].Bias.N != 0 {
		t.Errorf("活性化層に勾配が入っている")
	}
}

func TestAdamConverges(t *testing.T) {
	rng := orand.NewMt19937()
	params := nn.Parameters{nn.NewAffineParameter(3, 2, rng)}
	target := params.Clone()
	for i := range target[0].Weight.Data {
		target[0].Weight.Data[i] = float32(i) * 0.1
	}
	for i := range target[0].Bias.Data {
		target[0].Bias.Data[i] = -float32(i) * 0.2
	}

	adam := nn.NewAdam(params, 0.01)

	// loss = 0.5*||p - target||^2 の勾配は p - target。
	for iter := 0; iter < 2000; iter++ {
		grads := params.NewGradsZerosLike()
		for i := range params[0].Weight.Data {
			grads[0].Weight.Data[i] = params[0].Weight.Data[i] - target[0].Weight.Data[i]
		}
		for i := range params[0].Bias.Data {
			grads[0].Bias.Data[i] = params[0].Bias.Data[i] - target[0].Bias.Data[i]
		}
		if err := adam.Update(params, grads); err != nil {
			panic(err)
		}
	}

	for i := range params[0].Weight.Data {
		diff := math.Abs(float64(params[0].Weight.Data[i] - target[0].Weight.Data[i]))
		if diff > 1e-2 {
			t.Errorf("weight[%d] が収束しない: diff=%v", i, diff)
		}
	}
	for i := range params[0].Bias.Data {
		diff := math.Abs(float64(params[0].Bias.Data[i] - target[0].Bias.Data[i]))
		if diff > 1e-2 {
			t.Errorf("bias[%d] が収束しない: diff=%v", i, diff)
		}
	}
}

func TestParametersSetShapeMismatch(t *testing.T) {
	rng := orand.NewMt19937()
	a := nn.Parameters{nn.NewAffineParameter(3, 2, rng)}
	b := nn.Parameters{nn.NewAffineParameter(4, 2, rng)}
	if err := a.Set(b); err == nil {
		t.Errorf("形状違いのSetがエラーにならなかった")
	}
}
