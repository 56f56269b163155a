package nn

import (
	"fmt"

	"github.com/chewxy/math32"
)

type Adam struct {
	LearningRate float32
	Beta1        float32
	Beta2        float32
	Epsilon      float32

	iter int
	m    GradBuffers
	v    GradBuffers
}

// NewAdam の内部状態(1st/2nd momentバッファ)は引数のParametersと同じ形状で0初期化される。
func NewAdam(params Parameters, lr float32) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
		iter:         0,
		m:            params.NewGradsZerosLike(),
		v:            params.NewGradsZerosLike(),
	}
}

// Update はAdam則に従ってparamsをインプレースで更新する。
func (a *Adam) Update(params Parameters, grads GradBuffers) error {
	if len(params) != len(grads) {
		return fmt.Errorf("Adam: parameters/grads size mismatch")
	}

	if len(a.m) == 0 {
		a.m = params.NewGradsZerosLike()
		a.v = params.NewGradsZerosLike()
	}

	a.iter++
	beta1, beta2 := a.Beta1, a.Beta2
	lrt := a.LearningRate *
		math32.Sqrt(1-math32.Pow(beta2, float32(a.iter))) /
		(1 - math32.Pow(beta1, float32(a.iter)))

	for i := range grads {
		for j, g := range grads[i].Weight.Data {
			a.m[i].Weight.Data[j] += (1 - beta1) * (g - a.m[i].Weight.Data[j])
			a.v[i].Weight.Data[j] += (1 - beta2) * (g*g - a.v[i].Weight.Data[j])

			update := lrt * a.m[i].Weight.Data[j] /
				(math32.Sqrt(a.v[i].Weight.Data[j]) + a.Epsilon)
			params[i].Weight.Data[j] -= update
		}

		for j, g := range grads[i].Bias.Data {
			a.m[i].Bias.Data[j] += (1 - beta1) * (g - a.m[i].Bias.Data[j])
			a.v[i].Bias.Data[j] += (1 - beta2) * (g*g - a.v[i].Bias.Data[j])

			update := lrt * a.m[i].Bias.Data[j] /
				(math32.Sqrt(a.v[i].Bias.Data[j]) + a.Epsilon)
			params[i].Bias.Data[j] -= update
		}
	}
	return nil
}
