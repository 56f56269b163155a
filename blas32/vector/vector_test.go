package vector_test

import (
	"testing"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/sw965/ladle/blas32/vector"
)

func TestNewOneHot(t *testing.T) {
	v := vector.NewOneHot(5, 2)
	want := vector.New(0.0, 0.0, 1.0, 0.0, 0.0)
	if !vector.Equal(v, want) {
		t.Errorf("v=%v", v.Data)
	}
}

func TestConcat(t *testing.T) {
	a := vector.New(1.0, 2.0)
	b := vector.New(3.0)
	c := vector.New(4.0, 5.0, 6.0)

	got := vector.Concat(a, b, c)
	want := vector.New(1.0, 2.0, 3.0, 4.0, 5.0, 6.0)
	if !vector.Equal(got, want) {
		t.Errorf("got=%v", got.Data)
	}

	// 連結結果は元のベクトルとデータを共有しない。
	got.Data[0] = 100.0
	if a.Data[0] != 1.0 {
		t.Errorf("元のベクトルが書き換わった")
	}
}

func TestAffine(t *testing.T) {
	w := blas32.General{
		Rows:   2,
		Cols:   3,
		Stride: 3,
		Data: []float32{
			1.0, 2.0, 3.0,
			4.0, 5.0, 6.0,
		},
	}
	x := vector.New(1.0, -1.0)
	b := vector.New(0.5, 0.0, -0.5)

	// y = Wᵀx + b
	got := vector.Affine(x, w, b)
	want := vector.New(1.0-4.0+0.5, 2.0-5.0, 3.0-6.0-0.5)
	if !vector.Equal(got, want) {
		t.Errorf("got=%v want=%v", got.Data, want.Data)
	}
}
