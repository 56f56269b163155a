package tensor2d_test

import (
	"math"
	"testing"

	orand "github.com/sw965/omw/math/rand"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/sw965/ladle/blas32/tensor/2d"
	"github.com/sw965/ladle/blas32/tensor/3d"
)

func TestSum0(t *testing.T) {
	gen := blas32.General{
		Rows:   3,
		Cols:   2,
		Stride: 2,
		Data: []float32{
			1.0, 2.0,
			3.0, 4.0,
			5.0, 6.0,
		},
	}
	sums := tensor2d.Sum0(gen)
	if sums.Data[0] != 9.0 || sums.Data[1] != 12.0 {
		t.Errorf("sums=%v", sums.Data)
	}
}

// ⟨ToCol(x), c⟩ == ⟨x, Col2Im(c)⟩ が成り立てば、Col2ImはToColの随伴になっている。
func TestCol2ImAdjoint(t *testing.T) {
	rng := orand.NewMt19937()
	img := tensor3d.NewZeros(2, 5, 4)
	for i := range img.Data {
		img.Data[i] = rng.Float32() - 0.5
	}

	fRows, fCols := 3, 3
	col := img.ToCol(fRows, fCols)

	c := tensor2d.NewZeros(col.Rows, col.Cols)
	for i := range c.Data {
		c.Data[i] = rng.Float32() - 0.5
	}

	lhs := blas32.Dot(tensor2d.ToVector(col), tensor2d.ToVector(c))

	recon := tensor2d.Col2Im(c, img, fRows, fCols)
	rhs := blas32.Dot(img.ToVector(), recon.ToVector())

	if math.Abs(float64(lhs-rhs)) > 1e-3 {
		t.Errorf("lhs=%v rhs=%v", lhs, rhs)
	}
}

func TestNewHe(t *testing.T) {
	rng := orand.NewMt19937()
	gen := tensor2d.NewHe(100, 50, rng)

	var sum float64
	for _, v := range gen.Data {
		sum += float64(v)
	}
	mean := sum / float64(len(gen.Data))
	if math.Abs(mean) > 0.01 {
		t.Errorf("mean=%v", mean)
	}
}
