package vector

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"slices"
)

func NewZeros(n int) blas32.Vector {
	return blas32.Vector{
		N:    n,
		Inc:  1,
		Data: make([]float32, n),
	}
}

func NewZerosLike(vec blas32.Vector) blas32.Vector {
	return NewZeros(vec.N)
}

func New(data ...float32) blas32.Vector {
	return blas32.Vector{
		N:    len(data),
		Inc:  1,
		Data: data,
	}
}

func NewOneHot(n, idx int) blas32.Vector {
	vec := NewZeros(n)
	vec.Data[idx] = 1.0
	return vec
}

func Clone(vec blas32.Vector) blas32.Vector {
	return blas32.Vector{
		N:    vec.N,
		Inc:  vec.Inc,
		Data: slices.Clone(vec.Data),
	}
}

func Concat(vecs ...blas32.Vector) blas32.Vector {
	n := 0
	for _, vec := range vecs {
		n += vec.N
	}

	data := make([]float32, 0, n)
	for _, vec := range vecs {
		data = append(data, vec.Data...)
	}

	return blas32.Vector{
		N:    n,
		Inc:  1,
		Data: data,
	}
}

func Equal(a, b blas32.Vector) bool {
	return a.N == b.N && slices.Equal(a.Data, b.Data)
}

func Affine(x blas32.Vector, w blas32.General, b blas32.Vector) blas32.Vector {
	yn := len(b.Data)
	y := blas32.Vector{N: yn, Inc: 1, Data: make([]float32, yn)}
	blas32.Copy(b, y)
	blas32.Gemv(blas.Trans, 1.0, w, x, 1.0, y)
	return y
}
