package nn

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/sw965/ladle/blas32/tensor/2d"
	"github.com/sw965/ladle/blas32/tensor/3d"
)

type Forward3D func(tensor3d.General, *Parameter) (tensor3d.General, Backward3D, error)
type Forwards3D []Forward3D

func (fs Forwards3D) Propagate(x tensor3d.General, params Parameters) (tensor3d.General, Backwards3D, error) {
	var err error
	var backward Backward3D
	backwards := make(Backwards3D, len(fs))
	for i, f := range fs {
		x, backward, err = f(x, &params[i])
		if err != nil {
			return tensor3d.General{}, nil, err
		}
		backwards[i] = backward
	}
	y := x
	slices.Reverse(backwards)
	return y, backwards, nil
}

type Backward3D func(tensor3d.General) (tensor3d.General, GradBuffer, error)
type Backwards3D []Backward3D

func (bs Backwards3D) Propagate(chain tensor3d.General) (tensor3d.General, GradBuffers, error) {
	grads := make(GradBuffers, len(bs))
	var grad GradBuffer
	var err error
	for i, b := range bs {
		chain, grad, err = b(chain)
		if err != nil {
			return tensor3d.General{}, nil, err
		}
		grads[i] = grad
	}
	dx := chain
	slices.Reverse(grads)
	return dx, grads, nil
}

/*
NewConvForward はim2col方式の2次元畳み込み層。
フィルターは (inCh*fRows*fCols, outCh) の行列として保持する為、
Affine層と同じParameter/GradBufferで扱える。ストライドは1固定。
*/
func NewConvForward(fRows, fCols int, samePad bool) Forward3D {
	return func(x tensor3d.General, param *Parameter) (tensor3d.General, Backward3D, error) {
		inCh := x.Channels
		outCh := param.Weight.Cols
		fanIn := inCh * fRows * fCols
		if param.Weight.Rows != fanIn {
			return tensor3d.General{}, nil, fmt.Errorf("フィルターの形状が入力と一致しません。%d != %d", param.Weight.Rows, fanIn)
		}
		if param.Bias.N != outCh {
			return tensor3d.General{}, nil, fmt.Errorf("バイアスの形状が出力チャネルと一致しません。%d != %d", param.Bias.N, outCh)
		}

		padded := x
		if samePad {
			padded = x.SameZeroPadding2D(fRows, fCols)
		}

		outRows := padded.ConvOutputRows(fRows)
		outCols := padded.ConvOutputCols(fCols)

		col := padded.ToCol(fRows, fCols)

		// y2d[i][ch] = (col・W)[i][ch] + b[ch]
		y2d := tensor2d.NewZeros(col.Rows, outCh)
		for row := 0; row < y2d.Rows; row++ {
			base := row * y2d.Stride
			for ch := 0; ch < outCh; ch++ {
				y2d.Data[base+ch] = param.Bias.Data[ch]
			}
		}
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1.0, col, param.Weight, 1.0, y2d)

		y := tensor3d.NewZeros(outCh, outRows, outCols)
		for row := 0; row < outRows; row++ {
			for c := 0; c < outCols; c++ {
				base := (row*outCols + c) * y2d.Stride
				for ch := 0; ch < outCh; ch++ {
					y.Data[y.At(ch, row, c)] = y2d.Data[base+ch]
				}
			}
		}

		var backward Backward3D
		backward = func(chain tensor3d.General) (tensor3d.General, GradBuffer, error) {
			chain2d := tensor2d.NewZeros(outRows*outCols, outCh)
			for row := 0; row < outRows; row++ {
				for c := 0; c < outCols; c++ {
					base := (row*outCols + c) * chain2d.Stride
					for ch := 0; ch < outCh; ch++ {
						chain2d.Data[base+ch] = chain.Data[chain.At(ch, row, c)]
					}
				}
			}

			dw := tensor2d.NewZeros(fanIn, outCh)
			blas32.Gemm(blas.Trans, blas.NoTrans, 1.0, col, chain2d, 0.0, dw)

			db := tensor2d.Sum0(chain2d)

			dCol := tensor2d.NewZeros(col.Rows, col.Cols)
			blas32.Gemm(blas.NoTrans, blas.Trans, 1.0, chain2d, param.Weight, 0.0, dCol)

			dx := tensor2d.Col2Im(dCol, padded, fRows, fCols)
			if samePad {
				top := (fRows - 1) / 2
				left := (fCols - 1) / 2
				dx = dx.Crop(top, left, x.Rows, x.Cols)
			}

			grad := GradBuffer{
				Weight: dw,
				Bias:   db,
			}
			return dx, grad, nil
		}
		return y, backward, nil
	}
}

func NewLeakyReLUForward3D(alpha float32) Forward3D {
	return func(x tensor3d.General, _ *Parameter) (tensor3d.General, Backward3D, error) {
		xData := x.Data
		y := tensor3d.NewZerosLike(x)
		for i, e := range xData {
			if e > 0 {
				y.Data[i] = e
			} else {
				y.Data[i] = alpha * e
			}
		}

		var backward Backward3D
		backward = func(chain tensor3d.General) (tensor3d.General, GradBuffer, error) {
			dx := tensor3d.NewZerosLike(chain)
			for i, e := range xData {
				if e > 0 {
					dx.Data[i] = chain.Data[i]
				} else {
					dx.Data[i] = alpha * chain.Data[i]
				}
			}
			return dx, GradBuffer{}, nil
		}
		return y, backward, nil
	}
}
