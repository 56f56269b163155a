package tensor3d

import (
	"gonum.org/v1/gonum/blas/blas32"
	"slices"
)

type General struct {
	Channels      int
	Rows          int
	Cols          int
	ChannelStride int
	RowStride     int
	Data          []float32
}

func NewZeros(chs, rows, cols int) General {
	rowStride := cols
	chStride := rows * rowStride
	n := chs * chStride
	return General{
		Channels:      chs,
		Rows:          rows,
		Cols:          cols,
		ChannelStride: chStride,
		RowStride:     rowStride,
		Data:          make([]float32, n),
	}
}

func NewZerosLike(gen General) General {
	return NewZeros(gen.Channels, gen.Rows, gen.Cols)
}

func (g General) N() int {
	return g.Channels * g.Rows * g.Cols
}

func (g General) Clone() General {
	return General{
		Channels:      g.Channels,
		Rows:          g.Rows,
		Cols:          g.Cols,
		ChannelStride: g.ChannelStride,
		RowStride:     g.RowStride,
		Data:          slices.Clone(g.Data),
	}
}

func (g General) At(ch, row, col int) int {
	return ch*g.ChannelStride + row*g.RowStride + col
}

func (g General) ToVector() blas32.Vector {
	return blas32.Vector{
		N:    g.N(),
		Inc:  1,
		Data: g.Data,
	}
}

func (g General) Flatten() blas32.Vector {
	return blas32.Vector{
		N:    g.N(),
		Inc:  1,
		Data: slices.Clone(g.Data),
	}
}

// FromVector reshapes vec onto the shape of g. The shape is cloned,
// the data is shared.
func (g General) FromVector(vec blas32.Vector) General {
	reshaped := g
	reshaped.Data = vec.Data
	return reshaped
}

//cnn用のメソッド。レシーバーの名前はimgとする。

func (img General) ZeroPadding2D(top, bot, left, right int) General {
	padded := NewZeros(img.Channels, img.Rows+top+bot, img.Cols+left+right)
	for ch := 0; ch < img.Channels; ch++ {
		for row := 0; row < img.Rows; row++ {
			for col := 0; col < img.Cols; col++ {
				oldIdx := img.At(ch, row, col)
				newIdx := padded.At(ch, row+top, col+left)
				padded.Data[newIdx] = img.Data[oldIdx]
			}
		}
	}
	return padded
}

func (img General) SameZeroPadding2D(filterRows, filterCols int) General {
	top := (filterRows - 1) / 2
	bot := filterRows - 1 - top
	left := (filterCols - 1) / 2
	right := filterCols - 1 - left
	return img.ZeroPadding2D(top, bot, left, right)
}

// Crop is the inverse of ZeroPadding2D.
func (img General) Crop(top, left, rows, cols int) General {
	cropped := NewZeros(img.Channels, rows, cols)
	for ch := 0; ch < img.Channels; ch++ {
		for row := 0; row < rows; row++ {
			for col := 0; col < cols; col++ {
				oldIdx := img.At(ch, row+top, col+left)
				newIdx := cropped.At(ch, row, col)
				cropped.Data[newIdx] = img.Data[oldIdx]
			}
		}
	}
	return cropped
}

func (img General) ConvOutputRows(filterRows int) int {
	return img.Rows - filterRows + 1
}

func (img General) ConvOutputCols(filterCols int) int {
	return img.Cols - filterCols + 1
}

func (img General) ToCol(filterRows, filterCols int) blas32.General {
	chs := img.Channels
	outRows := img.ConvOutputRows(filterRows)
	outCols := img.ConvOutputCols(filterCols)
	imgData := img.Data
	newData := make([]float32, outRows*outCols*chs*filterRows*filterCols)
	newIdx := 0

	for or := 0; or < outRows; or++ {
		for oc := 0; oc < outCols; oc++ {
			for ch := 0; ch < chs; ch++ {
				for fr := 0; fr < filterRows; fr++ {
					for fc := 0; fc < filterCols; fc++ {
						row := fr + or
						col := fc + oc
						newData[newIdx] = imgData[img.At(ch, row, col)]
						newIdx++
					}
				}
			}
		}
	}

	newCols := filterRows * filterCols * chs
	return blas32.General{
		Rows:   outRows * outCols,
		Cols:   newCols,
		Stride: newCols,
		Data:   newData,
	}
}
