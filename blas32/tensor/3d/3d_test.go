package tensor3d_test

import (
	"testing"

	"github.com/sw965/ladle/blas32/tensor/3d"
)

func TestPaddingAndCrop(t *testing.T) {
	img := tensor3d.General{
		Channels:      1,
		Rows:          2,
		Cols:          3,
		ChannelStride: 6,
		RowStride:     3,
		Data: []float32{
			1.0, 2.0, 3.0,
			4.0, 5.0, 6.0,
		},
	}

	padded := img.SameZeroPadding2D(3, 3)
	if padded.Rows != 4 || padded.Cols != 5 {
		t.Errorf("padded shape = (%d, %d)", padded.Rows, padded.Cols)
	}
	if padded.Data[padded.At(0, 1, 1)] != 1.0 {
		t.Errorf("パディング位置がずれている")
	}

	cropped := padded.Crop(1, 1, img.Rows, img.Cols)
	for i := range img.Data {
		if cropped.Data[i] != img.Data[i] {
			t.Errorf("CropがZeroPadding2Dの逆になっていない: %v", cropped.Data)
		}
	}
}

func TestToCol(t *testing.T) {
	img := tensor3d.General{
		Channels:      1,
		Rows:          3,
		Cols:          3,
		ChannelStride: 9,
		RowStride:     3,
		Data: []float32{
			1.0, 2.0, 3.0,
			4.0, 5.0, 6.0,
			7.0, 8.0, 9.0,
		},
	}

	col := img.ToCol(2, 2)
	if col.Rows != 4 || col.Cols != 4 {
		t.Errorf("col shape = (%d, %d)", col.Rows, col.Cols)
	}

	// 左上のパッチ。
	want := []float32{1.0, 2.0, 4.0, 5.0}
	for i, w := range want {
		if col.Data[i] != w {
			t.Errorf("col[0]=%v", col.Data[:4])
		}
	}

	// 右下のパッチ。
	want = []float32{5.0, 6.0, 8.0, 9.0}
	for i, w := range want {
		if col.Data[12+i] != w {
			t.Errorf("col[3]=%v", col.Data[12:])
		}
	}
}

func TestFromVectorSharesData(t *testing.T) {
	img := tensor3d.NewZeros(2, 2, 2)
	vec := img.ToVector()
	vec.Data[3] = 7.0

	reshaped := img.FromVector(vec)
	if reshaped.Data[3] != 7.0 {
		t.Errorf("データが共有されていない")
	}
	if reshaped.Channels != 2 || reshaped.Rows != 2 || reshaped.Cols != 2 {
		t.Errorf("形状が保存されていない")
	}
}
