package kitchen

import (
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/sw965/ladle/blas32/tensor/3d"
	"github.com/sw965/ladle/blas32/vector"
)

/*
視覚観測はロスレスなマスク表現。各チャネルはグリッドと同形で、
該当セルに1.0(または正規化された進捗値)を立てる。
自プレイヤー視点でエンコードされる為、両プレイヤーで観測が異なる。
*/
const (
	chCounter        = 0
	chOnionDispenser = 1
	chDishDispenser  = 2
	chPot            = 3
	chServe          = 4
	chEgoPos         = 5
	chEgoDir         = 6 // 4チャネル
	chOtherPos       = chEgoDir + NumDirections
	chOtherDir       = chOtherPos + 1 // 4チャネル
	chOnions         = chOtherDir + NumDirections
	chDishes         = chOnions + 1
	chSoups          = chDishes + 1
	chPotFill        = chSoups + 1
	chPotProgress    = chPotFill + 1

	NumVisualChannels = chPotProgress + 1
)

// AgentObsDim は平坦な特徴ベクトルの次元数。
// 各プレイヤーにつき [row, col, 向きone-hot, 所持品one-hot]、最後に経過時間。
const AgentObsDim = 2*(2+NumDirections+NumItems) + 1

func (e *Env) VisualShape() [3]int {
	return [3]int{NumVisualChannels, e.Layout.Rows, e.Layout.Cols}
}

// Obs はpIdx視点の観測(視覚テンソルと特徴ベクトル)を返す。
func (e *Env) Obs(pIdx int) (tensor3d.General, blas32.Vector) {
	l := e.Layout
	vis := tensor3d.NewZeros(NumVisualChannels, l.Rows, l.Cols)

	tileCh := map[Tile]int{
		TileCounter:        chCounter,
		TileOnionDispenser: chOnionDispenser,
		TileDishDispenser:  chDishDispenser,
		TilePot:            chPot,
		TileServe:          chServe,
	}
	for row := 0; row < l.Rows; row++ {
		for col := 0; col < l.Cols; col++ {
			p := Point{Row: row, Col: col}
			if ch, ok := tileCh[l.At(p)]; ok {
				vis.Data[vis.At(ch, row, col)] = 1.0
			}
		}
	}

	itemCh := map[Item]int{
		ItemOnion: chOnions,
		ItemDish:  chDishes,
		ItemSoup:  chSoups,
	}

	ego := e.State.Players[pIdx]
	other := e.State.Players[1-pIdx]

	vis.Data[vis.At(chEgoPos, ego.Pos.Row, ego.Pos.Col)] = 1.0
	vis.Data[vis.At(chEgoDir+int(ego.Dir), ego.Pos.Row, ego.Pos.Col)] = 1.0
	vis.Data[vis.At(chOtherPos, other.Pos.Row, other.Pos.Col)] = 1.0
	vis.Data[vis.At(chOtherDir+int(other.Dir), other.Pos.Row, other.Pos.Col)] = 1.0

	for _, pl := range []Player{ego, other} {
		if ch, ok := itemCh[pl.Held]; ok {
			vis.Data[vis.At(ch, pl.Pos.Row, pl.Pos.Col)] = 1.0
		}
	}
	for pos, item := range e.State.Counters {
		if ch, ok := itemCh[item]; ok {
			vis.Data[vis.At(ch, pos.Row, pos.Col)] = 1.0
		}
	}

	for i := range e.State.Pots {
		pot := &e.State.Pots[i]
		vis.Data[vis.At(chPotFill, pot.Pos.Row, pot.Pos.Col)] = float32(pot.Onions) / float32(PotCap)
		if pot.Onions == PotCap {
			vis.Data[vis.At(chPotProgress, pot.Pos.Row, pot.Pos.Col)] = float32(CookTime-pot.Timer) / float32(CookTime)
		}
	}

	feats := vector.NewZeros(AgentObsDim)
	idx := 0
	for _, pl := range []Player{ego, other} {
		feats.Data[idx] = float32(pl.Pos.Row) / float32(l.Rows)
		feats.Data[idx+1] = float32(pl.Pos.Col) / float32(l.Cols)
		idx += 2
		feats.Data[idx+int(pl.Dir)] = 1.0
		idx += NumDirections
		feats.Data[idx+int(pl.Held)] = 1.0
		idx += NumItems
	}
	feats.Data[idx] = float32(e.State.Timestep) / float32(e.Horizon)

	return vis, feats
}
