package kitchen

import (
	"fmt"
	"strings"
)

type Tile byte

const (
	TileFloor Tile = iota
	TileCounter
	TileOnionDispenser
	TileDishDispenser
	TilePot
	TileServe
)

type Point struct {
	Row int
	Col int
}

func (p Point) Add(dr, dc int) Point {
	return Point{Row: p.Row + dr, Col: p.Col + dc}
}

type Layout struct {
	Name   string
	Rows   int
	Cols   int
	Tiles  []Tile
	Starts [2]Point
	Pots   []Point
}

func (l *Layout) At(p Point) Tile {
	return l.Tiles[p.Row*l.Cols+p.Col]
}

func (l *Layout) InBounds(p Point) bool {
	return p.Row >= 0 && p.Row < l.Rows && p.Col >= 0 && p.Col < l.Cols
}

func (l *Layout) IsWalkable(p Point) bool {
	return l.InBounds(p) && l.At(p) == TileFloor
}

// TilePoints は指定タイルの座標一覧を走査順で返す。
func (l *Layout) TilePoints(t Tile) []Point {
	points := []Point{}
	for row := 0; row < l.Rows; row++ {
		for col := 0; col < l.Cols; col++ {
			p := Point{Row: row, Col: col}
			if l.At(p) == t {
				points = append(points, p)
			}
		}
	}
	return points
}

/*
ParseLayout はASCIIのレイアウト定義を解析する。

	X カウンター  O 玉ねぎディスペンサー  D 皿ディスペンサー
	P 鍋  S 提供口  空白 床  1/2 プレイヤー初期位置(床)
*/
func ParseLayout(name, ascii string) (*Layout, error) {
	lines := strings.Split(strings.Trim(ascii, "\n"), "\n")
	rows := len(lines)
	if rows == 0 {
		return nil, fmt.Errorf("レイアウト %s が空です。", name)
	}
	cols := len(lines[0])

	l := &Layout{
		Name:  name,
		Rows:  rows,
		Cols:  cols,
		Tiles: make([]Tile, rows*cols),
	}

	found := [2]bool{}
	for row, line := range lines {
		if len(line) != cols {
			return nil, fmt.Errorf("レイアウト %s の %d 行目の長さが一致しません。", name, row)
		}
		for col, ch := range []byte(line) {
			p := Point{Row: row, Col: col}
			idx := row*cols + col
			switch ch {
			case 'X':
				l.Tiles[idx] = TileCounter
			case 'O':
				l.Tiles[idx] = TileOnionDispenser
			case 'D':
				l.Tiles[idx] = TileDishDispenser
			case 'P':
				l.Tiles[idx] = TilePot
			case 'S':
				l.Tiles[idx] = TileServe
			case ' ':
				l.Tiles[idx] = TileFloor
			case '1', '2':
				l.Tiles[idx] = TileFloor
				pIdx := int(ch - '1')
				if found[pIdx] {
					return nil, fmt.Errorf("レイアウト %s にプレイヤー %d の初期位置が複数あります。", name, pIdx+1)
				}
				l.Starts[pIdx] = p
				found[pIdx] = true
			default:
				return nil, fmt.Errorf("レイアウト %s に不明な文字 %q があります。", name, ch)
			}
		}
	}

	if !found[0] || !found[1] {
		return nil, fmt.Errorf("レイアウト %s には両プレイヤーの初期位置が必要です。", name)
	}

	for _, t := range []Tile{TileOnionDispenser, TileDishDispenser, TilePot, TileServe} {
		if len(l.TilePoints(t)) == 0 {
			return nil, fmt.Errorf("レイアウト %s に必要なタイルが足りません。", name)
		}
	}

	// 外周が床だとプレイヤーが盤外に出られてしまう。
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			if row == 0 || row == rows-1 || col == 0 || col == cols-1 {
				if l.Tiles[row*cols+col] == TileFloor {
					return nil, fmt.Errorf("レイアウト %s の外周 (%d, %d) が床になっています。", name, row, col)
				}
			}
		}
	}

	l.Pots = l.TilePoints(TilePot)
	return l, nil
}

// DefaultLayouts は組み込みのレイアウト定義。
var DefaultLayouts = map[string]string{
	"cramped_room": `
XXPXX
O   O
X1 2X
XDXSX
`,
	"asymmetric_advantages": `
XXXXXXXXX
O XSXOX S
X   P 2 X
X1  P   X
XXXDXDXXX
`,
}

func LoadDefaultLayout(name string) (*Layout, error) {
	ascii, ok := DefaultLayouts[name]
	if !ok {
		return nil, fmt.Errorf("レイアウト %s は定義されていません。", name)
	}
	return ParseLayout(name, ascii)
}
