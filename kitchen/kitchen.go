package kitchen

// 標準の報酬設定。スパース報酬は提供時のみ、シェイプ報酬は進捗イベント毎。
const (
	CookTime = 20
	PotCap   = 3

	ServeReward       = 20.0
	OnionInPotReward  = 3.0
	DishPickupReward  = 3.0
	SoupPickupReward  = 5.0
)

type Item int

const (
	ItemNone Item = iota
	ItemOnion
	ItemDish
	ItemSoup
)

const NumItems = 4

type Pot struct {
	Pos    Point
	Onions int
	Timer  int
}

// IsCooking は具材が揃って調理中である事を示す。
func (p *Pot) IsCooking() bool {
	return p.Onions == PotCap && p.Timer > 0
}

func (p *Pot) IsReady() bool {
	return p.Onions == PotCap && p.Timer == 0
}

func (p *Pot) HasSpace() bool {
	return p.Onions < PotCap
}

type Player struct {
	Pos  Point
	Dir  Direction
	Held Item
}

func (p *Player) Faced() Point {
	dr, dc := p.Dir.Delta()
	return p.Pos.Add(dr, dc)
}

type State struct {
	Players  [2]Player
	Pots     []Pot
	Counters map[Point]Item
	Timestep int
}

type Info struct {
	SparseByAgent [2]float32
	ShapedByAgent [2]float32
}

type Env struct {
	Layout  *Layout
	Horizon int
	State   State
}

func NewEnv(layout *Layout, horizon int) *Env {
	e := &Env{
		Layout:  layout,
		Horizon: horizon,
	}
	e.Reset()
	return e
}

func (e *Env) Reset() {
	pots := make([]Pot, len(e.Layout.Pots))
	for i, pos := range e.Layout.Pots {
		pots[i] = Pot{Pos: pos}
	}

	state := State{
		Pots:     pots,
		Counters: map[Point]Item{},
	}
	for i := range state.Players {
		state.Players[i] = Player{
			Pos:  e.Layout.Starts[i],
			Dir:  DirUp,
			Held: ItemNone,
		}
	}
	e.State = state
}

func (e *Env) Done() bool {
	return e.State.Timestep >= e.Horizon
}

func (e *Env) potAt(p Point) *Pot {
	for i := range e.State.Pots {
		if e.State.Pots[i].Pos == p {
			return &e.State.Pots[i]
		}
	}
	return nil
}

// anySoupInProgress は調理中または完成済みの鍋が存在するかを返す。
func (e *Env) anySoupInProgress() bool {
	for i := range e.State.Pots {
		if e.State.Pots[i].IsCooking() || e.State.Pots[i].IsReady() {
			return true
		}
	}
	return false
}

/*
Step は両プレイヤーの行動を同時に適用する。
移動は同一マスへの進入と位置交換を衝突とみなし、両者とも動かない。
移動がブロックされても向きは更新される。
返り値はスパース報酬の合計・終了フラグ・エージェント別の内訳。
*/
func (e *Env) Step(joint JointAction) (float32, bool, Info) {
	info := Info{}

	// 移動フェーズ
	desired := [2]Point{}
	for i := range e.State.Players {
		pl := &e.State.Players[i]
		desired[i] = pl.Pos
		if dir, ok := joint[i].MoveDirection(); ok {
			pl.Dir = dir
			dr, dc := dir.Delta()
			next := pl.Pos.Add(dr, dc)
			if e.Layout.IsWalkable(next) {
				desired[i] = next
			}
		}
	}

	collision := desired[0] == desired[1] ||
		(desired[0] == e.State.Players[1].Pos && desired[1] == e.State.Players[0].Pos)
	if !collision {
		e.State.Players[0].Pos = desired[0]
		e.State.Players[1].Pos = desired[1]
	}

	// インタラクトフェーズ
	for i := range e.State.Players {
		if joint[i] != ActionInteract {
			continue
		}
		e.interact(i, &info)
	}

	// 調理フェーズ
	for i := range e.State.Pots {
		pot := &e.State.Pots[i]
		if pot.IsCooking() {
			pot.Timer--
		}
	}

	e.State.Timestep++

	reward := info.SparseByAgent[0] + info.SparseByAgent[1]
	return reward, e.Done(), info
}

func (e *Env) interact(pIdx int, info *Info) {
	pl := &e.State.Players[pIdx]
	faced := pl.Faced()
	if !e.Layout.InBounds(faced) {
		return
	}

	switch e.Layout.At(faced) {
	case TileOnionDispenser:
		if pl.Held == ItemNone {
			pl.Held = ItemOnion
		}
	case TileDishDispenser:
		if pl.Held == ItemNone {
			pl.Held = ItemDish
			if e.anySoupInProgress() {
				info.ShapedByAgent[pIdx] += DishPickupReward
			}
		}
	case TilePot:
		pot := e.potAt(faced)
		if pot == nil {
			return
		}
		if pl.Held == ItemOnion && pot.HasSpace() {
			pl.Held = ItemNone
			pot.Onions++
			if pot.Onions == PotCap {
				pot.Timer = CookTime
			}
			info.ShapedByAgent[pIdx] += OnionInPotReward
		} else if pl.Held == ItemDish && pot.IsReady() {
			pl.Held = ItemSoup
			pot.Onions = 0
			info.ShapedByAgent[pIdx] += SoupPickupReward
		}
	case TileServe:
		if pl.Held == ItemSoup {
			pl.Held = ItemNone
			info.SparseByAgent[pIdx] += ServeReward
		}
	case TileCounter:
		item, occupied := e.State.Counters[faced]
		if pl.Held == ItemNone && occupied {
			pl.Held = item
			delete(e.State.Counters, faced)
		} else if pl.Held != ItemNone && !occupied {
			e.State.Counters[faced] = pl.Held
			pl.Held = ItemNone
		}
	}
}
