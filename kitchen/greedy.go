package kitchen

import (
	"math/rand"

	omwrand "github.com/sw965/omw/math/rand"
)

/*
GreedyCook はデモンストレーション軌跡を生成する為のルールベース調理人。
所持品と鍋の状態から次のサブゴールを決め、BFSで最短経路を辿る。
Epsilon確率でランダムな移動を混ぜて軌跡に多様性を持たせる。
*/
type GreedyCook struct {
	PIdx    int
	Epsilon float64
	rng     *rand.Rand
	goal    Subtask

	lastPos    Point
	lastAction Action
	stuck      int
}

func NewGreedyCook(pIdx int, epsilon float64, rng *rand.Rand) *GreedyCook {
	return &GreedyCook{
		PIdx:    pIdx,
		Epsilon: epsilon,
		rng:     rng,
		goal:    SubtaskUnknown,
	}
}

func (g *GreedyCook) Reset() {
	g.goal = SubtaskUnknown
	g.lastPos = Point{}
	g.lastAction = ActionStay
	g.stuck = 0
}

// Goal は現在遂行中のサブタスク。データ収集時の教師ラベルになる。
func (g *GreedyCook) Goal() Subtask {
	return g.goal
}

type cookTarget struct {
	pos  Point
	goal Subtask
	wait bool
}

func (g *GreedyCook) Act(e *Env) Action {
	pl := e.State.Players[g.PIdx]

	// 移動したのに位置が変わっていないなら、相手と衝突し続けている。
	if g.lastAction.IsMove() && pl.Pos == g.lastPos {
		g.stuck++
	} else {
		g.stuck = 0
	}
	g.lastPos = pl.Pos

	act := g.decide(e, pl)
	g.lastAction = act
	return act
}

func (g *GreedyCook) decide(e *Env, pl Player) Action {
	targets := g.selectTargets(e)
	if len(targets) == 0 {
		g.goal = SubtaskUnknown
		return ActionStay
	}

	dist, firstStep := e.bfs(pl.Pos, e.State.Players[1-g.PIdx].Pos)

	bestIdx := -1
	bestD := 0
	var bestApproach Point
	for ti := range targets {
		for _, dir := range []Direction{DirUp, DirDown, DirLeft, DirRight} {
			dr, dc := dir.Delta()
			ap := targets[ti].pos.Add(dr, dc)
			d, ok := dist[ap]
			if !ok {
				continue
			}
			if bestIdx == -1 || d < bestD {
				bestIdx = ti
				bestD = d
				bestApproach = ap
			}
		}
	}

	if bestIdx == -1 {
		// 到達可能な目標が無い(通路を塞がれている等)。
		g.goal = SubtaskUnknown
		return ActionStay
	}

	target := targets[bestIdx]
	g.goal = target.goal

	moves := []Action{ActionUp, ActionDown, ActionLeft, ActionRight}
	if g.rng != nil && g.rng.Float64() < g.Epsilon {
		return omwrand.Choice(moves, g.rng)
	}
	// 膠着状態はランダムな移動で解消する。
	if g.stuck >= 2 && g.rng != nil {
		return omwrand.Choice(moves, g.rng)
	}

	if pl.Pos == bestApproach {
		if pl.Faced() == target.pos {
			if target.wait {
				return ActionStay
			}
			return ActionInteract
		}
		// 対象タイルは歩行不能なので、移動は失敗して向きだけ変わる。
		return actionToward(pl.Pos, target.pos)
	}
	return firstStep[bestApproach]
}

func (g *GreedyCook) selectTargets(e *Env) []cookTarget {
	pl := e.State.Players[g.PIdx]
	targets := []cookTarget{}

	emptyCounters := func(goal Subtask) {
		for _, p := range e.Layout.TilePoints(TileCounter) {
			if _, occupied := e.State.Counters[p]; !occupied {
				targets = append(targets, cookTarget{pos: p, goal: goal})
			}
		}
	}
	counterItems := func(item Item, goal Subtask) {
		for _, p := range e.Layout.TilePoints(TileCounter) {
			if held, ok := e.State.Counters[p]; ok && held == item {
				targets = append(targets, cookTarget{pos: p, goal: goal})
			}
		}
	}

	switch pl.Held {
	case ItemNone:
		needOnion := false
		for i := range e.State.Pots {
			if e.State.Pots[i].HasSpace() {
				needOnion = true
			}
		}
		if needOnion {
			for _, p := range e.Layout.TilePoints(TileOnionDispenser) {
				targets = append(targets, cookTarget{pos: p, goal: SubtaskGetOnionFromDispenser})
			}
			counterItems(ItemOnion, SubtaskPickupOnionFromCounter)
		} else {
			for _, p := range e.Layout.TilePoints(TileDishDispenser) {
				targets = append(targets, cookTarget{pos: p, goal: SubtaskGetPlateFromDishRack})
			}
			counterItems(ItemDish, SubtaskPickupPlateFromCounter)
			counterItems(ItemSoup, SubtaskPickupSoupFromCounter)
		}
	case ItemOnion:
		for i := range e.State.Pots {
			if e.State.Pots[i].HasSpace() {
				targets = append(targets, cookTarget{pos: e.State.Pots[i].Pos, goal: SubtaskPutOnionInPot})
			}
		}
		if len(targets) == 0 {
			emptyCounters(SubtaskPutOnionCloser)
		}
	case ItemDish:
		for i := range e.State.Pots {
			if e.State.Pots[i].IsReady() {
				targets = append(targets, cookTarget{pos: e.State.Pots[i].Pos, goal: SubtaskGetSoup})
			}
		}
		if len(targets) == 0 {
			for i := range e.State.Pots {
				if e.State.Pots[i].IsCooking() {
					targets = append(targets, cookTarget{pos: e.State.Pots[i].Pos, goal: SubtaskGetSoup, wait: true})
				}
			}
		}
		if len(targets) == 0 {
			emptyCounters(SubtaskPutPlateCloser)
		}
	case ItemSoup:
		for _, p := range e.Layout.TilePoints(TileServe) {
			targets = append(targets, cookTarget{pos: p, goal: SubtaskServeSoup})
		}
	}
	return targets
}

// bfs はstartから全ての到達可能な床マスへの距離と最初の一歩を返す。
// 相手プレイヤーのマスは障害物として扱う。
func (e *Env) bfs(start, blocked Point) (map[Point]int, map[Point]Action) {
	dist := map[Point]int{start: 0}
	first := map[Point]Action{}
	queue := []Point{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dir := range []Direction{DirUp, DirDown, DirLeft, DirRight} {
			dr, dc := dir.Delta()
			next := cur.Add(dr, dc)
			if next == blocked || !e.Layout.IsWalkable(next) {
				continue
			}
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[cur] + 1
			if cur == start {
				first[next] = dir.Action()
			} else {
				first[next] = first[cur]
			}
			queue = append(queue, next)
		}
	}
	return dist, first
}

func actionToward(from, to Point) Action {
	if to.Row < from.Row {
		return ActionUp
	}
	if to.Row > from.Row {
		return ActionDown
	}
	if to.Col < from.Col {
		return ActionLeft
	}
	return ActionRight
}
