package dataset

import (
	"math/rand"
)

// Batch は両プレイヤーの同じ時刻集合に対するミニバッチ。
type Batch struct {
	Players [2]PlayerSteps
}

func (b *Batch) N() int {
	return len(b.Players[0].Actions)
}

func (ts *Trajectories) NumBatches(batchSize int) int {
	return (ts.N() + batchSize - 1) / batchSize
}

/*
Shuffled は1エポック分のミニバッチを先読みしながら供給するチャネルを返す。
各サンプルはエポック内で丁度1回だけ現れる。
受信側が全バッチを読み切るか、チャネルを放置せずに消費する事を前提とする。
*/
func (ts *Trajectories) Shuffled(batchSize int, rng *rand.Rand) <-chan Batch {
	n := ts.N()
	perm := rng.Perm(n)
	ch := make(chan Batch, 4)

	go func() {
		defer close(ch)
		for start := 0; start < n; start += batchSize {
			end := start + batchSize
			if end > n {
				end = n
			}

			b := Batch{}
			for i := range ts.Players {
				src := &ts.Players[i]
				dst := &b.Players[i]
				for _, idx := range perm[start:end] {
					dst.Visuals = append(dst.Visuals, src.Visuals[idx])
					dst.Agents = append(dst.Agents, src.Agents[idx])
					dst.Actions = append(dst.Actions, src.Actions[idx])
					dst.Subtasks = append(dst.Subtasks, src.Subtasks[idx])
					dst.NextSubtasks = append(dst.NextSubtasks, src.NextSubtasks[idx])
				}
			}
			ch <- b
		}
	}()
	return ch
}
