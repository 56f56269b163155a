package trainer

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/gosuri/uilive"
	"github.com/sw965/omw/parallel"
	oslices "github.com/sw965/omw/slices"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/stat"

	"github.com/sw965/ladle/bc"
	"github.com/sw965/ladle/blas32/tensor/3d"
	"github.com/sw965/ladle/blas32/vector"
	"github.com/sw965/ladle/dataset"
	"github.com/sw965/ladle/kitchen"
	"github.com/sw965/ladle/nn"
)

// Environment は評価ロールアウトに必要な操作。*kitchen.Envが満たす。
type Environment interface {
	Reset()
	Done() bool
	Obs(pIdx int) (tensor3d.General, blas32.Vector)
	Step(joint kitchen.JointAction) (float32, bool, kitchen.Info)
	VisualShape() [3]int
}

type Config struct {
	HiddenDim     int
	LearningRate  float32
	BatchSize     int
	UseSubtasks   bool
	Parallel      int
	EvalTrials    int
	CheckpointDir string
}

/*
Trainer はデモンストレーション軌跡から2体のエージェントを教師あり学習する。
行動損失はクラス重み付き交差エントロピー。サブタスク損失は同様の重み付き
交差エントロピーを、インタラクト行動のサンプルのみに限定して平均する。
*/
type Trainer struct {
	Config Config
	Sink   Sink

	trajectories *dataset.Trajectories
	env          Environment
	agents       [2]*bc.Agent
	optimizers   [2]*nn.Adam
	actionCE     nn.SoftmaxCrossEntropy
	subtaskCE    nn.SoftmaxCrossEntropy
	rng          *rand.Rand
}

func New(ts *dataset.Trajectories, env Environment, cfg Config, rng *rand.Rand) (*Trainer, error) {
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("バッチサイズが%dです。1以上でなければなりません。", cfg.BatchSize)
	}
	if ts.N() == 0 {
		return nil, fmt.Errorf("軌跡データが空です。")
	}

	// 軌跡と評価環境の観測形状が食い違うのは構成ミス。
	_, agentObs := env.Obs(0)
	shape := env.VisualShape()
	vis0 := ts.Players[0].Visuals[0]
	if vis0.Channels != shape[0] || vis0.Rows != shape[1] || vis0.Cols != shape[2] {
		return nil, fmt.Errorf("軌跡の視覚観測 (%d, %d, %d) が環境の形状 (%d, %d, %d) と一致しません。",
			vis0.Channels, vis0.Rows, vis0.Cols, shape[0], shape[1], shape[2])
	}
	if agent0 := ts.Players[0].Agents[0]; agent0.N != agentObs.N {
		return nil, fmt.Errorf("軌跡の特徴ベクトルの次元 %d が環境の %d と一致しません。", agent0.N, agentObs.N)
	}

	policyCfg := bc.Config{
		VisualShape: shape,
		AgentObsDim: agentObs.N,
		HiddenDim:   cfg.HiddenDim,
		NumActions:  kitchen.NumActions,
		NumSubtasks: kitchen.NumSubtasks,
		UseSubtasks: cfg.UseSubtasks,
	}

	t := &Trainer{
		Config:       cfg,
		Sink:         DiscardSink{},
		trajectories: ts,
		env:          env,
		actionCE:     nn.NewSoftmaxCrossEntropy(ts.ActionWeights()),
		subtaskCE:    nn.NewSoftmaxCrossEntropy(ts.SubtaskWeights()),
		rng:          rng,
	}

	for i := range t.agents {
		policy, err := bc.NewPolicy(policyCfg, rng)
		if err != nil {
			return nil, err
		}
		t.agents[i] = bc.NewAgent(i, policy)
		t.optimizers[i] = nn.NewAdam(policy.Parameters(), cfg.LearningRate)
	}
	return t, nil
}

func (t *Trainer) GetAgent(pIdx int) *bc.Agent {
	return t.agents[pIdx]
}

type batchStats struct {
	actionLoss  float32
	subtaskLoss float32
	correct     int
	maskCount   int
}

/*
TrainOnBatch は1ミニバッチで両プレイヤーのネットワークを1ステップ更新する。
サンプル毎の勾配はワーカー毎のバッファに蓄積し、合算してバッチ平均を取る。
サブタスク精度はインタラクトのサンプルが無いバッチでは報告しない。
*/
func (t *Trainer) TrainOnBatch(b *dataset.Batch) (map[string]float64, error) {
	n := b.N()
	if n == 0 {
		return nil, fmt.Errorf("空のバッチです。")
	}
	p := t.Config.Parallel

	metrics := map[string]float64{}
	for i := range t.agents {
		policy := t.agents[i].Policy
		params := policy.Parameters()
		steps := &b.Players[i]

		workerGrads := make([]nn.GradBuffers, p)
		workerStats := make([]batchStats, p)
		for w := 0; w < p; w++ {
			workerGrads[w] = params.NewGradsZerosLike()
		}

		err := parallel.For(n, p, func(workerId, idx int) error {
			obs := bc.Observation{
				Visual: steps.Visuals[idx],
				Agent:  steps.Agents[idx],
			}
			if t.Config.UseSubtasks {
				obs.Subtask = vector.NewOneHot(kitchen.NumSubtasks, int(steps.Subtasks[idx]))
			}

			actionTarget := int(steps.Actions[idx])
			stats := &workerStats[workerId]

			grads, err := policy.ForwardBackward(&obs, func(actionLogits, subtaskLogits blas32.Vector) (bc.Chains, error) {
				chains := bc.Chains{}

				loss, err := t.actionCE.Loss(actionLogits, actionTarget)
				if err != nil {
					return bc.Chains{}, err
				}
				stats.actionLoss += loss
				chains.Action, err = t.actionCE.Derivative(actionLogits, actionTarget)
				if err != nil {
					return bc.Chains{}, err
				}

				// サブタスク損失はインタラクト行動の時刻だけに流す。
				if t.Config.UseSubtasks && steps.Actions[idx] == kitchen.ActionInteract {
					subTarget := int(steps.NextSubtasks[idx])
					subLoss, err := t.subtaskCE.Loss(subtaskLogits, subTarget)
					if err != nil {
						return bc.Chains{}, err
					}
					stats.subtaskLoss += subLoss
					chains.Subtask, err = t.subtaskCE.Derivative(subtaskLogits, subTarget)
					if err != nil {
						return bc.Chains{}, err
					}

					stats.maskCount++
					if oslices.MaxIndices(subtaskLogits.Data)[0] == subTarget {
						stats.correct++
					}
				}
				return chains, nil
			})
			if err != nil {
				return err
			}

			workerGrads[workerId].Axpy(1.0, grads)
			return nil
		})
		if err != nil {
			return nil, err
		}

		total := params.NewGradsZerosLike()
		stats := batchStats{}
		for w := 0; w < p; w++ {
			total.Axpy(1.0, workerGrads[w])
			stats.actionLoss += workerStats[w].actionLoss
			stats.subtaskLoss += workerStats[w].subtaskLoss
			stats.correct += workerStats[w].correct
			stats.maskCount += workerStats[w].maskCount
		}
		total.Scal(1.0 / float32(n))

		if err := t.optimizers[i].Update(params, total); err != nil {
			return nil, err
		}

		prefix := fmt.Sprintf("p%d_", i+1)
		metrics[prefix+"action_loss"] = float64(stats.actionLoss) / float64(n)
		if t.Config.UseSubtasks {
			metrics[prefix+"subtask_loss"] = float64(stats.subtaskLoss) / float64(n)
			if stats.maskCount > 0 {
				metrics[prefix+"subtask_acc"] = float64(stats.correct) / float64(stats.maskCount)
			}
		}
	}
	return metrics, nil
}

// TrainEpoch は全データを1周し、バッチ毎のメトリクスの算術平均を返す。
// *_lossを合算したtotal_lossを加える。
func (t *Trainer) TrainEpoch(epoch int) (map[string]float64, error) {
	sums := map[string]float64{}
	counts := map[string]int{}

	numBatches := t.trajectories.NumBatches(t.Config.BatchSize)
	writer := uilive.New()
	writer.Start()
	defer writer.Stop()

	batchIdx := 0
	for b := range t.trajectories.Shuffled(t.Config.BatchSize, t.rng) {
		metrics, err := t.TrainOnBatch(&b)
		if err != nil {
			return nil, err
		}
		for k, v := range metrics {
			sums[k] += v
			counts[k]++
		}

		batchIdx++
		fmt.Fprintf(writer, "epoch %d: batch %d/%d action_loss=%.4f\n",
			epoch, batchIdx, numBatches,
			(sums["p1_action_loss"]+sums["p2_action_loss"])/float64(2*batchIdx))
	}

	means := map[string]float64{}
	totalLoss := 0.0
	for k, sum := range sums {
		means[k] = sum / float64(counts[k])
		if strings.Contains(k, "loss") {
			totalLoss += means[k]
		}
	}
	means["total_loss"] = totalLoss
	return means, nil
}

/*
TrainAgents は指定エポック数だけ学習し、10エポック毎に評価ロールアウトを行う。
平均スパース報酬が最良を更新したらbest_rewardタグで保存し、
学習終了後に最良のチェックポイントを読み戻す。
*/
func (t *Trainer) TrainAgents(epochs int, expName string) error {
	best := math.Inf(-1)
	saved := false

	for epoch := 0; epoch < epochs; epoch++ {
		metrics, err := t.TrainEpoch(epoch)
		if err != nil {
			return err
		}

		if (epoch+1)%10 == 0 {
			trueReward, shapedReward, err := t.Evaluate(t.Config.EvalTrials, true)
			if err != nil {
				return err
			}
			metrics["eval_true_reward"] = trueReward
			metrics["eval_shaped_reward"] = shapedReward

			if trueReward > best {
				best = trueReward
				for _, agent := range t.agents {
					if err := agent.Save(t.Config.CheckpointDir, "best_reward"); err != nil {
						return err
					}
				}
				saved = true
			}
		}

		metrics["epoch"] = float64(epoch)
		if err := t.Sink.Log(expName, metrics); err != nil {
			return err
		}
	}

	if saved {
		for _, agent := range t.agents {
			if err := agent.Load(t.Config.CheckpointDir, "best_reward"); err != nil {
				return err
			}
		}
	}
	return nil
}

// Evaluate は評価ロールアウトを行い、平均スパース報酬と平均シェイプ報酬を返す。
func (t *Trainer) Evaluate(numTrials int, sample bool) (float64, float64, error) {
	return Rollout(t.env, t.agents, numTrials, sample, t.rng)
}

// Rollout は学習済みエージェントのペアでエピソードを回し、
// 試行毎のスパース報酬とシェイプ報酬の平均を返す。
func Rollout(env Environment, agents [2]*bc.Agent, numTrials int, sample bool, rng *rand.Rand) (float64, float64, error) {
	if numTrials <= 0 {
		numTrials = 1
	}

	trueRewards := make([]float64, numTrials)
	shapedRewards := make([]float64, numTrials)

	for trial := 0; trial < numTrials; trial++ {
		env.Reset()
		for _, agent := range agents {
			agent.Reset()
		}

		var sparse, shaped float32
		for !env.Done() {
			joint := kitchen.JointAction{}
			for i, agent := range agents {
				vis, feats := env.Obs(i)
				a, err := agent.Predict(vis, feats, sample, rng)
				if err != nil {
					return 0.0, 0.0, err
				}
				joint[i] = a
			}
			_, _, info := env.Step(joint)
			sparse += info.SparseByAgent[0] + info.SparseByAgent[1]
			shaped += info.ShapedByAgent[0] + info.ShapedByAgent[1]
		}
		trueRewards[trial] = float64(sparse)
		shapedRewards[trial] = float64(shaped)
	}
	return stat.Mean(trueRewards, nil), stat.Mean(shapedRewards, nil)
}
