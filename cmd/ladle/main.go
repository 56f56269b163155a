package main

import (
	"fmt"
	"math/rand"
	"os"

	omwrand "github.com/sw965/omw/math/rand"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/netlib/blas/netlib"

	"github.com/sw965/ladle/bc"
	"github.com/sw965/ladle/dataset"
	"github.com/sw965/ladle/kitchen"
	"github.com/sw965/ladle/trainer"
)

var (
	useCBLAS bool
	seed     int64

	layoutName string
	horizon    int

	episodes int
	epsilon  float64
	dataPath string

	epochs        int
	batchSize     int
	learningRate  float64
	hiddenDim     int
	useSubtasks   bool
	parallelism   int
	evalTrials    int
	checkpointDir string
	metricsPath   string
	expName       string

	tag    string
	trials int
	sample bool
)

func newRng() *rand.Rand {
	if seed >= 0 {
		return rand.New(rand.NewSource(seed))
	}
	return omwrand.NewMt19937()
}

func loadEnv() (*kitchen.Env, error) {
	l, err := kitchen.LoadDefaultLayout(layoutName)
	if err != nil {
		return nil, err
	}
	return kitchen.NewEnv(l, horizon), nil
}

func rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ladle",
		Short: "Behavioral cloning for a two-player cooperative cooking game",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if useCBLAS {
				blas32.Use(netlib.Implementation{})
			}
		},
	}

	cmd.PersistentFlags().BoolVar(&useCBLAS, "cblas", false, "Use the CBLAS backend instead of the native implementation")
	cmd.PersistentFlags().Int64Var(&seed, "seed", -1, "Random seed (negative for a time-based seed)")
	cmd.PersistentFlags().StringVar(&layoutName, "layout", "cramped_room", "Kitchen layout name")
	cmd.PersistentFlags().IntVar(&horizon, "horizon", 400, "Episode horizon")
	cmd.PersistentFlags().StringVar(&dataPath, "data", "trajectories.gob", "Path to the trajectory dataset")

	cmd.AddCommand(
		collectCommand(),
		trainCommand(),
		evalCommand(),
	)
	return cmd
}

func collectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect demonstration trajectories from scripted cooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			rng := newRng()
			env, err := loadEnv()
			if err != nil {
				return err
			}

			cooks := [2]*kitchen.GreedyCook{
				kitchen.NewGreedyCook(0, epsilon, rng),
				kitchen.NewGreedyCook(1, epsilon, rng),
			}
			ts := dataset.Collect(env, cooks, episodes)
			if err := dataset.Save(ts, dataPath); err != nil {
				return err
			}
			fmt.Printf("collected %d samples over %d episodes -> %s\n", ts.N(), episodes, dataPath)
			return nil
		},
	}

	cmd.Flags().IntVar(&episodes, "episodes", 100, "Number of demonstration episodes")
	cmd.Flags().Float64Var(&epsilon, "epsilon", 0.1, "Random-move probability of the scripted cooks")
	return cmd
}

func trainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train agents on a trajectory dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			rng := newRng()

			ts, err := dataset.Load(dataPath)
			if err != nil {
				return err
			}

			// 環境は軌跡を収集したレイアウトとホライゾンに合わせる。
			l, err := kitchen.LoadDefaultLayout(ts.LayoutName)
			if err != nil {
				return err
			}
			env := kitchen.NewEnv(l, ts.Horizon)

			if err := os.MkdirAll(checkpointDir, 0755); err != nil {
				return err
			}

			tr, err := trainer.New(ts, env, trainer.Config{
				HiddenDim:     hiddenDim,
				LearningRate:  float32(learningRate),
				BatchSize:     batchSize,
				UseSubtasks:   useSubtasks,
				Parallel:      parallelism,
				EvalTrials:    evalTrials,
				CheckpointDir: checkpointDir,
			}, rng)
			if err != nil {
				return err
			}

			if metricsPath != "" {
				sink, err := trainer.NewJSONLSink(metricsPath)
				if err != nil {
					return err
				}
				defer sink.Close()
				tr.Sink = sink
			}

			if err := tr.TrainAgents(epochs, expName); err != nil {
				return err
			}

			trueReward, shapedReward, err := tr.Evaluate(evalTrials, false)
			if err != nil {
				return err
			}
			fmt.Printf("final greedy eval: true=%.2f shaped=%.2f\n", trueReward, shapedReward)
			return nil
		},
	}

	cmd.Flags().IntVar(&epochs, "epochs", 100, "Number of training epochs")
	cmd.Flags().IntVar(&batchSize, "batch-size", 64, "Mini-batch size")
	cmd.Flags().Float64Var(&learningRate, "lr", 0.001, "Adam learning rate")
	cmd.Flags().IntVar(&hiddenDim, "hidden", 64, "Hidden layer width")
	cmd.Flags().BoolVar(&useSubtasks, "use-subtasks", true, "Enable the subtask prediction head")
	cmd.Flags().IntVar(&parallelism, "parallel", 4, "Number of gradient workers")
	cmd.Flags().IntVar(&evalTrials, "eval-trials", 5, "Rollouts per evaluation")
	cmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "checkpoints", "Directory for checkpoints")
	cmd.Flags().StringVar(&metricsPath, "metrics", "", "JSONL metrics file (empty to disable)")
	cmd.Flags().StringVar(&expName, "exp-name", "bc", "Experiment name recorded with each metric point")
	return cmd
}

func evalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate saved agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			rng := newRng()
			env, err := loadEnv()
			if err != nil {
				return err
			}

			agents := [2]*bc.Agent{}
			for i := range agents {
				agents[i], err = bc.LoadAgent(checkpointDir, tag, i)
				if err != nil {
					return err
				}
			}

			trueReward, shapedReward, err := trainer.Rollout(env, agents, trials, sample, rng)
			if err != nil {
				return err
			}
			fmt.Printf("true=%.2f shaped=%.2f over %d trials\n", trueReward, shapedReward, trials)
			return nil
		},
	}

	cmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "checkpoints", "Directory with checkpoints")
	cmd.Flags().StringVar(&tag, "tag", "best_reward", "Checkpoint tag")
	cmd.Flags().IntVar(&trials, "trials", 10, "Number of evaluation episodes")
	cmd.Flags().BoolVar(&sample, "sample", false, "Sample actions instead of greedy selection")
	return cmd
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
