package cmd

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/namesLeon/trivialaugment/augment"
	"github.com/namesLeon/trivialaugment/checkpoints"
	"github.com/namesLeon/trivialaugment/config"
	"github.com/namesLeon/trivialaugment/dataset"
	"github.com/namesLeon/trivialaugment/metrics"
	"github.com/namesLeon/trivialaugment/model"
	"github.com/namesLeon/trivialaugment/training"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run one training run",
	Long: `Run a single training run from a YAML configuration.
If --save names an existing checkpoint, training resumes after its epoch.`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().String("tag", "", "Run tag; names the metric log (required)")
	trainCmd.Flags().String("save", "", "Checkpoint path; empty disables checkpointing")
	trainCmd.Flags().Uint64("seed", 0, "RNG seed (overrides the config file)")
	trainCmd.Flags().String("logdir", ".", "Directory for the metric log")
	trainCmd.MarkFlagRequired("tag")
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	tag, _ := cmd.Flags().GetString("tag")
	savePath, _ := cmd.Flags().GetString("save")
	logDir, _ := cmd.Flags().GetString("logdir")

	final, err := executeRun(*cfg, tag, savePath, logDir, true)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s finished: final eval accuracy %.4f\n", tag, final)
	return nil
}

// loadRunConfig reads the configuration file named by --config and applies the
// command-line overrides.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		return nil, fmt.Errorf("a configuration file is required (--config)")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	overrides := config.Overrides{DataRoot: viper.GetString("dataroot")}
	if cmd.Flags().Changed("seed") {
		overrides.Seed, _ = cmd.Flags().GetUint64("seed")
		overrides.SeedSet = true
	}
	applied := cfg.Apply(overrides)
	return &applied, nil
}

// teeRecorder forwards each metric record to the persistent log and keeps it
// in memory so the final value can be reported without re-reading the file.
type teeRecorder struct {
	logger *metrics.Logger
	mem    *metrics.Memory
}

func (r *teeRecorder) Log(epoch int, name string, value float64) error {
	if err := r.logger.Log(epoch, name, value); err != nil {
		return err
	}
	return r.mem.Log(epoch, name, value)
}

// executeRun assembles the dataset, model, optimizer, schedule, and policy
// from the configuration and drives one training run to completion. It
// returns the final eval accuracy.
func executeRun(cfg config.Config, tag, savePath, logDir string, verbose bool) (float64, error) {
	train, eval, err := buildSplits(cfg)
	if err != nil {
		return 0, err
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, 0))
	clf, err := model.NewClassifier(cfg.Model.Features, cfg.Model.Hidden, cfg.Model.Classes, rng)
	if err != nil {
		return 0, fmt.Errorf("failed to build model: %v", err)
	}

	opt, err := buildOptimizer(cfg.Optimizer)
	if err != nil {
		return 0, err
	}
	sched, err := buildScheduler(cfg)
	if err != nil {
		return 0, err
	}
	policy, err := augment.ForName(cfg.Augmentation)
	if err != nil {
		return 0, err
	}

	var store *checkpoints.Store
	if savePath != "" {
		store = checkpoints.NewStore(savePath)
	}

	logger, err := metrics.NewLogger(filepath.Join(logDir, tag+".metrics.jsonl"))
	if err != nil {
		return 0, err
	}
	defer logger.Close()
	rec := &teeRecorder{logger: logger, mem: &metrics.Memory{}}

	opts := training.Options{
		Epochs:             cfg.Epochs,
		BatchSize:          cfg.BatchSize,
		BaseLR:             cfg.Optimizer.LR,
		CheckpointInterval: cfg.CheckpointInterval,
		Seed:               cfg.Seed,
		Tag:                tag,
		ConfigDigest:       cfg.Digest(),
		Verbose:            verbose,
	}
	trainer, err := training.NewTrainer(clf, opt, policy, sched, opts, store, rec)
	if err != nil {
		return 0, err
	}

	if err := trainer.Run(train, eval); err != nil {
		return 0, err
	}

	final, ok := metrics.FinalValue(rec.mem.Records, "eval/accuracy")
	if !ok {
		// The checkpoint already covered every epoch, so no evaluation ran
		// this invocation. Pull the metric from the persisted log instead.
		records, err := metrics.ReadFile(filepath.Join(logDir, tag+".metrics.jsonl"))
		if err != nil {
			return 0, err
		}
		final, ok = metrics.FinalValue(records, "eval/accuracy")
		if !ok {
			return 0, fmt.Errorf("run %s produced no eval/accuracy records", tag)
		}
	}
	return final, nil
}

func buildSplits(cfg config.Config) (training.Dataset, training.Dataset, error) {
	switch cfg.Dataset.Name {
	case "cifar10":
		train, eval, err := dataset.LoadCIFAR10(cfg.Dataset.Root)
		if err != nil {
			return nil, nil, err
		}
		return train, eval, nil
	case "synthetic":
		ds, err := dataset.Synthetic(cfg.Dataset.Samples, cfg.Model.Features, cfg.Model.Classes, cfg.Seed)
		if err != nil {
			return nil, nil, err
		}
		train, eval, err := ds.Split(cfg.Dataset.Holdout)
		if err != nil {
			return nil, nil, err
		}
		return train, eval, nil
	default:
		return nil, nil, fmt.Errorf("unknown dataset %q", cfg.Dataset.Name)
	}
}

func buildOptimizer(cfg config.OptimizerConfig) (training.Optimizer, error) {
	switch cfg.Kind {
	case "sgd":
		return training.NewSGD(training.SGDConfig{
			LearningRate: cfg.LR,
			Momentum:     cfg.Momentum,
			WeightDecay:  cfg.WeightDecay,
			Nesterov:     cfg.Nesterov,
		}), nil
	case "adam":
		return training.NewAdam(training.AdamConfig{
			LearningRate: cfg.LR,
			Beta1:        cfg.Beta1,
			Beta2:        cfg.Beta2,
			Epsilon:      cfg.Epsilon,
			WeightDecay:  cfg.WeightDecay,
		}), nil
	default:
		return nil, fmt.Errorf("unknown optimizer kind %q", cfg.Kind)
	}
}

func buildScheduler(cfg config.Config) (training.LRScheduler, error) {
	switch cfg.LRSchedule.Kind {
	case "constant":
		return training.ConstantLR{}, nil
	case "step":
		return training.NewStepLR(cfg.LRSchedule.StepSize, cfg.LRSchedule.Gamma), nil
	case "cosine":
		return training.NewCosineLR(cfg.Epochs, cfg.LRSchedule.MinLR), nil
	default:
		return nil, fmt.Errorf("unknown lr_schedule kind %q", cfg.LRSchedule.Kind)
	}
}
