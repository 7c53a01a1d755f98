package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/namesLeon/trivialaugment/config"
	"github.com/namesLeon/trivialaugment/experiment"
	"github.com/namesLeon/trivialaugment/stats"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run a batch of seed-varied training runs",
	Long: `Run the same configuration several times with different seeds,
one run after another, and summarize the final metrics. A failed run does not
stop the batch; its slot is reported as failed and the next run starts.`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().String("tag", "", "Batch tag; each run is tagged <tag>_<n> (required)")
	batchCmd.Flags().Int("runs", 0, "Number of repetitions (required)")
	batchCmd.Flags().String("outdir", "", "Directory for checkpoints and metric logs (required)")
	batchCmd.Flags().Uint64("seed", 0, "Base seed; run n uses seed base+n")
	batchCmd.MarkFlagRequired("tag")
	batchCmd.MarkFlagRequired("runs")
	batchCmd.MarkFlagRequired("outdir")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	tag, _ := cmd.Flags().GetString("tag")
	runs, _ := cmd.Flags().GetInt("runs")
	outDir, _ := cmd.Flags().GetString("outdir")
	baseSeed, _ := cmd.Flags().GetUint64("seed")
	if !cmd.Flags().Changed("seed") {
		baseSeed = cfg.Seed
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}

	runner, err := experiment.NewRunner(func(run experiment.Run) (float64, error) {
		runCfg := cfg.Apply(config.Overrides{Seed: run.Seed, SeedSet: true})
		return executeRun(runCfg, run.Tag, run.SavePath, outDir, false)
	}, os.Stdout)
	if err != nil {
		return err
	}

	report, err := runner.Execute(experiment.Batch{
		Tag:      tag,
		Runs:     runs,
		BaseSeed: baseSeed,
		OutDir:   outDir,
	})
	if err != nil {
		return err
	}

	if metrics := report.FinalMetrics(); len(metrics) >= 2 {
		summary, err := stats.Aggregate(metrics)
		if err != nil {
			return err
		}
		fmt.Printf("Final eval accuracy: %s\n", summary)
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d runs failed", report.Failed, len(report.Results))
	}
	return nil
}
