package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "trivialaugment",
	Short: "TrivialAugment training orchestrator",
	Long: `Trains image classifiers with TrivialAugment data augmentation.
Supports checkpoint/resume, sequential experiment batches, and
aggregation of repeated-run results with confidence intervals.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML run configuration")
	rootCmd.PersistentFlags().String("dataroot", "", "Dataset root directory (overrides the config file)")
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("dataroot", rootCmd.PersistentFlags().Lookup("dataroot"))
}

func initConfig() {
	// Environment variables
	viper.SetEnvPrefix("TA")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("metric", "eval/accuracy")
}
