package cmd

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/namesLeon/trivialaugment/metrics"
	"github.com/namesLeon/trivialaugment/stats"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Aggregate final metrics across repeated runs",
	Long: `Aggregate the final metric of repeated runs into a mean and a 95%
confidence interval. Metric logs are grouped by tag: run logs named
<tag>_<n>.metrics.jsonl fall into the group <tag>.`,
	RunE: runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)

	resultsCmd.Flags().String("logs", "", "Glob of metric logs to aggregate")
	resultsCmd.Flags().String("values", "", "Comma-separated metric values to aggregate directly")
	resultsCmd.Flags().String("metric", "", "Metric name to aggregate (default eval/accuracy)")
}

// runSuffix is the per-run counter a batch appends to its tag.
var runSuffix = regexp.MustCompile(`_\d+$`)

func runResults(cmd *cobra.Command, args []string) error {
	logsGlob, _ := cmd.Flags().GetString("logs")
	valuesArg, _ := cmd.Flags().GetString("values")

	metric := viper.GetString("metric")
	if flagMetric, _ := cmd.Flags().GetString("metric"); flagMetric != "" {
		metric = flagMetric
	}

	switch {
	case valuesArg != "" && logsGlob != "":
		return fmt.Errorf("--values and --logs are mutually exclusive")
	case valuesArg != "":
		values, err := parseValues(valuesArg)
		if err != nil {
			return err
		}
		summary, err := stats.Aggregate(values)
		if err != nil {
			return err
		}
		fmt.Println(summary)
		return nil
	case logsGlob != "":
		return aggregateLogs(logsGlob, metric)
	default:
		return fmt.Errorf("either --logs or --values is required")
	}
}

func parseValues(arg string) ([]float64, error) {
	parts := strings.Split(arg, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid metric value %q: %v", part, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func aggregateLogs(glob, metric string) error {
	paths, err := filepath.Glob(glob)
	if err != nil {
		return fmt.Errorf("bad glob %q: %v", glob, err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no metric logs match %q", glob)
	}
	sort.Strings(paths)

	groups := map[string][]string{}
	for _, path := range paths {
		tag := strings.TrimSuffix(filepath.Base(path), ".metrics.jsonl")
		group := runSuffix.ReplaceAllString(tag, "")
		groups[group] = append(groups[group], path)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values, err := metrics.FinalValues(groups[name], metric)
		if err != nil {
			return err
		}
		summary, err := stats.Aggregate(values)
		if err != nil {
			return fmt.Errorf("group %s: %v", name, err)
		}
		fmt.Printf("%-30s %s %s\n", name, metric, summary)
	}
	return nil
}
