package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/analysis"
)

var analyzeSkipCache bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Run competitor content analysis for a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		if analyzeSkipCache {
			key, err := analysis.CanonicalizeURL(args[0])
			if err != nil {
				return err
			}
			report, usage, err := env.Pipeline.RunCompetitor(ctx, key)
			if err != nil {
				return err
			}
			zap.L().Info("analysis complete (cache bypassed)",
				zap.Int("total_tokens", usage.Total()),
			)
			return printJSON(report)
		}

		report, cached, err := env.Analyzer.Analyze(ctx, args[0])
		if err != nil {
			return err
		}
		zap.L().Info("analysis complete", zap.Bool("cached", cached))
		return printJSON(report)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeSkipCache, "no-cache", false, "bypass the analysis cache")
	rootCmd.AddCommand(analyzeCmd)
}
