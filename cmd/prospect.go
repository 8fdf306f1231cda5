package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
)

var prospectCmd = &cobra.Command{
	Use:   "prospect <url>",
	Short: "Run prospect extraction for a URL synchronously",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Store.CreateJob(ctx, args[0])
		if err != nil {
			return err
		}
		if err := env.Store.ClaimJob(ctx, job.ID); err != nil {
			return err
		}

		out, err := env.Pipeline.RunProspect(ctx, job.ID, args[0])
		if err != nil {
			if ferr := env.Store.FailJob(ctx, job.ID, err.Error()); ferr != nil {
				zap.L().Warn("record failure", zap.Error(ferr))
			}
			return err
		}

		result := &model.JobResult{
			Summary:     out.Summary,
			Prospects:   out.Prospects,
			TotalTokens: out.Usage.Total(),
			TotalCost:   out.CostUSD,
		}
		if err := env.Store.CompleteJob(ctx, job.ID, result); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(prospectCmd)
}
