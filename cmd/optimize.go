package cmd

import (
	"fmt"

	"github.com/helmcode/gcpulse/pkg/formatter"
	"github.com/spf13/cobra"
)

func NewOptimizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize RESULT.json",
		Short: "Get AI optimization suggestions for a saved analysis",
		Long: `Send a previously saved analysis result to the AI and print tuning suggestions.

Examples:
  gcpulse analyze gc.log -o json > result.json
  gcpulse optimize result.json --model gpt-4o`,
		Args: cobra.ExactArgs(1),
		RunE: runOptimize,
	}
	addOverrideFlags(cmd)
	return cmd
}

func runOptimize(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	result, err := loadAnalysis(args[0])
	if err != nil {
		return err
	}
	client, err := s.diagnosisClient()
	if err != nil {
		return err
	}

	printHeader("AI Optimization Suggestions",
		fmt.Sprintf("📄 Analysis: %s (%s)", result.FileName, result.CollectorType))

	sp := newSpinner(" Asking the AI for suggestions...")
	sp.Start()
	resp, err := client.Optimize(cmd.Context(), result, s.overrides())
	sp.Stop()
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}

	if err := formatter.DisplayDiagnosis(cmd.OutOrStdout(), resp, outputFormat); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("optimization failed: %s", resp.Error)
	}
	return nil
}
