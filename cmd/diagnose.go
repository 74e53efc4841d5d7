package cmd

import (
	"fmt"

	"github.com/helmcode/gcpulse/pkg/api"
	"github.com/helmcode/gcpulse/pkg/formatter"
	"github.com/spf13/cobra"
)

var (
	diagnoseCollector string
	diagnoseEvents    int
)

func NewDiagnoseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose FILE",
		Short: "Get an AI diagnosis of a GC log",
		Long: `Send a GC log straight to the AI diagnosis endpoint.

Examples:
  # Use the backend's AI defaults
  gcpulse diagnose gc.log

  # Point the backend at another provider for this call
  gcpulse diagnose gc.log --api-url https://api.deepseek.com --model deepseek-chat --api-key $KEY

  # Give the model context from a previous analysis
  gcpulse diagnose gc.log --collector G1GC --events 50`,
		Args: cobra.ExactArgs(1),
		RunE: runDiagnose,
	}

	cmd.Flags().StringVar(&diagnoseCollector, "collector", "", "Collector type detected for this log (e.g. G1GC)")
	cmd.Flags().IntVar(&diagnoseEvents, "events", 0, "Number of GC events in the log")
	addOverrideFlags(cmd)

	return cmd
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	client, err := s.diagnosisClient()
	if err != nil {
		return err
	}

	file, err := api.OpenFile(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	overrides := s.overrides()
	details := []string{fmt.Sprintf("📄 File: %s", file.Name)}
	if overrides.Model != "" {
		details = append(details, fmt.Sprintf("🧠 Model: %s", overrides.Model))
	}
	printHeader("AI GC Diagnosis", details...)

	sp := newSpinner(" Waiting for the AI diagnosis...")
	sp.Start()
	resp, err := client.Diagnose(cmd.Context(), api.DiagnoseRequest{
		File:          file,
		Overrides:     overrides,
		CollectorType: diagnoseCollector,
		EventCount:    diagnoseEvents,
	})
	sp.Stop()
	if err != nil {
		return fmt.Errorf("diagnosis failed: %w", err)
	}

	if err := formatter.DisplayDiagnosis(cmd.OutOrStdout(), resp, outputFormat); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("diagnosis failed: %s", resp.Error)
	}
	return nil
}
