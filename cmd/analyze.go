package cmd

import (
	"errors"
	"fmt"

	"github.com/helmcode/gcpulse/pkg/analyzer"
	"github.com/helmcode/gcpulse/pkg/api"
	"github.com/helmcode/gcpulse/pkg/formatter"
	"github.com/helmcode/gcpulse/pkg/model"
	"github.com/helmcode/gcpulse/pkg/render"
	"github.com/spf13/cobra"
)

var (
	analyzeOptimize   bool
	analyzeExportHTML string
)

func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Analyze a GC log",
		Long: `Upload a JVM garbage collection log to the backend and print the analysis.

Examples:
  # Analyze a log
  gcpulse analyze gc.log

  # Ask the AI for tuning suggestions as well
  gcpulse analyze gc.log --optimize --model gpt-4o

  # Save the result for later optimize/export calls
  gcpulse analyze gc.log -o json > result.json

  # Export the analysis as a standalone HTML report
  gcpulse analyze gc.log --export-html report.html`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().BoolVar(&analyzeOptimize, "optimize", false, "Request AI optimization suggestions for the result")
	cmd.Flags().StringVar(&analyzeExportHTML, "export-html", "", "Export the analysis as HTML to this file")
	addOverrideFlags(cmd)

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	gc, err := s.analysisClient()
	if err != nil {
		return err
	}
	var ai analyzer.Optimizer
	if analyzeOptimize {
		d, err := s.diagnosisClient()
		if err != nil {
			return err
		}
		ai = d
	}

	file, err := api.OpenFile(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	printHeader("GC Log Analysis",
		fmt.Sprintf("📄 File: %s (%s)", file.Name, model.FormatBytes(file.Size)),
		fmt.Sprintf("🌐 Backend: %s", gc.BaseURL()))

	sp := newSpinner(fmt.Sprintf(" Uploading %s...", file.Name))
	progress := func(pct int) {
		if pct == 100 {
			setSuffix(sp, " Analyzing GC log...")
			return
		}
		setSuffix(sp, fmt.Sprintf(" Uploading %s... %d%%", file.Name, pct))
	}
	sp.Start()

	opts := analyzer.Options{Optimize: analyzeOptimize, Overrides: s.overrides(), Progress: progress}
	report, runErr := analyzer.New(gc, ai, s.logger).Run(cmd.Context(), file, opts)
	sp.Stop()
	if report == nil {
		return fmt.Errorf("analysis failed: %w", runErr)
	}
	printSuccess("Analysis complete")
	if errors.Is(runErr, analyzer.ErrSuggestionsFailed) {
		printWarning(runErr.Error())
	}

	if analyzeExportHTML != "" {
		if err := exportAnalysis(cmd, gc, report.Analysis, analyzeExportHTML); err != nil {
			return err
		}
	}

	if err := formatter.DisplayReport(cmd.OutOrStdout(), report, outputFormat); err != nil {
		return err
	}
	return runErr
}

func exportAnalysis(cmd *cobra.Command, gc *api.AnalysisClient, result *model.AnalysisResult, path string) error {
	html, err := render.AnalysisHTML(result)
	if err != nil {
		return err
	}

	sp := newSpinner(" Exporting HTML report...")
	sp.Start()
	dl, err := gc.ExportHTML(cmd.Context(), html, result)
	sp.Stop()
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	written, err := writeDownload(path, dl)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Report written to %s", written))
	return nil
}
