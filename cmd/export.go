package cmd

import (
	"fmt"
	"os"

	"github.com/helmcode/gcpulse/pkg/api"
	"github.com/helmcode/gcpulse/pkg/model"
	"github.com/helmcode/gcpulse/pkg/render"
	"github.com/spf13/cobra"
)

var (
	exportOutput    string
	exportFormat    string
	exportCollector string
	exportEvents    int
)

func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export reports through the backend",
	}
	cmd.AddCommand(newExportAnalysisCmd(), newExportDiagnosisCmd())
	return cmd
}

func newExportAnalysisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analysis RESULT.json",
		Short: "Export a saved analysis as an HTML report",
		Long: `Render a saved analysis and have the backend package it as an HTML report.

Examples:
  gcpulse export analysis result.json -f report.html`,
		Args: cobra.ExactArgs(1),
		RunE: runExportAnalysis,
	}
	cmd.Flags().StringVarP(&exportOutput, "file", "f", "", "Output file (default: name suggested by the backend)")
	return cmd
}

func newExportDiagnosisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnosis DIAGNOSIS.md",
		Short: "Export a markdown diagnosis as HTML or markdown",
		Long: `Have the backend package an AI diagnosis as a downloadable report.

Examples:
  gcpulse export diagnosis diagnosis.md --format html -f diagnosis.html
  gcpulse export diagnosis diagnosis.md --format markdown --collector ZGC --events 120`,
		Args: cobra.ExactArgs(1),
		RunE: runExportDiagnosis,
	}
	cmd.Flags().StringVarP(&exportOutput, "file", "f", "", "Output file (default: name suggested by the backend)")
	cmd.Flags().StringVar(&exportFormat, "format", "html", "Export format (html, markdown)")
	cmd.Flags().StringVar(&exportCollector, "collector", "", "Collector type to mention in the report")
	cmd.Flags().IntVar(&exportEvents, "events", 0, "Number of GC events to mention in the report")
	return cmd
}

func runExportAnalysis(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	result, err := loadAnalysis(args[0])
	if err != nil {
		return err
	}
	gc, err := s.analysisClient()
	if err != nil {
		return err
	}
	return exportAnalysis(cmd, gc, result, exportOutput)
}

func runExportDiagnosis(cmd *cobra.Command, args []string) error {
	if exportFormat != "html" && exportFormat != "markdown" {
		return fmt.Errorf("unsupported export format %q (supported: html, markdown)", exportFormat)
	}

	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	md, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	client, err := s.diagnosisClient()
	if err != nil {
		return err
	}

	req := api.ExportDiagnosisRequest{
		Diagnosis:     string(md),
		CollectorType: exportCollector,
	}
	if cmd.Flags().Changed("events") {
		events := exportEvents
		req.EventCount = &events
	}

	sp := newSpinner(fmt.Sprintf(" Exporting %s report...", exportFormat))
	sp.Start()
	var dl *model.Download
	if exportFormat == "html" {
		req.RenderedHTML = render.DiagnosisHTML(req.Diagnosis)
		dl, err = client.ExportHTML(cmd.Context(), req)
	} else {
		dl, err = client.ExportMarkdown(cmd.Context(), req)
	}
	sp.Stop()
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	written, err := writeDownload(exportOutput, dl)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Report written to %s", written))
	return nil
}
