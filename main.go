package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/helmcode/gcpulse/cmd"
	"github.com/spf13/cobra"
)

var (
	version = "v0.1.0" // Overwritten at build time
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gcpulse",
		Short: "JVM GC log analysis and AI diagnosis",
		Long: `gcpulse uploads JVM garbage collection logs to a GCPulse backend, prints
the analysis, asks an AI for tuning suggestions and exports reports.`,
		SilenceUsage: true,
	}

	// Disable automatic 'completion' command added by cobra
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	cmd.AddGlobalFlags(rootCmd)
	rootCmd.AddCommand(
		cmd.NewAnalyzeCmd(),
		cmd.NewDiagnoseCmd(),
		cmd.NewOptimizeCmd(),
		cmd.NewExportCmd(),
		cmd.NewStatusCmd(),
		cmd.NewCollectorsCmd(),
		cmd.NewConfigCmd(),
		cmd.NewServeCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gcpulse version %s\n", version)
		},
	}
}
