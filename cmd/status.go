package cmd

import (
	"fmt"

	"github.com/helmcode/gcpulse/pkg/formatter"
	"github.com/helmcode/gcpulse/pkg/model"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend health, supported collectors and AI configuration",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func NewCollectorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collectors",
		Short: "List the garbage collectors the backend can analyze",
		Args:  cobra.NoArgs,
		RunE:  runCollectors,
	}
}

func NewConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the AI defaults configured on the backend",
		Args:  cobra.NoArgs,
		RunE:  runConfig,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	gc, err := s.analysisClient()
	if err != nil {
		return err
	}
	ai, err := s.diagnosisClient()
	if err != nil {
		return err
	}

	sp := newSpinner(fmt.Sprintf(" Contacting %s...", gc.BaseURL()))
	sp.Start()

	var status model.Status
	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() (err error) {
		status.Health, err = gc.Health(ctx)
		return err
	})
	g.Go(func() (err error) {
		status.Collectors, err = gc.Collectors(ctx)
		return err
	})
	g.Go(func() (err error) {
		status.AIConfig, err = ai.Config(ctx)
		return err
	})
	err = g.Wait()
	sp.Stop()
	if err != nil {
		return fmt.Errorf("backend status check failed: %w", err)
	}

	return formatter.DisplayStatus(cmd.OutOrStdout(), &status, outputFormat)
}

func runCollectors(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	gc, err := s.analysisClient()
	if err != nil {
		return err
	}
	collectors, err := gc.Collectors(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list collectors: %w", err)
	}
	return formatter.DisplayCollectors(cmd.OutOrStdout(), collectors, outputFormat)
}

func runConfig(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	ai, err := s.diagnosisClient()
	if err != nil {
		return err
	}
	cfg, err := ai.Config(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read AI configuration: %w", err)
	}
	return formatter.DisplayConfig(cmd.OutOrStdout(), cfg, outputFormat)
}
