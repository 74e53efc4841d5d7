package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/helmcode/gcpulse/pkg/analyzer"
	"github.com/helmcode/gcpulse/pkg/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr          string
	serveMaxUploadSize int64
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload and result pages",
		Long: `Start a small web UI: upload a GC log at / and read the analysis at /result.

Examples:
  gcpulse serve --addr :8081
  gcpulse serve --base-url https://gcpulse.internal/api --model gpt-4o`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default :8081)")
	cmd.Flags().Int64Var(&serveMaxUploadSize, "max-upload-size", web.DefaultMaxUploadSize, "Largest accepted upload in bytes")
	addOverrideFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
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

	addr := serveAddr
	if addr == "" {
		addr = s.cfg.Server.Addr
	}
	srv := &http.Server{
		Addr: addr,
		Handler: web.NewRouter(web.Deps{
			Analyzer:      analyzer.New(gc, ai, s.logger),
			Exporter:      gc,
			Overrides:     s.overrides(),
			Logger:        s.logger,
			MaxUploadSize: serveMaxUploadSize,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		printSuccess(fmt.Sprintf("Serving on %s (backend %s)", addr, gc.BaseURL()))
		s.logger.Info("Starting web server", zap.String("addr", addr), zap.String("backend", gc.BaseURL()))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
