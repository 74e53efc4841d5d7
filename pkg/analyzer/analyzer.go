package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/helmcode/gcpulse/pkg/api"
	"github.com/helmcode/gcpulse/pkg/model"
	"go.uber.org/zap"
)

// ErrSuggestionsFailed is returned when the backend answered the optimize
// call but reported the AI step as unsuccessful.
var ErrSuggestionsFailed = errors.New("optimization suggestions failed")

// LogAnalyzer uploads a GC log for analysis.
type LogAnalyzer interface {
	Analyze(ctx context.Context, file *api.FileUpload, progress api.ProgressFunc) (*model.AnalysisResult, error)
}

// Optimizer produces AI suggestions for an analysis.
type Optimizer interface {
	Optimize(ctx context.Context, result *model.AnalysisResult, o api.Overrides) (*model.DiagnosisResponse, error)
}

type Analyzer struct {
	gc     LogAnalyzer
	ai     Optimizer
	logger *zap.Logger
}

type Options struct {
	// Optimize requests AI suggestions once the analysis is back.
	Optimize  bool
	Overrides api.Overrides
	Progress  api.ProgressFunc
}

// New creates an analyzer. ai may be nil when suggestions are never
// requested.
func New(gc LogAnalyzer, ai Optimizer, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{gc: gc, ai: ai, logger: logger}
}

// Run analyses file and, when asked, fetches optimization suggestions for
// the result. A failed analysis fails the run. A failed suggestion step
// still returns the report with the analysis alongside the error.
func (a *Analyzer) Run(ctx context.Context, file *api.FileUpload, opts Options) (*model.Report, error) {
	result, err := a.gc.Analyze(ctx, file, opts.Progress)
	if err != nil {
		return nil, fmt.Errorf("GC analysis: %w", err)
	}
	report := &model.Report{Analysis: result}
	a.logger.Info("Analysis complete",
		zap.String("file", result.FileName),
		zap.String("collector", result.CollectorType),
		zap.Int("events", result.EventCount()))

	if !opts.Optimize {
		return report, nil
	}
	if a.ai == nil {
		return report, fmt.Errorf("%w: no diagnosis client configured", ErrSuggestionsFailed)
	}

	resp, err := a.ai.Optimize(ctx, result, opts.Overrides)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrSuggestionsFailed, err)
	}
	report.Suggestions = resp
	if !resp.Success {
		return report, fmt.Errorf("%w: %s", ErrSuggestionsFailed, resp.Error)
	}
	a.logger.Info("Suggestions received", zap.Int64("process_time_ms", resp.ProcessTime))
	return report, nil
}
