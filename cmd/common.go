package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/helmcode/gcpulse/pkg/api"
	"github.com/helmcode/gcpulse/pkg/config"
	"github.com/helmcode/gcpulse/pkg/formatter"
	"github.com/helmcode/gcpulse/pkg/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	configPath   string
	baseURL      string
	outputFormat string
	verbose      bool

	// AI overrides shared by diagnose, optimize, analyze and serve.
	aiAPIURL string
	aiAPIKey string
	aiModel  string
)

// AddGlobalFlags registers the flags every command understands.
func AddGlobalFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default ~/.gcpulse.yaml)")
	flags.StringVar(&baseURL, "base-url", "", "Backend base URL (default http://localhost:8080/api)")
	flags.StringVarP(&outputFormat, "output", "o", formatter.FormatHuman, "Output format (human, json, yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
}

func addOverrideFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&aiAPIURL, "api-url", "", "AI API URL (overrides the backend default)")
	cmd.Flags().StringVar(&aiAPIKey, "api-key", "", "AI API key (overrides the backend default)")
	cmd.Flags().StringVar(&aiModel, "model", "", "AI model (overrides the backend default)")
}

// session is the per-invocation state shared by all commands.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newSession() (*session, error) {
	if !formatter.ValidFormat(outputFormat) {
		return nil, fmt.Errorf("unsupported output format %q (supported: human, json, yaml)", outputFormat)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	formatter.Styled = isTerminal(os.Stdout)
	return &session{cfg: cfg, logger: logger}, nil
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zcfg.Level = lvl
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func (s *session) close() {
	_ = s.logger.Sync()
}

func (s *session) options(timeout time.Duration) api.Options {
	return api.Options{
		BaseURL: s.cfg.BaseURL,
		Timeout: timeout,
		Logger:  s.logger,
	}
}

func (s *session) analysisClient() (*api.AnalysisClient, error) {
	return api.NewAnalysisClient(s.options(s.cfg.Analysis.Timeout))
}

func (s *session) diagnosisClient() (*api.DiagnosisClient, error) {
	c, err := api.NewDiagnosisClient(s.options(s.cfg.Diagnosis.Timeout))
	if err != nil {
		return nil, err
	}
	return c.WithOptimizeTimeout(s.cfg.Diagnosis.OptimizeTimeout), nil
}

// overrides merges the --api-* flags over the configured AI defaults.
func (s *session) overrides() api.Overrides {
	o := api.Overrides{
		APIURL: s.cfg.Diagnosis.APIURL,
		APIKey: s.cfg.Diagnosis.APIKey,
		Model:  s.cfg.Diagnosis.Model,
	}
	if aiAPIURL != "" {
		o.APIURL = aiAPIURL
	}
	if aiAPIKey != "" {
		o.APIKey = aiAPIKey
	}
	if aiModel != "" {
		o.Model = aiModel
	}
	return o
}

func human() bool {
	return outputFormat == formatter.FormatHuman
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// newSpinner writes to stderr so machine-readable stdout stays clean.
func newSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = suffix
	return s
}

func setSuffix(s *spinner.Spinner, suffix string) {
	s.Lock()
	s.Suffix = suffix
	s.Unlock()
}

// loadAnalysis reads an analysis result saved from `gcpulse analyze -o json`,
// the backend's {"data": ...} envelope, or a bare result object.
func loadAnalysis(path string) (*model.AnalysisResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var wrapped struct {
		Analysis json.RawMessage `json:"analysis"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	switch {
	case len(wrapped.Analysis) > 0 && string(wrapped.Analysis) != "null":
		data = wrapped.Analysis
	case len(wrapped.Data) > 0 && string(wrapped.Data) != "null":
		data = wrapped.Data
	}

	var result model.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &result, nil
}

// writeDownload saves an export. An empty path falls back to the file name
// the backend suggested.
func writeDownload(path string, dl *model.Download) (string, error) {
	if path == "" {
		path = dl.Filename
	}
	if path == "" {
		return "", fmt.Errorf("no output file given and the backend did not suggest one")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, dl.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func printHeader(title string, details ...string) {
	if !human() {
		return
	}
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Println()
	cyan.Printf("🔍 %s\n", title)
	for _, d := range details {
		fmt.Printf("   %s\n", d)
	}
	fmt.Println()
}

func printSuccess(msg string) {
	if !human() {
		return
	}
	green := color.New(color.FgGreen)
	green.Printf("✓ %s\n", msg)
}

func printWarning(msg string) {
	yellow := color.New(color.FgYellow)
	yellow.Fprintf(os.Stderr, "! %s\n", msg)
}
