package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/helmcode/gcpulse/pkg/model"
)

const (
	DiagnosisTimeout = 90 * time.Second
	OptimizeTimeout  = 120 * time.Second
)

// Overrides replace the backend's AI settings for a single call. Empty fields
// are not sent, leaving the backend default in effect.
type Overrides struct {
	APIURL string
	APIKey string
	Model  string
}

// DiagnoseRequest is the input of an AI diagnosis of a raw GC log.
type DiagnoseRequest struct {
	File *FileUpload
	Overrides
	// CollectorType is sent only when set.
	CollectorType string
	// EventCount is always sent, zero included.
	EventCount int
}

// ExportDiagnosisRequest is the input of the diagnosis export endpoints.
type ExportDiagnosisRequest struct {
	// RenderedHTML is the diagnosis already rendered to HTML. Only the HTML
	// export uses it.
	RenderedHTML  string
	Diagnosis     string
	CollectorType string
	EventCount    *int
}

// DiagnosisClient talks to the AI diagnosis endpoints under /ai.
type DiagnosisClient struct {
	c               *Client
	optimizeTimeout time.Duration
}

// NewDiagnosisClient creates a client with a 90 second default timeout unless
// opts says otherwise.
func NewDiagnosisClient(opts Options) (*DiagnosisClient, error) {
	c, err := NewClient(opts, DiagnosisTimeout)
	if err != nil {
		return nil, err
	}
	return &DiagnosisClient{c: c, optimizeTimeout: OptimizeTimeout}, nil
}

// BaseURL returns the API root requests are resolved against.
func (d *DiagnosisClient) BaseURL() string {
	return d.c.BaseURL()
}

// WithOptimizeTimeout overrides the timeout of Optimize calls.
func (d *DiagnosisClient) WithOptimizeTimeout(timeout time.Duration) *DiagnosisClient {
	if timeout > 0 {
		d.optimizeTimeout = timeout
	}
	return d
}

// Config fetches the AI defaults configured on the backend.
func (d *DiagnosisClient) Config(ctx context.Context) (*model.DiagnosisConfig, error) {
	var cfg model.DiagnosisConfig
	if err := d.c.doJSON(ctx, call{method: http.MethodGet, path: "/ai/config"}, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Diagnose uploads a raw GC log for AI diagnosis.
func (d *DiagnosisClient) Diagnose(ctx context.Context, req DiagnoseRequest) (*model.DiagnosisResponse, error) {
	if req.File == nil || req.File.Reader == nil {
		return nil, ErrMissingFile
	}

	var f form
	f.addFile("file", req.File)
	f.addOptional("apiKey", req.APIKey)
	f.addOptional("apiUrl", req.APIURL)
	f.addOptional("model", req.Model)
	f.addOptional("collectorType", req.CollectorType)
	f.addInt("eventCount", req.EventCount)

	body, contentType, length, err := f.encode()
	if err != nil {
		return nil, err
	}

	var resp model.DiagnosisResponse
	err = d.c.doJSON(ctx, call{
		method:        http.MethodPost,
		path:          "/ai/diagnose",
		body:          body,
		contentType:   contentType,
		contentLength: length,
		getBody:       f.getBody(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Optimize asks for optimization suggestions based on a structured analysis
// result. The result travels as a JSON body while the overrides go in the
// query string, which is the shape the backend binds.
func (d *DiagnosisClient) Optimize(ctx context.Context, result *model.AnalysisResult, o Overrides) (*model.DiagnosisResponse, error) {
	if result == nil {
		return nil, fmt.Errorf("an analysis result is required")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis result: %w", err)
	}

	query := url.Values{}
	if o.APIKey != "" {
		query.Set("apiKey", o.APIKey)
	}
	if o.APIURL != "" {
		query.Set("apiUrl", o.APIURL)
	}
	if o.Model != "" {
		query.Set("model", o.Model)
	}

	var resp model.DiagnosisResponse
	err = d.c.doJSON(ctx, call{
		method:      http.MethodPost,
		path:        "/ai/optimize",
		query:       query,
		body:        bytes.NewReader(payload),
		contentType: "application/json",
		timeout:     d.optimizeTimeout,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExportHTML renders a diagnosis as a downloadable HTML document.
func (d *DiagnosisClient) ExportHTML(ctx context.Context, req ExportDiagnosisRequest) (*model.Download, error) {
	var f form
	f.addOptional("renderedHtml", req.RenderedHTML)
	f.add("diagnosis", req.Diagnosis)
	f.addOptional("collectorType", req.CollectorType)
	f.addOptionalInt("eventCount", req.EventCount)
	return d.export(ctx, "/ai/export/html", &f)
}

// ExportMarkdown renders a diagnosis as a downloadable Markdown document.
func (d *DiagnosisClient) ExportMarkdown(ctx context.Context, req ExportDiagnosisRequest) (*model.Download, error) {
	var f form
	f.add("diagnosis", req.Diagnosis)
	f.addOptional("collectorType", req.CollectorType)
	f.addOptionalInt("eventCount", req.EventCount)
	return d.export(ctx, "/ai/export/markdown", &f)
}

func (d *DiagnosisClient) export(ctx context.Context, path string, f *form) (*model.Download, error) {
	body, contentType, length, err := f.encode()
	if err != nil {
		return nil, err
	}
	return d.c.doBinary(ctx, call{
		method:        http.MethodPost,
		path:          path,
		body:          body,
		contentType:   contentType,
		contentLength: length,
		getBody:       f.getBody(),
	})
}
