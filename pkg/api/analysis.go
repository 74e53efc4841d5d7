package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/helmcode/gcpulse/pkg/model"
)

const (
	AnalysisTimeout = 300 * time.Second
	ExportTimeout   = 30 * time.Second
)

// envelope wraps the answer of the analyze endpoint.
type envelope struct {
	Success   bool                  `json:"success"`
	Data      *model.AnalysisResult `json:"data"`
	Error     string                `json:"error"`
	Timestamp int64                 `json:"timestamp"`
}

// AnalysisClient talks to the GC analysis endpoints under /gc.
type AnalysisClient struct {
	c             *Client
	exportTimeout time.Duration
}

// NewAnalysisClient creates a client with a 300 second default timeout unless
// opts says otherwise. Exports always use their own 30 second timeout.
func NewAnalysisClient(opts Options) (*AnalysisClient, error) {
	c, err := NewClient(opts, AnalysisTimeout)
	if err != nil {
		return nil, err
	}
	return &AnalysisClient{c: c, exportTimeout: ExportTimeout}, nil
}

// BaseURL returns the API root requests are resolved against.
func (a *AnalysisClient) BaseURL() string {
	return a.c.BaseURL()
}

// Analyze uploads a GC log and returns the unwrapped analysis. progress may
// be nil; it is only called when the file size is known.
func (a *AnalysisClient) Analyze(ctx context.Context, file *FileUpload, progress ProgressFunc) (*model.AnalysisResult, error) {
	if file == nil || file.Reader == nil {
		return nil, ErrMissingFile
	}

	var f form
	f.addFile("file", file)
	body, contentType, length, err := f.encode()
	if err != nil {
		return nil, err
	}

	var env envelope
	cl := call{
		method:        http.MethodPost,
		path:          "/gc/analyze",
		body:          withProgress(body, length, progress),
		contentType:   contentType,
		contentLength: length,
		getBody:       f.getBody(),
		validate: func() error {
			if env.Success && env.Data != nil {
				return nil
			}
			msg := env.Error
			if msg == "" {
				msg = "analysis returned no data"
			}
			return &Error{
				Method:     http.MethodPost,
				Path:       "/gc/analyze",
				StatusCode: http.StatusOK,
				Message:    msg,
			}
		},
	}
	if err := a.c.doJSON(ctx, cl, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// Health reports whether the backend is up.
func (a *AnalysisClient) Health(ctx context.Context) (*model.Health, error) {
	var h model.Health
	if err := a.c.doJSON(ctx, call{method: http.MethodGet, path: "/gc/health"}, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Collectors lists the garbage collectors the backend can analyse.
func (a *AnalysisClient) Collectors(ctx context.Context) ([]string, error) {
	var resp struct {
		Collectors []string `json:"collectors"`
	}
	if err := a.c.doJSON(ctx, call{method: http.MethodGet, path: "/gc/collectors"}, &resp); err != nil {
		return nil, err
	}
	return resp.Collectors, nil
}

// ExportHTML exports an analysis as a standalone HTML document. The response
// is returned as raw bytes, not unwrapped like Analyze.
func (a *AnalysisClient) ExportHTML(ctx context.Context, renderedHTML string, result *model.AnalysisResult) (*model.Download, error) {
	if result == nil {
		return nil, fmt.Errorf("an analysis result is required")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis result: %w", err)
	}

	var f form
	f.add("renderedHtml", renderedHTML)
	f.add("analysisData", string(data))
	body, contentType, length, err := f.encode()
	if err != nil {
		return nil, err
	}

	return a.c.doBinary(ctx, call{
		method:        http.MethodPost,
		path:          "/gc/export/html",
		body:          body,
		contentType:   contentType,
		contentLength: length,
		getBody:       f.getBody(),
		timeout:       a.exportTimeout,
	})
}
