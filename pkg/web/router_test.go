package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/helmcode/gcpulse/pkg/analyzer"
	"github.com/helmcode/gcpulse/pkg/api"
	"github.com/helmcode/gcpulse/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorkflow struct {
	report *model.Report
	err    error

	fileName string
	content  string
	opts     analyzer.Options
}

func (f *fakeWorkflow) Run(_ context.Context, file *api.FileUpload, opts analyzer.Options) (*model.Report, error) {
	data, err := io.ReadAll(file.Reader)
	if err != nil {
		return nil, err
	}
	f.fileName = file.Name
	f.content = string(data)
	f.opts = opts
	return f.report, f.err
}

func uploadRequest(t *testing.T, fields map[string]string, withFile bool) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if withFile {
		part, err := mw.CreateFormFile("file", "gc.log")
		require.NoError(t, err)
		_, err = part.Write([]byte("[0.010s][info][gc] GC(0) Pause Young"))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/result", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestResolve(t *testing.T) {
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/", HomePage, true},
		{"/result", ResultPage, true},
		{"/result/", "", false},
		{"/results", "", false},
		{"", "", false},
		{"/RESULT", "", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.path), func(t *testing.T) {
			route, ok := Resolve(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, route.Name)
		})
	}
}

func TestPages(t *testing.T) {
	h := NewRouter(Deps{Analyzer: &fakeWorkflow{}})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `enctype="multipart/form-data"`)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/result", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No analysis yet")
}

func TestUnknownPathsAreNotFound(t *testing.T) {
	h := NewRouter(Deps{Analyzer: &fakeWorkflow{}})
	for _, path := range []string{"/result/", "/results", "/home", "/api/gc/analyze"} {
		rec := serve(h, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Empty(t, rec.Header().Get("Location"), path)
	}
}

func TestUploadRendersReport(t *testing.T) {
	wf := &fakeWorkflow{report: &model.Report{
		Analysis:    &model.AnalysisResult{FileName: "gc.log", CollectorType: "G1GC"},
		Suggestions: &model.DiagnosisResponse{Success: true, Diagnosis: "## Raise the heap"},
	}}
	h := NewRouter(Deps{
		Analyzer:  wf,
		Overrides: api.Overrides{APIKey: "sk-default", Model: "gpt-4o-mini"},
	})

	rec := serve(h, uploadRequest(t, map[string]string{"optimize": "true", "model": "gpt-4o"}, true))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "gc.log", wf.fileName)
	assert.Equal(t, "[0.010s][info][gc] GC(0) Pause Young", wf.content)
	assert.True(t, wf.opts.Optimize)
	assert.Equal(t, api.Overrides{APIKey: "sk-default", Model: "gpt-4o"}, wf.opts.Overrides)

	body := rec.Body.String()
	assert.Contains(t, body, "GC Analysis: gc.log")
	assert.Contains(t, body, "<td>G1GC</td>")
	assert.Contains(t, body, `<h2 id="raise-the-heap">Raise the heap</h2>`)
}

func TestUploadWithoutOptimize(t *testing.T) {
	wf := &fakeWorkflow{report: &model.Report{Analysis: &model.AnalysisResult{FileName: "gc.log"}}}
	rec := serve(NewRouter(Deps{Analyzer: wf}), uploadRequest(t, nil, true))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, wf.opts.Optimize)
	assert.NotContains(t, rec.Body.String(), "AI optimization suggestions")
}

func TestUploadSuggestionFailureKeepsAnalysis(t *testing.T) {
	wf := &fakeWorkflow{
		report: &model.Report{Analysis: &model.AnalysisResult{FileName: "gc.log"}},
		err:    fmt.Errorf("%w: API Key not configured", analyzer.ErrSuggestionsFailed),
	}
	rec := serve(NewRouter(Deps{Analyzer: wf}), uploadRequest(t, map[string]string{"optimize": "true"}, true))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "GC Analysis: gc.log")
	assert.Contains(t, rec.Body.String(), "API Key not configured")
}

func TestUploadAnalysisFailure(t *testing.T) {
	wf := &fakeWorkflow{err: errors.New("backend unavailable")}
	rec := serve(NewRouter(Deps{Analyzer: wf}), uploadRequest(t, nil, true))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Analysis failed: backend unavailable")
}

func TestUploadWithoutFile(t *testing.T) {
	wf := &fakeWorkflow{}
	rec := serve(NewRouter(Deps{Analyzer: wf}), uploadRequest(t, map[string]string{"optimize": "true"}, false))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "choose a GC log file")
	assert.Empty(t, wf.fileName)
}

func TestUploadTooLarge(t *testing.T) {
	wf := &fakeWorkflow{}
	rec := serve(NewRouter(Deps{Analyzer: wf, MaxUploadSize: 16}), uploadRequest(t, nil, true))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, wf.fileName)
}

type fakeExporter struct {
	download *model.Download
	err      error

	renderedHTML string
	result       *model.AnalysisResult
}

func (f *fakeExporter) ExportHTML(_ context.Context, renderedHTML string, result *model.AnalysisResult) (*model.Download, error) {
	f.renderedHTML = renderedHTML
	f.result = result
	return f.download, f.err
}

var analysisDataField = regexp.MustCompile(`name="analysisData" value="([^"]*)"`)

func TestUploadOffersExport(t *testing.T) {
	wf := &fakeWorkflow{report: &model.Report{Analysis: &model.AnalysisResult{FileName: "gc.log", CollectorType: "G1GC"}}}

	rec := serve(NewRouter(Deps{Analyzer: wf}), uploadRequest(t, nil, true))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Export HTML report")

	rec = serve(NewRouter(Deps{Analyzer: wf, Exporter: &fakeExporter{}}), uploadRequest(t, nil, true))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="action" value="export"`)
	assert.Contains(t, body, "Export HTML report")

	m := analysisDataField.FindStringSubmatch(body)
	require.Len(t, m, 2)
	assert.JSONEq(t, `{"fileName":"gc.log","fileSize":0,"collectorType":"G1GC"}`, html.UnescapeString(m[1]))
}

func TestExportReturnsAttachment(t *testing.T) {
	ex := &fakeExporter{download: &model.Download{
		Filename:    "gc-report.html",
		ContentType: "text/html",
		Data:        []byte("<html>report</html>"),
	}}
	wf := &fakeWorkflow{}
	data := `{"fileName":"gc.log","collectorType":"G1GC","heapTrend":{"slope":0.4}}`

	rec := serve(NewRouter(Deps{Analyzer: wf, Exporter: ex}),
		uploadRequest(t, map[string]string{"action": "export", "analysisData": data}, false))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=gc-report.html`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "<html>report</html>", rec.Body.String())
	assert.Empty(t, wf.fileName)

	assert.Contains(t, ex.renderedHTML, "<td>G1GC</td>")
	require.NotNil(t, ex.result)
	out, err := json.Marshal(ex.result)
	require.NoError(t, err)
	assert.JSONEq(t, data, string(out))
}

func TestExportDefaultsFilename(t *testing.T) {
	ex := &fakeExporter{download: &model.Download{Data: []byte("<html></html>")}}
	rec := serve(NewRouter(Deps{Analyzer: &fakeWorkflow{}, Exporter: ex}),
		uploadRequest(t, map[string]string{"action": "export", "analysisData": `{"fileName":"gc.log"}`}, false))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=gc-analysis-report.html`, rec.Header().Get("Content-Disposition"))
}

func TestExportFailures(t *testing.T) {
	tests := []struct {
		name     string
		exporter Exporter
		data     string
		status   int
		message  string
	}{
		{"no exporter", nil, `{"fileName":"gc.log"}`, http.StatusNotImplemented, "HTML export is not available."},
		{"missing analysis", &fakeExporter{}, "", http.StatusBadRequest, "Nothing to export"},
		{"backend error", &fakeExporter{err: errors.New("template missing")}, `{"fileName":"gc.log"}`, http.StatusBadGateway, "Export failed: template missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(NewRouter(Deps{Analyzer: &fakeWorkflow{}, Exporter: tt.exporter}),
				uploadRequest(t, map[string]string{"action": "export", "analysisData": tt.data}, false))

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
			assert.Empty(t, rec.Header().Get("Content-Disposition"))
		})
	}
}
