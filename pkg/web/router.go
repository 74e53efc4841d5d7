// Package web serves the two GCPulse pages: the upload form at "/" and the
// analysis result at "/result".
package web

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/helmcode/gcpulse/pkg/analyzer"
	"github.com/helmcode/gcpulse/pkg/api"
	"github.com/helmcode/gcpulse/pkg/model"
	"github.com/helmcode/gcpulse/pkg/render"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	HomePage   = "Home"
	ResultPage = "AnalysisResult"

	// DefaultMaxUploadSize bounds the GC log a browser may post.
	DefaultMaxUploadSize = 512 << 20
	multipartMemory      = 32 << 20

	exportAction   = "export"
	exportFilename = "gc-analysis-report.html"
)

// Route maps a path to the page that renders it.
type Route struct {
	Path string
	Name string
}

// Routes is the complete page table.
var Routes = []Route{
	{Path: "/", Name: HomePage},
	{Path: "/result", Name: ResultPage},
}

// Resolve returns the route whose path equals path exactly.
func Resolve(path string) (Route, bool) {
	for _, r := range Routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// Workflow runs an analysis for an uploaded log.
type Workflow interface {
	Run(ctx context.Context, file *api.FileUpload, opts analyzer.Options) (*model.Report, error)
}

// Exporter turns an analysis into a downloadable HTML report.
type Exporter interface {
	ExportHTML(ctx context.Context, renderedHTML string, result *model.AnalysisResult) (*model.Download, error)
}

// Deps are the collaborators of the page handlers.
type Deps struct {
	Analyzer Workflow
	// Exporter backs the export button of the result page. Without one the
	// export action answers 501.
	Exporter Exporter
	// Overrides are the AI defaults; non-empty form fields replace them.
	Overrides     api.Overrides
	Logger        *zap.Logger
	MaxUploadSize int64
}

type app struct {
	deps   Deps
	logger *zap.Logger
}

type page struct {
	Title       string
	Analysis    template.HTML
	Suggestions template.HTML
	// AnalysisData is the analysis JSON posted back by the export form.
	AnalysisData string
	Error        string
	Warning      string
}

// NewRouter builds the page router. Paths outside the route table answer
// 404; there are no redirects.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.MaxUploadSize <= 0 {
		deps.MaxUploadSize = DefaultMaxUploadSize
	}
	a := &app{deps: deps, logger: deps.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)

	for _, route := range Routes {
		switch route.Name {
		case HomePage:
			r.Get(route.Path, a.handleHome)
		case ResultPage:
			r.Get(route.Path, a.handleResult)
			r.Post(route.Path, a.handleUpload)
		}
	}
	r.NotFound(http.NotFound)
	return r
}

func (a *app) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (a *app) handleHome(w http.ResponseWriter, r *http.Request) {
	a.renderTemplate(w, http.StatusOK, "home.html", page{Title: HomePage})
}

func (a *app) handleResult(w http.ResponseWriter, r *http.Request) {
	a.renderTemplate(w, http.StatusOK, "result.html", page{Title: ResultPage})
}

func (a *app) handleUpload(w http.ResponseWriter, r *http.Request) {
	p := page{Title: ResultPage}

	r.Body = http.MaxBytesReader(w, r.Body, a.deps.MaxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		p.Error = "Could not read the upload: " + err.Error()
		a.renderTemplate(w, http.StatusBadRequest, "result.html", p)
		return
	}
	defer r.MultipartForm.RemoveAll()

	if r.FormValue("action") == exportAction {
		a.handleExport(w, r)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		p.Error = "Please choose a GC log file to upload."
		a.renderTemplate(w, http.StatusBadRequest, "result.html", p)
		return
	}
	defer file.Close()

	upload := &api.FileUpload{Name: header.Filename, Reader: file, Size: header.Size}
	opts := analyzer.Options{
		Optimize:  r.FormValue("optimize") == "true",
		Overrides: a.overrides(r),
	}

	report, err := a.deps.Analyzer.Run(r.Context(), upload, opts)
	if report == nil {
		a.logger.Warn("Analysis failed", zap.String("file", header.Filename), zap.Error(err))
		p.Error = "Analysis failed: " + err.Error()
		a.renderTemplate(w, http.StatusBadGateway, "result.html", p)
		return
	}
	if err != nil {
		// The analysis is still shown when only the suggestions failed.
		p.Warning = err.Error()
	}

	analysisHTML, err := render.AnalysisHTML(report.Analysis)
	if err != nil {
		p.Error = err.Error()
		a.renderTemplate(w, http.StatusInternalServerError, "result.html", p)
		return
	}
	// pkg/render escapes backend text and drops raw HTML from markdown.
	p.Analysis = template.HTML(analysisHTML)
	if s := report.Suggestions; s != nil && s.Success {
		p.Suggestions = template.HTML(render.DiagnosisHTML(s.Diagnosis))
	}
	if a.deps.Exporter != nil {
		if data, err := json.Marshal(report.Analysis); err == nil {
			p.AnalysisData = string(data)
		}
	}
	a.renderTemplate(w, http.StatusOK, "result.html", p)
}

// handleExport answers the export form of the result page with the HTML
// report built by the backend.
func (a *app) handleExport(w http.ResponseWriter, r *http.Request) {
	p := page{Title: ResultPage}
	if a.deps.Exporter == nil {
		p.Error = "HTML export is not available."
		a.renderTemplate(w, http.StatusNotImplemented, "result.html", p)
		return
	}

	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(r.FormValue("analysisData")), &result); err != nil {
		p.Error = "Nothing to export. Upload a GC log first."
		a.renderTemplate(w, http.StatusBadRequest, "result.html", p)
		return
	}

	renderedHTML, err := render.AnalysisHTML(&result)
	if err != nil {
		p.Error = err.Error()
		a.renderTemplate(w, http.StatusInternalServerError, "result.html", p)
		return
	}

	dl, err := a.deps.Exporter.ExportHTML(r.Context(), renderedHTML, &result)
	if err != nil {
		a.logger.Warn("HTML export failed", zap.String("file", result.FileName), zap.Error(err))
		p.Error = "Export failed: " + err.Error()
		a.renderTemplate(w, http.StatusBadGateway, "result.html", p)
		return
	}

	contentType := dl.ContentType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	filename := dl.Filename
	if filename == "" {
		filename = exportFilename
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(dl.Data); err != nil {
		a.logger.Debug("Writing export failed", zap.Error(err))
	}
}

func (a *app) overrides(r *http.Request) api.Overrides {
	o := a.deps.Overrides
	if v := r.FormValue("apiUrl"); v != "" {
		o.APIURL = v
	}
	if v := r.FormValue("apiKey"); v != "" {
		o.APIKey = v
	}
	if v := r.FormValue("model"); v != "" {
		o.Model = v
	}
	return o
}

func (a *app) renderTemplate(w http.ResponseWriter, status int, name string, data page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		a.logger.Error("Template error", zap.String("template", name), zap.Error(err))
	}
}
