package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/helmcode/gcpulse/pkg/model"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"gopkg.in/yaml.v3"
)

const (
	FormatHuman = "human"
	FormatJSON  = "json"
	FormatYAML  = "yaml"

	lineWidth = 80
)

// Styled controls whether markdown is rendered with terminal styling. The CLI
// turns it off when stdout is not a terminal.
var Styled = true

// ValidFormat reports whether format is one of human, json or yaml.
func ValidFormat(format string) bool {
	switch format {
	case FormatHuman, FormatJSON, FormatYAML:
		return true
	}
	return false
}

// display writes v as JSON or YAML, or calls human for anything else.
func display(w io.Writer, v any, format string, human func()) error {
	switch format {
	case FormatJSON:
		return displayJSON(w, v)
	case FormatYAML:
		return displayYAML(w, v)
	case FormatHuman:
		fallthrough
	default:
		human()
	}
	return nil
}

func displayJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(output))
	return nil
}

func displayYAML(w io.Writer, v any) error {
	output, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprint(w, string(output))
	return nil
}

// DisplayReport prints an analysis followed by its AI suggestions, if any.
func DisplayReport(w io.Writer, report *model.Report, format string) error {
	return display(w, report, format, func() {
		displayAnalysisHuman(w, report.Analysis)
		if report.Suggestions != nil {
			displayDiagnosisHuman(w, report.Suggestions, "🤖 AI OPTIMIZATION SUGGESTIONS:")
		}
		footer(w)
	})
}

// DisplayDiagnosis prints the answer of a diagnose or optimize call.
func DisplayDiagnosis(w io.Writer, resp *model.DiagnosisResponse, format string) error {
	return display(w, resp, format, func() {
		displayDiagnosisHuman(w, resp, "🤖 AI DIAGNOSIS:")
		footer(w)
	})
}

// DisplayStatus prints backend health, collectors and AI configuration.
func DisplayStatus(w io.Writer, status *model.Status, format string) error {
	return display(w, status, format, func() {
		cyan := color.New(color.FgCyan, color.Bold)
		fmt.Fprintln(w)
		if status.Health != nil {
			cyan.Fprintln(w, "🩺 BACKEND HEALTH:")
			statusColor := color.New(color.FgRed, color.Bold)
			if strings.EqualFold(status.Health.Status, "UP") {
				statusColor = color.New(color.FgGreen, color.Bold)
			}
			fmt.Fprintf(w, "   %s %s\n\n", status.Health.Service, statusColor.Sprint(status.Health.Status))
		}
		if status.Collectors != nil {
			displayCollectorsHuman(w, status.Collectors)
		}
		if status.AIConfig != nil {
			displayConfigHuman(w, status.AIConfig)
		}
	})
}

// DisplayCollectors prints the collectors the backend supports.
func DisplayCollectors(w io.Writer, collectors []string, format string) error {
	return display(w, collectors, format, func() {
		fmt.Fprintln(w)
		displayCollectorsHuman(w, collectors)
	})
}

// DisplayConfig prints the AI defaults configured on the backend.
func DisplayConfig(w io.Writer, cfg *model.DiagnosisConfig, format string) error {
	return display(w, cfg, format, func() {
		fmt.Fprintln(w)
		displayConfigHuman(w, cfg)
	})
}

func displayAnalysisHuman(w io.Writer, result *model.AnalysisResult) {
	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	white := color.New(color.FgWhite, color.Bold)

	fmt.Fprintln(w)
	cyan.Fprintln(w, "📊 GC ANALYSIS:")
	collector := result.CollectorType
	if collector == "" {
		collector = "Unknown"
	}
	fmt.Fprintf(w, "   File:      %s (%s)\n", result.FileName, model.FormatBytes(result.FileSize))
	fmt.Fprintf(w, "   Collector: %s\n", collector)
	fmt.Fprintf(w, "   Events:    %d\n\n", result.EventCount())

	if kpi := result.KPIMetrics; kpi != nil {
		white.Fprintln(w, "⏱️  KEY PERFORMANCE INDICATORS:")
		fmt.Fprintf(w, "   Throughput:    %s\n", throughputColor(kpi.Throughput).Sprintf("%.2f%%", kpi.Throughput))
		if l := kpi.Latency; l != nil {
			fmt.Fprintf(w, "   Avg pause:     %.2f ms\n", l.AvgPauseTime)
			fmt.Fprintf(w, "   Max pause:     %.2f ms\n", l.MaxPauseTime)
		}
		fmt.Fprintln(w)
	}

	if mem := result.MemorySize; mem != nil && mem.Heap != nil {
		white.Fprintln(w, "💾 HEAP:")
		fmt.Fprintf(w, "   Allocated: %s   Peak: %s\n\n",
			model.FormatBytes(mem.Heap.Allocated), model.FormatBytes(mem.Heap.Peak))
	}

	if len(result.GCCauses) > 0 {
		white.Fprintln(w, "🔁 GC CAUSES:")
		names := make([]string, 0, len(result.GCCauses))
		for name := range result.GCCauses {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			ci, cj := result.GCCauses[names[i]], result.GCCauses[names[j]]
			if ci.Count != cj.Count {
				return ci.Count > cj.Count
			}
			return names[i] < names[j]
		})
		for _, name := range names {
			fmt.Fprintf(w, "   %-32s %6d\n", name, result.GCCauses[name].Count)
		}
		fmt.Fprintln(w)
	}

	if report := result.DiagnosisReport; report != nil && len(report.Recommendations) > 0 {
		yellow.Fprintln(w, "⚠️  RECOMMENDATIONS:")
		for i, rec := range report.Recommendations {
			fmt.Fprintf(w, "   %d. %s %s\n", i+1, getLevelIcon(rec.Level), rec.Title)
			if rec.Description != "" {
				fmt.Fprintln(w, wrap(rec.Description, 6))
			}
			if rec.Suggestion != "" {
				fmt.Fprintf(w, "      Suggestion: %s\n", color.CyanString(rec.Suggestion))
			}
			fmt.Fprintln(w)
		}
	}
}

func displayDiagnosisHuman(w io.Writer, resp *model.DiagnosisResponse, title string) {
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	if !resp.Success {
		red.Fprintln(w, "✗ AI DIAGNOSIS FAILED:")
		fmt.Fprintln(w, wrap(resp.Error, 3))
		fmt.Fprintln(w)
		return
	}

	green.Fprintln(w, title)
	fmt.Fprintln(w, renderMarkdown(resp.Diagnosis))
	fmt.Fprintf(w, "   %s\n\n", color.HiBlackString("Generated in %.1fs", float64(resp.ProcessTime)/1000))
}

func displayCollectorsHuman(w io.Writer, collectors []string) {
	color.New(color.FgCyan, color.Bold).Fprintln(w, "♻️  SUPPORTED COLLECTORS:")
	for _, c := range collectors {
		fmt.Fprintf(w, "   • %s\n", c)
	}
	fmt.Fprintln(w)
}

func displayConfigHuman(w io.Writer, cfg *model.DiagnosisConfig) {
	color.New(color.FgCyan, color.Bold).Fprintln(w, "🔧 BACKEND AI CONFIGURATION:")
	fmt.Fprintf(w, "   API key:       %s\n", configured(cfg.HasAPIKey, "configured"))
	fmt.Fprintf(w, "   API URL:       %s\n", configured(cfg.HasAPIURL, cfg.APIURL))
	fmt.Fprintf(w, "   Default model: %s\n\n", configured(cfg.HasDefaultModel, cfg.DefaultModel))
}

func configured(ok bool, value string) string {
	if !ok {
		return color.YellowString("not set (pass it per request)")
	}
	return color.GreenString(value)
}

func footer(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("─", lineWidth))
	fmt.Fprintf(w, "💡 %s\n", color.HiBlackString("Run with -o json or -o yaml for machine-readable output"))
}

func throughputColor(throughput float64) *color.Color {
	switch {
	case throughput >= 99:
		return color.New(color.FgGreen)
	case throughput >= 95:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func getLevelIcon(level string) string {
	switch strings.ToUpper(level) {
	case "CRITICAL":
		return "🔴"
	case "WARNING":
		return "🟡"
	case "INFO":
		return "🔵"
	default:
		return "⚪"
	}
}

// renderMarkdown styles markdown for the terminal, falling back to wrapped
// plain text when glamour cannot render it.
func renderMarkdown(md string) string {
	style := glamour.WithAutoStyle()
	if !Styled {
		style = glamour.WithStylePath("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(lineWidth))
	if err == nil {
		if out, err := r.Render(md); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return wrap(md, 3)
}

func wrap(text string, margin uint) string {
	return indent.String(wordwrap.String(text, lineWidth-int(margin)), margin)
}
