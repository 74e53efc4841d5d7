package model

import (
	"encoding/json"
	"fmt"
)

// AnalysisResult is the backend's GC analysis of one log file. Only the
// fields the client renders are typed; the full object is kept verbatim so it
// can be sent back to the optimize and export endpoints unchanged.
type AnalysisResult struct {
	FileName                  string                     `json:"fileName" yaml:"fileName"`
	FileSize                  int64                      `json:"fileSize" yaml:"fileSize"`
	CollectorType             string                     `json:"collectorType" yaml:"collectorType"`
	MemorySize                *MemorySize                `json:"memorySize,omitempty" yaml:"memorySize,omitempty"`
	KPIMetrics                *KPIMetrics                `json:"kpiMetrics,omitempty" yaml:"kpiMetrics,omitempty"`
	PauseDurationDistribution *PauseDurationDistribution `json:"pauseDurationDistribution,omitempty" yaml:"pauseDurationDistribution,omitempty"`
	DiagnosisReport           *DiagnosisReport           `json:"diagnosisReport,omitempty" yaml:"diagnosisReport,omitempty"`
	GCCauses                  map[string]GCCause         `json:"gcCauses,omitempty" yaml:"gcCauses,omitempty"`
	GCEvents                  []GCEvent                  `json:"gcEvents,omitempty" yaml:"-"`

	raw json.RawMessage
}

type analysisFields AnalysisResult

// UnmarshalJSON decodes the typed fields and remembers the raw bytes.
func (r *AnalysisResult) UnmarshalJSON(data []byte) error {
	var fields analysisFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = AnalysisResult(fields)
	r.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the bytes the result was decoded from, so fields the
// client does not model survive a round trip to the backend.
func (r AnalysisResult) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	return json.Marshal(analysisFields(r))
}

// EventCount is the number of GC events in the analysed log.
func (r *AnalysisResult) EventCount() int {
	return len(r.GCEvents)
}

type MemorySize struct {
	Heap      *MemoryRegion `json:"heap,omitempty" yaml:"heap,omitempty"`
	Metaspace *MemoryRegion `json:"metaspace,omitempty" yaml:"metaspace,omitempty"`
	Total     *MemoryRegion `json:"total,omitempty" yaml:"total,omitempty"`
}

type MemoryRegion struct {
	Allocated int64 `json:"allocated" yaml:"allocated"`
	Peak      int64 `json:"peak" yaml:"peak"`
}

type KPIMetrics struct {
	Throughput     float64                `json:"throughput" yaml:"throughput"`
	Latency        *LatencyMetrics        `json:"latency,omitempty" yaml:"latency,omitempty"`
	ConcurrentTime *ConcurrentTimeMetrics `json:"concurrentTime,omitempty" yaml:"concurrentTime,omitempty"`
}

// LatencyMetrics values are milliseconds.
type LatencyMetrics struct {
	AvgPauseTime    float64 `json:"avgPauseTime" yaml:"avgPauseTime"`
	MaxPauseTime    float64 `json:"maxPauseTime" yaml:"maxPauseTime"`
	MinPauseTime    float64 `json:"minPauseTime" yaml:"minPauseTime"`
	StdDevPauseTime float64 `json:"stdDevPauseTime" yaml:"stdDevPauseTime"`
}

type ConcurrentTimeMetrics struct {
	TotalTime  int64   `json:"totalTime" yaml:"totalTime"`
	AvgTime    float64 `json:"avgTime" yaml:"avgTime"`
	MaxTime    float64 `json:"maxTime" yaml:"maxTime"`
	MinTime    float64 `json:"minTime" yaml:"minTime"`
	StdDevTime float64 `json:"stdDevTime" yaml:"stdDevTime"`
}

type PauseDurationDistribution struct {
	Ranges []DurationRange `json:"ranges" yaml:"ranges"`
}

type DurationRange struct {
	RangeLabel  string  `json:"rangeLabel" yaml:"rangeLabel"`
	MinDuration float64 `json:"minDuration" yaml:"minDuration"`
	MaxDuration float64 `json:"maxDuration" yaml:"maxDuration"`
	Count       int     `json:"count" yaml:"count"`
	Percentage  float64 `json:"percentage" yaml:"percentage"`
}

type DiagnosisReport struct {
	MemoryLeakInfo  *MemoryLeakInfo  `json:"memoryLeakInfo,omitempty" yaml:"memoryLeakInfo,omitempty"`
	FullGCInfo      *FullGCInfo      `json:"fullGCInfo,omitempty" yaml:"fullGCInfo,omitempty"`
	LongPauseInfo   *LongPauseInfo   `json:"longPauseInfo,omitempty" yaml:"longPauseInfo,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
}

type MemoryLeakInfo struct {
	HasMemoryLeak bool     `json:"hasMemoryLeak" yaml:"hasMemoryLeak"`
	Description   string   `json:"description" yaml:"description"`
	Evidences     []string `json:"evidences,omitempty" yaml:"evidences,omitempty"`
}

type FullGCInfo struct {
	Count     int  `json:"count" yaml:"count"`
	HasFullGC bool `json:"hasFullGC" yaml:"hasFullGC"`
}

type LongPauseInfo struct {
	Count        int     `json:"count" yaml:"count"`
	HasLongPause bool    `json:"hasLongPause" yaml:"hasLongPause"`
	Threshold    float64 `json:"threshold" yaml:"threshold"`
}

type Recommendation struct {
	Category    string `json:"category" yaml:"category"`
	Level       string `json:"level" yaml:"level"` // INFO, WARNING, CRITICAL
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Suggestion  string `json:"suggestion" yaml:"suggestion"`
}

type GCCause struct {
	Cause      string  `json:"cause" yaml:"cause"`
	Count      int     `json:"count" yaml:"count"`
	AvgTime    float64 `json:"avgTime" yaml:"avgTime"`
	MaxTime    float64 `json:"maxTime" yaml:"maxTime"`
	TotalTime  float64 `json:"totalTime" yaml:"totalTime"`
	Percentage float64 `json:"percentage" yaml:"percentage"`
}

type GCEvent struct {
	Timestamp   int64   `json:"timestamp"`
	EventType   string  `json:"eventType"`
	GCCause     string  `json:"gcCause"`
	PauseTime   float64 `json:"pauseTime"`
	IsFullGC    bool    `json:"fullGC"`
	IsLongPause bool    `json:"longPause"`
}

// FormatBytes renders a byte count as GB when at least one gigabyte and as MB
// otherwise, with three decimals.
func FormatBytes(bytes int64) string {
	if bytes >= 1024*1024*1024 {
		return fmt.Sprintf("%.3f GB", float64(bytes)/(1024*1024*1024))
	}
	return fmt.Sprintf("%.3f MB", float64(bytes)/(1024*1024))
}
