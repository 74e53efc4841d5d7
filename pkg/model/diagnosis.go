package model

// DiagnosisResponse is returned by the diagnose and optimize endpoints. The
// backend reports AI failures in-band with Success=false.
type DiagnosisResponse struct {
	Success     bool   `json:"success" yaml:"success"`
	Diagnosis   string `json:"diagnosis,omitempty" yaml:"diagnosis,omitempty"` // markdown
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
	ProcessTime int64  `json:"processTime" yaml:"processTime"` // milliseconds
}

// DiagnosisConfig describes the AI defaults configured on the backend. The API
// key itself is never exposed, only whether one is set.
type DiagnosisConfig struct {
	HasAPIKey       bool   `json:"hasApiKey" yaml:"hasApiKey"`
	HasAPIURL       bool   `json:"hasApiUrl" yaml:"hasApiUrl"`
	APIURL          string `json:"apiUrl" yaml:"apiUrl"`
	HasDefaultModel bool   `json:"hasDefaultModel" yaml:"hasDefaultModel"`
	DefaultModel    string `json:"defaultModel" yaml:"defaultModel"`
}

type Health struct {
	Status    string `json:"status" yaml:"status"`
	Service   string `json:"service" yaml:"service"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"` // unix millis
}

// Download is a binary export returned by one of the export endpoints.
type Download struct {
	Filename    string `json:"filename" yaml:"filename"`
	ContentType string `json:"contentType" yaml:"contentType"`
	Data        []byte `json:"-" yaml:"-"`
}

// Report groups an analysis with the optional AI suggestions made for it.
type Report struct {
	Analysis    *AnalysisResult    `json:"analysis" yaml:"analysis"`
	Suggestions *DiagnosisResponse `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
}

// Status is the combined answer of the health, collectors and AI config
// endpoints.
type Status struct {
	Health     *Health          `json:"health" yaml:"health"`
	Collectors []string         `json:"collectors" yaml:"collectors"`
	AIConfig   *DiagnosisConfig `json:"aiConfig" yaml:"aiConfig"`
}
