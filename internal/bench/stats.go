package bench

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Undefined is how a ratio without a usable denominator is rendered.
const Undefined = "undefined"

// OverlapDepth is the number of top results compared between backends.
const OverlapDepth = 5

// RatioValue is an A/B ratio that may be undefined.
type RatioValue struct {
	Value   float64
	Defined bool
}

// Ratio returns a/b. A zero, NaN or infinite denominator, or a non-finite
// numerator, yields an undefined ratio instead of Inf or NaN.
func Ratio(a, b float64) RatioValue {
	if b == 0 || math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return RatioValue{}
	}
	return RatioValue{Value: a / b, Defined: true}
}

// DurationRatio is Ratio over two durations in seconds.
func DurationRatio(a, b time.Duration) RatioValue {
	return Ratio(a.Seconds(), b.Seconds())
}

// String renders the ratio as "2.00x" or "undefined".
func (r RatioValue) String() string {
	if !r.Defined {
		return Undefined
	}
	return fmt.Sprintf("%.2fx", r.Value)
}

// MarshalJSON writes the value as a number, or the string "undefined".
func (r RatioValue) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return json.Marshal(Undefined)
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON accepts a number or the string "undefined".
func (r *RatioValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != Undefined {
			return fmt.Errorf("invalid ratio %q", s)
		}
		*r = RatioValue{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid ratio: %w", err)
	}
	*r = RatioValue{Value: v, Defined: true}
	return nil
}

// OverlapRatio returns |set(top n of a) ∩ set(top n of b)| / n. Texts match
// only when exactly equal; order is ignored.
func OverlapRatio(a, b []string, n int) float64 {
	if n <= 0 {
		return 0
	}
	top := func(s []string) map[string]struct{} {
		set := make(map[string]struct{}, n)
		for _, t := range s[:min(n, len(s))] {
			set[t] = struct{}{}
		}
		return set
	}
	setA, setB := top(a), top(b)

	shared := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(n)
}

// BytesToMB converts a byte count to mebibytes.
func BytesToMB(n int64) float64 {
	return float64(n) / (1024 * 1024)
}

// RunConfig records the settings a run used.
type RunConfig struct {
	ChunkSize      int    `json:"chunk_size"`
	Overlap        int    `json:"overlap"`
	TopK           int    `json:"top_k"`
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
	IndexKind      string `json:"index_kind,omitempty"`
	Embedder       string `json:"embedder,omitempty"`
	KeywordBackend string `json:"keyword_backend,omitempty"`
}

// BuildResult is one backend's build measurement.
type BuildResult struct {
	Name         string   `json:"name"`
	BuildSeconds float64  `json:"build_time_s"`
	SizeBytes    int64    `json:"size_bytes"`
	SizeMB       float64  `json:"size_mb"`
	Artifacts    []string `json:"artifacts,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// OK reports whether the backend built successfully.
func (b BuildResult) OK() bool { return b.Error == "" }

// QueryResult compares both backends on one query. A non-empty Error marks
// a flagged entry whose timings are not counted in the averages.
type QueryResult struct {
	Query        string     `json:"query"`
	ASeconds     float64    `json:"a_search_time_s"`
	BSeconds     float64    `json:"b_search_time_s"`
	SpeedRatio   RatioValue `json:"speed_ratio"`
	OverlapRatio float64    `json:"overlap_ratio"`
	AResults     []string   `json:"a_results"`
	BResults     []string   `json:"b_results"`
	Error        string     `json:"error,omitempty"`
}

// Flagged reports whether the query failed.
func (q QueryResult) Flagged() bool { return q.Error != "" }

// LLMComparison holds both answers to one query, verbatim.
type LLMComparison struct {
	Query     string `json:"query"`
	AResponse string `json:"a_response"`
	BResponse string `json:"b_response"`
	AError    string `json:"a_error,omitempty"`
	BError    string `json:"b_error,omitempty"`
}

// Summary aggregates the per-query results.
type Summary struct {
	AvgASeconds   float64    `json:"avg_a_search_time_s"`
	AvgBSeconds   float64    `json:"avg_b_search_time_s"`
	AvgOverlap    float64    `json:"avg_overlap_ratio"`
	SpeedRatio    RatioValue `json:"speed_ratio"`
	SizeRatio     RatioValue `json:"size_ratio"`
	BuildRatio    RatioValue `json:"creation_speed_ratio"`
	FlaggedCount  int        `json:"flagged_queries"`
	MeasuredCount int        `json:"measured_queries"`
}

// Stats is the record of one comparison run.
type Stats struct {
	RunID       string          `json:"run_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Config      RunConfig       `json:"config"`
	TotalFiles  int             `json:"total_files"`
	TotalChunks int             `json:"total_chunks"`
	BackendA    BuildResult     `json:"backend_a"`
	BackendB    BuildResult     `json:"backend_b"`
	Queries     []QueryResult   `json:"search_stats"`
	LLM         []LLMComparison `json:"llm_comparison"`
	Summary     Summary         `json:"summary"`

	// ReportPath and StatsPath are filled in once the report is written.
	ReportPath string `json:"-"`
	StatsPath  string `json:"-"`
}

// Summarize computes the summary from the build and query results. Flagged
// queries are excluded; with nothing measured every value stays zero.
func (s *Stats) Summarize() {
	var sum Summary
	for _, q := range s.Queries {
		if q.Flagged() {
			sum.FlaggedCount++
			continue
		}
		sum.MeasuredCount++
		sum.AvgASeconds += q.ASeconds
		sum.AvgBSeconds += q.BSeconds
		sum.AvgOverlap += q.OverlapRatio
	}
	if sum.MeasuredCount > 0 {
		n := float64(sum.MeasuredCount)
		sum.AvgASeconds /= n
		sum.AvgBSeconds /= n
		sum.AvgOverlap /= n
		sum.SpeedRatio = Ratio(sum.AvgASeconds, sum.AvgBSeconds)
	}
	if s.BackendA.OK() && s.BackendB.OK() {
		sum.SizeRatio = Ratio(s.BackendA.SizeMB, s.BackendB.SizeMB)
		sum.BuildRatio = Ratio(s.BackendA.BuildSeconds, s.BackendB.BuildSeconds)
	}
	s.Summary = sum
}
