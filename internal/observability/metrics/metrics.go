// Package metrics aggregates in-memory counters for the vodforge processes
// and renders them in Prometheus text format. Keeping the recorder in-process
// avoids an exporter dependency while the pipeline remains a single service.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// Recorder accumulates HTTP request totals, pipeline events, and transcode
// job counters. It coordinates concurrent writers via a RWMutex while exposing
// an atomic gauge for in-flight jobs.
type Recorder struct {
	mu              sync.RWMutex
	requestCount    map[requestLabel]uint64
	requestDuration map[requestLabel]time.Duration
	pipelineEvents  map[string]uint64
	jobEvents       map[string]uint64
	activeJobs      atomic.Int64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers
// can immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:    make(map[requestLabel]uint64),
		requestDuration: make(map[requestLabel]time.Duration),
		pipelineEvents:  make(map[string]uint64),
		jobEvents:       make(map[string]uint64),
	}
}

// Default returns the singleton Recorder shared across helper functions for
// packages that do not require custom instrumentation pipelines.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest accumulates totals for request count and cumulative duration
// by HTTP method, path, and status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   path,
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// ObservePipelineEvent counts queue-poller lifecycle events such as
// "received", "malformed", "presign_error", "dispatched", "dispatch_failed",
// "deleted", and "receive_error".
func (r *Recorder) ObservePipelineEvent(event string) {
	normalized := normalizeName(event)
	r.mu.Lock()
	r.pipelineEvents[normalized]++
	r.mu.Unlock()
}

// JobStarted records a dispatched transcode job and bumps the active gauge.
func (r *Recorder) JobStarted() {
	r.recordJobEvent("started")
	r.activeJobs.Add(1)
}

// JobCompleted records a successfully finished transcode job.
func (r *Recorder) JobCompleted() {
	r.recordJobEvent("completed")
	r.decrementActive()
}

// JobFailed records a transcode job that exited with an error.
func (r *Recorder) JobFailed() {
	r.recordJobEvent("failed")
	r.decrementActive()
}

func (r *Recorder) recordJobEvent(status string) {
	r.mu.Lock()
	r.jobEvents[status]++
	r.mu.Unlock()
}

func (r *Recorder) decrementActive() {
	for {
		current := r.activeJobs.Load()
		if current <= 0 {
			return
		}
		if r.activeJobs.CompareAndSwap(current, current-1) {
			return
		}
	}
}

// ActiveJobs reports the current in-flight transcode job gauge.
func (r *Recorder) ActiveJobs() int64 {
	return r.activeJobs.Load()
}

// PipelineCounts returns a copy of the pipeline event counters for tests and
// health reporting.
func (r *Recorder) PipelineCounts() map[string]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]uint64, len(r.pipelineEvents))
	for event, count := range r.pipelineEvents {
		out[event] = count
	}
	return out
}

// JobCounts returns a copy of the transcode job counters for tests and
// health reporting.
func (r *Recorder) JobCounts() map[string]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]uint64, len(r.jobEvents))
	for status, count := range r.jobEvents {
		out[status] = count
	}
	return out
}

// Reset clears all counters. Intended for tests that share the default
// recorder.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.pipelineEvents = make(map[string]uint64)
	r.jobEvents = make(map[string]uint64)
	r.mu.Unlock()
	r.activeJobs.Store(0)
}

// Handler serves the recorder contents in Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.Write(w)
	})
}

// Write renders the recorder's metrics, sorting label sets so output is stable
// for scrapes and tests.
func (r *Recorder) Write(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()
	pipelineEvents := sortedKeys(r.pipelineEvents)
	jobEvents := sortedKeys(r.jobEvents)

	fmt.Fprintln(w, "# HELP vodforge_http_requests_total Total number of HTTP requests processed by the API")
	fmt.Fprintln(w, "# TYPE vodforge_http_requests_total counter")
	for _, label := range requestLabels {
		fmt.Fprintf(w, "vodforge_http_requests_total{method=%q,path=%q,status=%q} %d\n", label.method, label.path, label.status, r.requestCount[label])
	}

	fmt.Fprintln(w, "# HELP vodforge_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE vodforge_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		fmt.Fprintf(w, "vodforge_http_request_duration_seconds_sum{method=%q,path=%q,status=%q} %f\n", label.method, label.path, label.status, r.requestDuration[label].Seconds())
	}

	fmt.Fprintln(w, "# HELP vodforge_pipeline_events_total Queue poller events by type")
	fmt.Fprintln(w, "# TYPE vodforge_pipeline_events_total counter")
	for _, event := range pipelineEvents {
		fmt.Fprintf(w, "vodforge_pipeline_events_total{event=%q} %d\n", event, r.pipelineEvents[event])
	}

	fmt.Fprintln(w, "# HELP vodforge_transcode_jobs_total Transcode job events by status")
	fmt.Fprintln(w, "# TYPE vodforge_transcode_jobs_total counter")
	for _, status := range jobEvents {
		fmt.Fprintf(w, "vodforge_transcode_jobs_total{status=%q} %d\n", status, r.jobEvents[status])
	}

	fmt.Fprintln(w, "# HELP vodforge_transcode_active_jobs Current number of dispatched jobs not yet observed as finished")
	fmt.Fprintln(w, "# TYPE vodforge_transcode_active_jobs gauge")
	fmt.Fprintf(w, "vodforge_transcode_active_jobs %d\n", r.activeJobs.Load())
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return strings.ReplaceAll(normalized, " ", "_")
}
