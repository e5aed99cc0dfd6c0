// Package metrics provides per-export metrics collection.
//
// The Collector accumulates counters during a single export. It is a leaf
// package with no internal dependencies so every pipeline stage can record
// into it without import cycles.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all export metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Export lifecycle
	ExportsStarted   int64 `json:"exports_started" yaml:"exports_started"`
	ExportsCompleted int64 `json:"exports_completed" yaml:"exports_completed"`
	ExportsFailed    int64 `json:"exports_failed" yaml:"exports_failed"`

	// Build event stream
	EventsDecoded      int64            `json:"events_decoded" yaml:"events_decoded"`
	EventsByKind       map[string]int64 `json:"events_by_kind" yaml:"events_by_kind"`
	DiagnosticsRelayed int64            `json:"diagnostics_relayed" yaml:"diagnostics_relayed"`
	ArtifactsSeen      int64            `json:"artifacts_seen" yaml:"artifacts_seen"`

	// External tools
	ToolInvocations int64 `json:"tool_invocations" yaml:"tool_invocations"`
	ToolFailures    int64 `json:"tool_failures" yaml:"tool_failures"`

	// Resolution and extraction
	SymbolsMatched int64 `json:"symbols_matched" yaml:"symbols_matched"`
	ImageBytes     int64 `json:"image_bytes" yaml:"image_bytes"`

	// Publishing
	PublishSuccess int64 `json:"publish_success" yaml:"publish_success"`
	PublishFailure int64 `json:"publish_failure" yaml:"publish_failure"`

	// Dimensions (informational, set at construction)
	ExportID       string `json:"export_id" yaml:"export_id"`
	Algorithm      string `json:"algorithm" yaml:"algorithm"`
	StorageBackend string `json:"storage_backend,omitempty" yaml:"storage_backend,omitempty"`
}

// Collector accumulates metrics during a single export.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	exportsStarted   int64
	exportsCompleted int64
	exportsFailed    int64

	eventsDecoded      int64
	eventsByKind       map[string]int64
	diagnosticsRelayed int64
	artifactsSeen      int64

	toolInvocations int64
	toolFailures    int64

	symbolsMatched int64
	imageBytes     int64

	publishSuccess int64
	publishFailure int64

	exportID       string
	algorithm      string
	storageBackend string
}

// NewCollector creates a Collector with dimension labels.
// storageBackend may be empty when publishing is disabled.
func NewCollector(exportID, algorithm, storageBackend string) *Collector {
	return &Collector{
		eventsByKind:   make(map[string]int64),
		exportID:       exportID,
		algorithm:      algorithm,
		storageBackend: storageBackend,
	}
}

// add increments a counter under the lock.
func (c *Collector) add(counter *int64, n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	*counter += n
	c.mu.Unlock()
}

// --- Export lifecycle ---

// IncExportStarted records an export start.
func (c *Collector) IncExportStarted() {
	if c == nil {
		return
	}
	c.add(&c.exportsStarted, 1)
}

// IncExportCompleted records a successful export.
func (c *Collector) IncExportCompleted() {
	if c == nil {
		return
	}
	c.add(&c.exportsCompleted, 1)
}

// IncExportFailed records a failed export.
func (c *Collector) IncExportFailed() {
	if c == nil {
		return
	}
	c.add(&c.exportsFailed, 1)
}

// --- Build event stream ---

// IncEventDecoded records one decoded build event of the given kind.
func (c *Collector) IncEventDecoded(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsDecoded++
	c.eventsByKind[kind]++
	c.mu.Unlock()
}

// IncDiagnosticRelayed records a diagnostic written to the operator sink.
func (c *Collector) IncDiagnosticRelayed() {
	if c == nil {
		return
	}
	c.add(&c.diagnosticsRelayed, 1)
}

// IncArtifactSeen records an artifact event carrying an executable.
func (c *Collector) IncArtifactSeen() {
	if c == nil {
		return
	}
	c.add(&c.artifactsSeen, 1)
}

// --- External tools ---

// IncToolInvocation records a started external tool.
func (c *Collector) IncToolInvocation() {
	if c == nil {
		return
	}
	c.add(&c.toolInvocations, 1)
}

// IncToolFailure records a tool that failed to start or exited non-zero.
func (c *Collector) IncToolFailure() {
	if c == nil {
		return
	}
	c.add(&c.toolFailures, 1)
}

// --- Resolution and extraction ---

// AddSymbolsMatched records entry point symbols found in the listing.
func (c *Collector) AddSymbolsMatched(n int) {
	if c == nil {
		return
	}
	c.add(&c.symbolsMatched, int64(n))
}

// SetImageBytes records the size of the extracted flat image.
func (c *Collector) SetImageBytes(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.imageBytes = int64(n)
	c.mu.Unlock()
}

// --- Publishing ---
// Publish counters are per file, not per export.

// IncPublishSuccess records a successful publish write.
func (c *Collector) IncPublishSuccess() {
	if c == nil {
		return
	}
	c.add(&c.publishSuccess, 1)
}

// IncPublishFailure records a failed publish write.
func (c *Collector) IncPublishFailure() {
	if c == nil {
		return
	}
	c.add(&c.publishFailure, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[string]int64, len(c.eventsByKind))
	for k, v := range c.eventsByKind {
		byKind[k] = v
	}

	return Snapshot{
		ExportsStarted:   c.exportsStarted,
		ExportsCompleted: c.exportsCompleted,
		ExportsFailed:    c.exportsFailed,

		EventsDecoded:      c.eventsDecoded,
		EventsByKind:       byKind,
		DiagnosticsRelayed: c.diagnosticsRelayed,
		ArtifactsSeen:      c.artifactsSeen,

		ToolInvocations: c.toolInvocations,
		ToolFailures:    c.toolFailures,

		SymbolsMatched: c.symbolsMatched,
		ImageBytes:     c.imageBytes,

		PublishSuccess: c.publishSuccess,
		PublishFailure: c.publishFailure,

		ExportID:       c.exportID,
		Algorithm:      c.algorithm,
		StorageBackend: c.storageBackend,
	}
}
