// Package notify defines the downstream notification boundary.
//
// Notifiers announce finished exports to other systems (a CI webhook, a
// Redis channel watched by a probe farm). They run after the descriptor is
// written and never affect the export outcome.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pithecene-io/flashgen/pipeline"
	"github.com/pithecene-io/flashgen/types"
)

// EventExportCompleted is the event type of ExportCompletedEvent.
const EventExportCompleted = "export_completed"

// ExportCompletedEvent is the payload published when an export succeeds.
type ExportCompletedEvent struct {
	Version    string `json:"version"`
	EventType  string `json:"event_type"`
	ExportID   string `json:"export_id"`
	Name       string `json:"name"`
	Artifact   string `json:"artifact"`
	Descriptor string `json:"descriptor"`
	// StoragePath is the published location, empty when not published.
	StoragePath    string            `json:"storage_path,omitempty"`
	Addresses      map[string]string `json:"addresses"`
	MissingSymbols []string          `json:"missing_symbols,omitempty"`
	ImageBytes     int               `json:"image_bytes"`
	Timestamp      string            `json:"timestamp"`
	DurationMs     int64             `json:"duration_ms"`
}

// NewExportCompletedEvent builds the event for a successful export result.
func NewExportCompletedEvent(result *pipeline.Result, storagePath string, now time.Time) *ExportCompletedEvent {
	event := &ExportCompletedEvent{
		Version:        types.Version,
		EventType:      EventExportCompleted,
		ExportID:       result.ExportID,
		Name:           result.Name,
		Artifact:       result.Artifact,
		Descriptor:     result.DescriptorPath,
		StoragePath:    storagePath,
		Addresses:      make(map[string]string, len(types.EntryPointSymbols)),
		MissingSymbols: result.MissingSymbols,
		ImageBytes:     result.ImageBytes,
		Timestamp:      now.UTC().Format(time.RFC3339),
		DurationMs:     result.Duration.Milliseconds(),
	}
	if result.Addresses != nil {
		for _, name := range types.EntryPointSymbols {
			addr, _ := result.Addresses.Get(name)
			event.Addresses[name] = fmt.Sprintf("0x%x", addr)
		}
	}
	return event
}

// Notifier publishes export completion events to a downstream system.
type Notifier interface {
	// Notify sends the event. Must respect context cancellation.
	Notify(ctx context.Context, event *ExportCompletedEvent) error
	// Close releases notifier resources.
	Close() error
}

// DefaultBackoff is the delay before the first retry; it doubles per retry.
const DefaultBackoff = 500 * time.Millisecond

// Permanent marks an error as non-retriable for Retry.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry calls fn up to 1+retries times with exponential backoff between
// attempts. Errors wrapped with Permanent stop the loop immediately.
func Retry(ctx context.Context, retries int, initial time.Duration, fn func(ctx context.Context) error) error {
	if initial <= 0 {
		initial = DefaultBackoff
	}
	if retries < 0 {
		retries = 0
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = initial << 6
	b.MaxElapsedTime = 0

	var (
		attempts  int
		permanent bool
	)
	err := backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		err := fn(ctx)
		var perm *backoff.PermanentError
		permanent = errors.As(err, &perm)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx))

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return fmt.Errorf("context canceled: %w", err)
	case permanent:
		return fmt.Errorf("non-retriable error: %w", err)
	default:
		return fmt.Errorf("failed after %d attempts: %w", attempts, err)
	}
}
