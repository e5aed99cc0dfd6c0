// Package publish uploads export outputs to a Lode store (local filesystem
// or S3) under a Hive-style partitioned prefix.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/justapithecus/lode/lode"
)

// Publisher writes one export output file.
type Publisher interface {
	// PutFile writes a file under the export's prefix.
	// The filename must not contain path separators or "..".
	PutFile(ctx context.Context, filename, contentType string, data []byte) error
}

// Config identifies the export being published.
type Config struct {
	// Name is the flash algorithm name (name= partition).
	Name string
	// ExportID is the export identifier (export_id= partition).
	ExportID string
}

// Validate checks that both partition values are present.
func (c Config) Validate() error {
	if c.Name == "" {
		return errors.New("publish: algorithm name is required")
	}
	if c.ExportID == "" {
		return errors.New("publish: export id is required")
	}
	return nil
}

// Prefix returns the partition prefix every file lands under.
// Format: algorithms/name=<name>/export_id=<id>
func (c Config) Prefix() string {
	return fmt.Sprintf("algorithms/name=%s/export_id=%s", c.Name, c.ExportID)
}

// LodePublisher is a Lode Store backed Publisher.
type LodePublisher struct {
	config       Config
	storeFactory lode.StoreFactory

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// NewFSPublisher creates a publisher writing below root on the local
// filesystem.
func NewFSPublisher(cfg Config, root string) (*LodePublisher, error) {
	return NewPublisherWithFactory(cfg, lode.NewFSFactory(root))
}

// NewPublisherWithFactory creates a publisher over a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewPublisherWithFactory(cfg Config, factory lode.StoreFactory) (*LodePublisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LodePublisher{config: cfg, storeFactory: factory}, nil
}

// Location returns the store path a file is written to.
func (p *LodePublisher) Location(filename string) string {
	return p.config.Prefix() + "/" + filename
}

// PutFile writes data at the partitioned path for filename.
// The store is created lazily on first use.
func (p *LodePublisher) PutFile(ctx context.Context, filename, _ string, data []byte) error {
	if err := validateFilename(filename); err != nil {
		return err
	}

	store, err := p.getOrCreateStore()
	if err != nil {
		return WrapInitError(err, p.config.Prefix())
	}

	path := p.Location(filename)
	return WrapWriteError(store.Put(ctx, path, bytes.NewReader(data)), path)
}

func (p *LodePublisher) getOrCreateStore() (lode.Store, error) {
	p.storeOnce.Do(func() {
		p.store, p.storeErr = p.storeFactory()
	})
	return p.store, p.storeErr
}

func validateFilename(name string) error {
	if name == "" || name == "." || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("publish: invalid filename %q", name)
	}
	return nil
}

// ContentType guesses the content type of an export output by extension.
func ContentType(filename string) string {
	switch filepath.Ext(filename) {
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "text/plain"
	}
}

// PublishFiles reads each local path and publishes it under its base name.
// Publishing stops at the first failure.
func PublishFiles(ctx context.Context, p Publisher, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("publish: failed to read %s: %w", path, err)
		}
		name := filepath.Base(path)
		if err := p.PutFile(ctx, name, ContentType(name), data); err != nil {
			return fmt.Errorf("publish %s: %w", name, err)
		}
	}
	return nil
}

// Verify LodePublisher implements Publisher.
var _ Publisher = (*LodePublisher)(nil)
