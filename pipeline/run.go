package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/flashgen/build"
	"github.com/pithecene-io/flashgen/descriptor"
	"github.com/pithecene-io/flashgen/events"
	"github.com/pithecene-io/flashgen/iox"
	"github.com/pithecene-io/flashgen/log"
	"github.com/pithecene-io/flashgen/metrics"
	"github.com/pithecene-io/flashgen/tools"
	"github.com/pithecene-io/flashgen/types"
)

// Default output locations, relative to the crate directory.
const (
	DefaultOutputDir      = "target"
	DefaultDescriptorFile = "definition.yaml"
)

// NewExportID returns a fresh export identifier.
func NewExportID() string {
	return uuid.New().String()
}

// Config configures a single export.
type Config struct {
	// Meta is the export identity. An empty ExportID is generated.
	Meta types.ExportMeta
	// Build configures the build invocation.
	Build build.Config
	// BuildFactory overrides build process creation (for testing).
	// If nil, uses build.NewManager.
	BuildFactory build.Factory
	// Runner runs the binary tools. If nil, uses tools.NewExecRunner.
	Runner tools.Runner
	// Toolset names the binary tools. Empty entries use the defaults.
	Toolset tools.Toolset
	// OutputDir receives the debug listings. Empty uses DefaultOutputDir.
	OutputDir string
	// DescriptorPath is the descriptor output file.
	// Empty uses DefaultDescriptorFile inside OutputDir.
	DescriptorPath string
	// TemplatePath is an optional target definition template.
	// When set, the descriptor is merged into its flash_algorithms list.
	TemplatePath string
	// StrictSymbols fails the export when an entry point is missing.
	StrictSymbols bool
	// Diagnostics receives build diagnostics. If nil, they are discarded.
	Diagnostics io.Writer
	// Journal optionally records every decoded build event.
	Journal io.Writer
	// Logger is the export logger. If nil, logging is disabled.
	Logger *log.Logger
	// Collector is the metrics collector for this export.
	// If nil, no metrics are recorded (all Collector methods are nil-safe).
	Collector *metrics.Collector
}

// Result describes a finished export, successful or not.
type Result struct {
	ExportID       string              `json:"export_id" yaml:"export_id"`
	Name           string              `json:"name" yaml:"name"`
	State          types.ExportState   `json:"state" yaml:"state"`
	Transitions    []types.ExportState `json:"transitions" yaml:"transitions"`
	Artifact       string              `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	BuildExitCode  int                 `json:"build_exit_code" yaml:"build_exit_code"`
	EventCount     int64               `json:"event_count" yaml:"event_count"`
	Diagnostics    int64               `json:"diagnostics" yaml:"diagnostics"`
	Addresses      *types.Addresses    `json:"addresses,omitempty" yaml:"addresses,omitempty"`
	MissingSymbols []string            `json:"missing_symbols,omitempty" yaml:"missing_symbols,omitempty"`
	ImageBytes     int                 `json:"image_bytes" yaml:"image_bytes"`
	DescriptorPath string              `json:"descriptor_path,omitempty" yaml:"descriptor_path,omitempty"`
	DebugInfo      *DebugInfo          `json:"debug_info,omitempty" yaml:"debug_info,omitempty"`
	Duration       time.Duration       `json:"duration" yaml:"duration"`
	Error          string              `json:"error,omitempty" yaml:"error,omitempty"`

	// Descriptor is the emitted descriptor, nil on failure.
	Descriptor *descriptor.Descriptor `json:"-" yaml:"-"`
}

// Exporter orchestrates a single export.
type Exporter struct {
	config    *Config
	logger    *log.Logger
	runner    tools.Runner
	toolset   tools.Toolset
	result    *Result
	startTime time.Time
}

// NewExporter creates an exporter, filling defaults.
func NewExporter(config *Config) (*Exporter, error) {
	if config.Meta.Name == "" {
		return nil, errors.New("algorithm name is required")
	}
	if config.Meta.ExportID == "" {
		config.Meta.ExportID = NewExportID()
	}
	if config.OutputDir == "" {
		config.OutputDir = DefaultOutputDir
	}
	if config.DescriptorPath == "" {
		config.DescriptorPath = filepath.Join(config.OutputDir, DefaultDescriptorFile)
	}

	logger := config.Logger
	if logger == nil {
		logger = log.Nop()
	}
	runner := config.Runner
	if runner == nil {
		runner = tools.NewExecRunner()
	}

	return &Exporter{
		config:  config,
		logger:  logger,
		runner:  tools.NewInstrumentedRunner(runner, config.Collector, logger),
		toolset: config.Toolset.WithDefaults(),
		result: &Result{
			ExportID: config.Meta.ExportID,
			Name:     config.Meta.Name,
		},
	}, nil
}

// Meta returns the export identity.
func (x *Exporter) Meta() types.ExportMeta {
	return x.config.Meta
}

// Execute runs the export end-to-end. Stages run strictly in sequence and
// the first failure ends the export. The descriptor is written last, so a
// failed export never creates or modifies it.
//
// The returned Result is non-nil on every path; err is an *ExportError
// for pipeline failures.
func (x *Exporter) Execute(ctx context.Context) (*Result, error) {
	x.startTime = time.Now()
	x.config.Collector.IncExportStarted()
	x.logger.Info("starting export", map[string]any{
		"command":    x.config.Build.Argv(),
		"dir":        x.config.Build.Dir,
		"descriptor": x.config.DescriptorPath,
	})

	err := x.execute(ctx)
	x.result.Duration = time.Since(x.startTime)
	if err != nil {
		x.transition(types.StateFailed)
		x.result.Error = err.Error()
		x.config.Collector.IncExportFailed()
		x.logger.Error("export failed", map[string]any{
			"error":    err.Error(),
			"duration": x.result.Duration.String(),
		})
		return x.result, err
	}

	x.transition(types.StateDone)
	x.config.Collector.IncExportCompleted()
	x.logger.Info("export completed", map[string]any{
		"artifact":   x.result.Artifact,
		"descriptor": x.result.DescriptorPath,
		"duration":   x.result.Duration.String(),
	})
	return x.result, nil
}

func (x *Exporter) execute(ctx context.Context) error {
	artifact, err := x.buildArtifact(ctx)
	if err != nil {
		return err
	}
	x.result.Artifact = artifact

	x.transition(types.StateResolving)
	symbols, err := ResolveSymbols(ctx, x.runner, x.toolset, artifact, x.config.StrictSymbols)
	if err != nil {
		return err
	}
	x.config.Collector.AddSymbolsMatched(symbols.Matched)
	x.result.Addresses = &symbols.Addresses
	x.result.MissingSymbols = symbols.Missing
	if len(symbols.Missing) > 0 {
		x.logger.Warn("entry points missing, defaulting to 0", map[string]any{
			"missing": symbols.Missing,
		})
	}

	x.transition(types.StateExtracting)
	image, err := ExtractImage(ctx, x.runner, x.toolset, artifact)
	if err != nil {
		return err
	}
	x.config.Collector.SetImageBytes(len(image))
	x.result.ImageBytes = len(image)

	x.transition(types.StateEmittingDebugInfo)
	debugInfo, err := EmitDebugInfo(ctx, x.runner, x.toolset, artifact, x.config.OutputDir)
	if err != nil {
		return err
	}
	x.result.DebugInfo = debugInfo

	x.transition(types.StateEmitting)
	desc := descriptor.New(x.config.Meta.Name, image, symbols.Addresses)
	if err := x.emit(desc); err != nil {
		return err
	}
	x.result.Descriptor = desc
	x.result.DescriptorPath = x.config.DescriptorPath
	return nil
}

// buildArtifact runs the build and the event ingestion loop.
func (x *Exporter) buildArtifact(ctx context.Context) (string, error) {
	x.transition(types.StateInvoking)

	var process build.Process
	if x.config.BuildFactory != nil {
		process = x.config.BuildFactory(&x.config.Build)
	} else {
		process = build.NewManager(&x.config.Build)
	}

	// The stderr relay and the diagnostic relay write concurrently.
	sink := iox.NewLockedWriter(x.config.Diagnostics)

	var journal *events.JournalWriter
	if x.config.Journal != nil {
		jw, err := events.NewJournalWriter(x.config.Journal, x.config.Meta)
		if err != nil {
			return "", newError(ErrorIO, types.StateInvoking, err)
		}
		journal = jw
	}

	if err := process.Start(ctx, sink); err != nil {
		x.config.Collector.IncToolFailure()
		return "", newError(ErrorExternalTool, types.StateInvoking, err)
	}
	x.config.Collector.IncToolInvocation()

	x.transition(types.StateParsingEvents)
	ingestion := NewIngestion(process.Stdout(), sink, journal, x.logger, x.config.Collector)

	// Wait closes the stdout pipe, so ingestion must finish first.
	ingErr := ingestion.Run(ctx)
	if ingErr != nil {
		x.logger.Warn("killing build due to ingestion error", map[string]any{
			"error": ingErr.Error(),
		})
		_ = process.Kill()
	}

	buildResult, waitErr := process.Wait()
	x.result.EventCount = ingestion.EventCount()
	x.result.Diagnostics = ingestion.DiagnosticCount()

	if ingErr != nil {
		return "", ingErr
	}
	if errors.Is(waitErr, build.ErrDiagnosticRelay) {
		return "", newError(ErrorIO, types.StateParsingEvents, waitErr)
	}
	if waitErr != nil {
		x.config.Collector.IncToolFailure()
		return "", newError(ErrorExternalTool, types.StateParsingEvents, waitErr)
	}

	x.result.BuildExitCode = buildResult.ExitCode
	if buildResult.ExitCode != 0 {
		x.logger.Warn("build exited non-zero", map[string]any{
			"exit_code": buildResult.ExitCode,
		})
	}

	artifact, err := ingestion.Artifact()
	if err != nil {
		if buildResult.ExitCode != 0 {
			var exportErr *ExportError
			if errors.As(err, &exportErr) {
				exportErr.Err = fmt.Errorf("%w (build exit code %d)", exportErr.Err, buildResult.ExitCode)
			}
		}
		return "", err
	}

	x.logger.Info("build finished", map[string]any{
		"artifact":    artifact,
		"exit_code":   buildResult.ExitCode,
		"events":      ingestion.EventCount(),
		"diagnostics": ingestion.DiagnosticCount(),
	})
	return artifact, nil
}

// emit renders the descriptor, merging it into the template if one is
// configured, and atomically replaces the output file.
func (x *Exporter) emit(desc *descriptor.Descriptor) error {
	var template []byte
	if x.config.TemplatePath != "" {
		data, err := os.ReadFile(x.config.TemplatePath)
		if err != nil {
			return newError(ErrorIO, types.StateEmitting, fmt.Errorf("failed to read template: %w", err))
		}
		template = data
	}

	data, err := descriptor.Render(desc, template)
	if err != nil {
		return newError(ErrorIO, types.StateEmitting, err)
	}

	if dir := filepath.Dir(x.config.DescriptorPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return newError(ErrorIO, types.StateEmitting, fmt.Errorf("failed to create descriptor dir: %w", err))
		}
	}
	if err := descriptor.WriteFile(x.config.DescriptorPath, data); err != nil {
		return newError(ErrorIO, types.StateEmitting, err)
	}
	return nil
}

func (x *Exporter) transition(state types.ExportState) {
	from := x.result.State
	x.result.State = state
	x.result.Transitions = append(x.result.Transitions, state)
	x.logger.Debug("export state", map[string]any{
		"from": string(from),
		"to":   string(state),
	})
}
