package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flashgen/build"
	"github.com/pithecene-io/flashgen/cli/config"
	"github.com/pithecene-io/flashgen/cli/render"
	"github.com/pithecene-io/flashgen/descriptor"
	"github.com/pithecene-io/flashgen/iox"
	"github.com/pithecene-io/flashgen/log"
	"github.com/pithecene-io/flashgen/metrics"
	"github.com/pithecene-io/flashgen/notify"
	redisnotify "github.com/pithecene-io/flashgen/notify/redis"
	"github.com/pithecene-io/flashgen/notify/webhook"
	"github.com/pithecene-io/flashgen/pipeline"
	"github.com/pithecene-io/flashgen/publish"
	"github.com/pithecene-io/flashgen/tools"
	"github.com/pithecene-io/flashgen/types"
)

// Exit codes of the export command.
const (
	exitSuccess      = 0
	exitUnexpected   = 1
	exitBuildOutcome = 2
	exitSymbolError  = 3
	exitToolFailure  = 4
	exitIOFailure    = 5
)

// DefaultName is the algorithm name used when none is configured.
const DefaultName = "algorithm-test"

// exportDeps overrides process and tool creation (for testing).
type exportDeps struct {
	buildFactory build.Factory
	runner       tools.Runner
}

// ExportCommand returns the export command.
// This is the only command that builds and runs external tools.
func ExportCommand() *cli.Command {
	return exportCommand(exportDeps{})
}

func exportCommand(deps exportDeps) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to config file (default: flashgen.yaml in the manifest dir, if present)",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "Flash algorithm name written into the descriptor",
			Value: DefaultName,
		},
		&cli.StringFlag{
			Name:  "manifest-dir",
			Usage: "Crate directory the build runs in",
		},
		&cli.StringFlag{
			Name:  "output-dir",
			Usage: "Directory for debug listings (default: <manifest-dir>/target)",
		},
		&cli.StringFlag{
			Name:  "descriptor",
			Usage: "Descriptor output path (default: <output-dir>/definition.yaml)",
		},
		&cli.StringFlag{
			Name:  "template",
			Usage: "Target definition template to merge the descriptor into",
		},
		&cli.BoolFlag{
			Name:  "strict-symbols",
			Usage: "Fail when an entry point symbol is missing instead of writing 0",
		},
		&cli.StringFlag{
			Name:  "record-events",
			Usage: "Record decoded build events to a journal file",
		},
		&cli.StringFlag{
			Name:  "build-command",
			Usage: "Build command line, split on whitespace (default: cargo build --release --message-format=json-diagnostic-rendered-ansi)",
		},
		&cli.StringSliceFlag{
			Name:  "build-env",
			Usage: "Extra build environment as KEY=VALUE (repeatable)",
		},
		&cli.StringFlag{
			Name:  "nm",
			Usage: "nm program",
			Value: tools.DefaultNM,
		},
		&cli.StringFlag{
			Name:  "objdump",
			Usage: "objdump program",
			Value: tools.DefaultObjdump,
		},
		&cli.StringFlag{
			Name:  "objcopy",
			Usage: "objcopy program",
			Value: tools.DefaultObjcopy,
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress the export report",
		},
		// Publish flags
		&cli.StringFlag{
			Name:  "publish-backend",
			Usage: "Publish outputs to an artifact store: fs or s3",
		},
		&cli.StringFlag{
			Name:  "publish-path",
			Usage: "Artifact store path (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "publish-region",
			Usage: "AWS region for the s3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "publish-endpoint",
			Usage: "Custom S3 endpoint for S3-compatible stores",
		},
		&cli.BoolFlag{
			Name:  "publish-s3-path-style",
			Usage: "Use path-style S3 addressing",
		},
		// Notify flags
		&cli.StringFlag{
			Name:  "notify-type",
			Usage: "Announce completed exports: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "notify-url",
			Usage: "Webhook URL or redis://host:port URL",
		},
		&cli.StringFlag{
			Name:  "notify-channel",
			Usage: "Redis channel (default " + redisnotify.DefaultChannel + ")",
		},
		&cli.StringSliceFlag{
			Name:  "notify-header",
			Usage: "Webhook header as key=value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "notify-timeout",
			Usage: "Per-attempt notification timeout",
			Value: webhook.DefaultTimeout,
		},
		&cli.IntFlag{
			Name:  "notify-retries",
			Usage: "Notification retries after the first attempt",
			Value: webhook.DefaultRetries,
		},
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
	flags = append(flags, LoggingFlags()...)

	return &cli.Command{
		Name:  "export",
		Usage: "Build the flash algorithm and export its descriptor",
		Description: "Runs the build, locates the single executable artifact, resolves the\n" +
			"entry point addresses, extracts the raw image and writes the descriptor\n" +
			"plus disassembly.s, dump.txt and nm.txt into the output directory.",
		Flags:  flags,
		Action: exportAction(deps),
	}
}

// publishChoice holds resolved artifact store configuration.
type publishChoice struct {
	backend   string // "fs", "s3" or "" (disabled)
	path      string // fs: directory, s3: bucket/prefix
	region    string
	endpoint  string
	pathStyle bool
}

// notifyChoice holds resolved notification configuration.
type notifyChoice struct {
	notifyType string
	url        string
	channel    string
	headers    map[string]string
	timeout    time.Duration
	retries    int
}

// exportOptions is the merged flag and config file configuration.
type exportOptions struct {
	name           string
	manifestDir    string
	outputDir      string
	descriptorPath string
	templatePath   string
	recordEvents   string
	strictSymbols  bool
	command        []string
	env            []string
	toolset        tools.Toolset
	publish        publishChoice
	notify         *notifyChoice
}

// loadConfig loads --config, or flashgen.yaml from the manifest dir when
// present.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if c.IsSet("config") {
		return config.Load(c.String("config"))
	}
	return config.LoadDefault(c.String("manifest-dir"))
}

func resolveExportOptions(c *cli.Context, cfg *config.Config) (*exportOptions, error) {
	opts := &exportOptions{
		name:          resolveString(c, "name", cfg.Name),
		manifestDir:   resolveString(c, "manifest-dir", cfg.ManifestDir),
		outputDir:     resolveString(c, "output-dir", cfg.OutputDir),
		templatePath:  resolveString(c, "template", cfg.Template),
		recordEvents:  resolveString(c, "record-events", cfg.RecordEvents),
		strictSymbols: resolveBool(c, "strict-symbols", cfg.StrictSymbols),
		env:           resolveStrings(c, "build-env", cfg.Build.Env),
		toolset: tools.Toolset{
			NM:      resolveString(c, "nm", cfg.Tools.NM),
			Objdump: resolveString(c, "objdump", cfg.Tools.Objdump),
			Objcopy: resolveString(c, "objcopy", cfg.Tools.Objcopy),
		},
	}
	if opts.name == "" {
		return nil, errors.New("--name must not be empty")
	}

	if opts.outputDir == "" {
		opts.outputDir = filepath.Join(opts.manifestDir, pipeline.DefaultOutputDir)
	}
	opts.descriptorPath = resolveString(c, "descriptor", cfg.Descriptor)
	if opts.descriptorPath == "" {
		opts.descriptorPath = filepath.Join(opts.outputDir, pipeline.DefaultDescriptorFile)
	}

	if c.IsSet("build-command") {
		opts.command = strings.Fields(c.String("build-command"))
		if len(opts.command) == 0 {
			return nil, errors.New("--build-command must not be empty")
		}
	} else {
		opts.command = cfg.Build.Command
	}

	pc, err := resolvePublishChoice(c, cfg)
	if err != nil {
		return nil, err
	}
	opts.publish = pc

	nc, err := resolveNotifyChoice(c, cfg)
	if err != nil {
		return nil, err
	}
	opts.notify = nc

	return opts, nil
}

func resolvePublishChoice(c *cli.Context, cfg *config.Config) (publishChoice, error) {
	choice := publishChoice{
		backend:   resolveString(c, "publish-backend", cfg.Publish.Backend),
		path:      resolveString(c, "publish-path", cfg.Publish.Path),
		region:    resolveString(c, "publish-region", cfg.Publish.Region),
		endpoint:  resolveString(c, "publish-endpoint", cfg.Publish.Endpoint),
		pathStyle: resolveBool(c, "publish-s3-path-style", cfg.Publish.S3PathStyle),
	}

	switch choice.backend {
	case "":
		return choice, nil
	case "fs", "s3":
	default:
		return choice, fmt.Errorf("invalid --publish-backend %q (must be fs or s3)", choice.backend)
	}
	if choice.path == "" {
		return choice, fmt.Errorf("--publish-path is required when --publish-backend is %s", choice.backend)
	}
	return choice, validatePublishChoice(choice)
}

// validatePublishChoice checks that an fs store root is an existing
// directory. s3 paths are checked when the store is created.
func validatePublishChoice(choice publishChoice) error {
	if choice.backend != "fs" {
		return nil
	}
	info, err := os.Stat(choice.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("--publish-path %q does not exist", choice.path)
		}
		return fmt.Errorf("--publish-path %q: %w", choice.path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("--publish-path %q is not a directory", choice.path)
	}
	return nil
}

func resolveNotifyChoice(c *cli.Context, cfg *config.Config) (*notifyChoice, error) {
	notifyType := resolveString(c, "notify-type", cfg.Notify.Type)
	switch notifyType {
	case "":
		return nil, nil
	case "webhook", "redis":
	default:
		return nil, fmt.Errorf("invalid --notify-type %q (must be webhook or redis)", notifyType)
	}

	choice := &notifyChoice{
		notifyType: notifyType,
		url:        resolveString(c, "notify-url", cfg.Notify.URL),
		channel:    resolveString(c, "notify-channel", cfg.Notify.Channel),
		headers:    make(map[string]string, len(cfg.Notify.Headers)),
		timeout:    resolveDuration(c, "notify-timeout", cfg.Notify.Timeout.Duration),
		retries:    resolveInt(c, "notify-retries", cfg.Notify.Retries),
	}
	if choice.url == "" {
		return nil, fmt.Errorf("--notify-url is required when --notify-type is %s", notifyType)
	}
	if choice.retries < 0 {
		return nil, fmt.Errorf("--notify-retries must be >= 0, got %d", choice.retries)
	}

	for k, v := range cfg.Notify.Headers {
		choice.headers[k] = v
	}
	for _, h := range c.StringSlice("notify-header") {
		k, v, ok := strings.Cut(h, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --notify-header %q: expected key=value", h)
		}
		choice.headers[k] = v
	}
	return choice, nil
}

func exportAction(deps exportDeps) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for export command", exitUnexpected)
		}

		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		opts, err := resolveExportOptions(c, cfg)
		if err != nil {
			return err
		}
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		meta := types.ExportMeta{ExportID: pipeline.NewExportID(), Name: opts.name}
		logger, err := newLogger(c, meta)
		if err != nil {
			return err
		}
		defer logger.Sync()
		collector := metrics.NewCollector(meta.ExportID, meta.Name, opts.publish.backend)

		ctx, cancel := context.WithCancel(c.Context)
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()

		var journal io.Writer
		if opts.recordEvents != "" {
			f, err := createJournal(opts.recordEvents)
			if err != nil {
				return cli.Exit(err.Error(), exitIOFailure)
			}
			defer iox.DiscardClose(f)
			journal = f
		}

		exporter, err := pipeline.NewExporter(&pipeline.Config{
			Meta: meta,
			Build: build.Config{
				Command: opts.command,
				Dir:     opts.manifestDir,
				Env:     opts.env,
			},
			BuildFactory:   deps.buildFactory,
			Runner:         deps.runner,
			Toolset:        opts.toolset,
			OutputDir:      opts.outputDir,
			DescriptorPath: opts.descriptorPath,
			TemplatePath:   opts.templatePath,
			StrictSymbols:  opts.strictSymbols,
			Diagnostics:    errWriter(c),
			Journal:        journal,
			Logger:         logger,
			Collector:      collector,
		})
		if err != nil {
			return err
		}

		result, exportErr := exporter.Execute(ctx)

		var exitErr error
		var storagePath string
		if exportErr != nil {
			exitErr = cli.Exit(exportErr.Error(), exitCodeFor(exportErr))
		} else {
			if opts.publish.backend != "" {
				storagePath, err = publishExport(ctx, opts.publish, meta, result, collector, logger)
				if err != nil {
					exitErr = cli.Exit(fmt.Sprintf("publish failed: %v", err), exitIOFailure)
				}
			}
			if exitErr == nil && opts.notify != nil {
				notifyExport(ctx, opts.notify, result, storagePath, logger)
			}
		}

		if !c.Bool("quiet") {
			report := newExportReport(result, storagePath, collector.Snapshot())
			if err := r.Render(report); err != nil {
				if exitErr != nil {
					logger.Warn("failed to render export report", map[string]any{
						"error": err.Error(),
					})
					return exitErr
				}
				return err
			}
		}
		return exitErr
	}
}

// createJournal opens a fresh journal file, creating its directory.
func createJournal(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}
	return f, nil
}

// exitCodeFor maps an export failure to the command's exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}
	kind, ok := pipeline.KindOf(err)
	if !ok {
		return exitUnexpected
	}
	switch kind {
	case pipeline.ErrorMultipleArtifacts, pipeline.ErrorNoArtifact:
		return exitBuildOutcome
	case pipeline.ErrorSymbolParse, pipeline.ErrorIncompleteSymbolTable:
		return exitSymbolError
	case pipeline.ErrorExternalTool:
		return exitToolFailure
	case pipeline.ErrorIO:
		return exitIOFailure
	default:
		return exitUnexpected
	}
}

// publishExport uploads the descriptor and debug listings and returns the
// store location they were written under.
func publishExport(ctx context.Context, choice publishChoice, meta types.ExportMeta, result *pipeline.Result, collector *metrics.Collector, logger *log.Logger) (string, error) {
	cfg := publish.Config{Name: meta.Name, ExportID: meta.ExportID}

	var (
		publisher publish.Publisher
		location  string
		err       error
	)
	switch choice.backend {
	case "fs":
		publisher, err = publish.NewFSPublisher(cfg, choice.path)
		location = filepath.Join(choice.path, cfg.Prefix())
	case "s3":
		bucket, prefix := publish.ParseS3Path(choice.path)
		s3cfg := publish.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       choice.region,
			Endpoint:     choice.endpoint,
			UsePathStyle: choice.pathStyle,
		}
		publisher, err = publish.NewS3Publisher(ctx, cfg, s3cfg)
		location = s3cfg.Location(cfg.Prefix())
	default:
		return "", fmt.Errorf("unknown publish backend %q", choice.backend)
	}
	if err != nil {
		return "", err
	}

	paths := []string{result.DescriptorPath}
	if result.DebugInfo != nil {
		paths = append(paths, result.DebugInfo.Paths()...)
	}
	instrumented := publish.NewInstrumentedPublisher(publisher, collector, logger)
	if err := publish.PublishFiles(ctx, instrumented, paths); err != nil {
		return "", err
	}

	logger.Info("export published", map[string]any{
		"backend":  choice.backend,
		"location": location,
		"files":    len(paths),
	})
	return location, nil
}

// buildNotifier creates the configured notifier.
func buildNotifier(choice *notifyChoice) (notify.Notifier, error) {
	switch choice.notifyType {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     choice.url,
			Headers: choice.headers,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	case "redis":
		return redisnotify.New(redisnotify.Config{
			URL:     choice.url,
			Channel: choice.channel,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	default:
		return nil, fmt.Errorf("unknown notify type %q", choice.notifyType)
	}
}

// notifyExport announces a completed export. Failures are logged and never
// change the export outcome.
func notifyExport(ctx context.Context, choice *notifyChoice, result *pipeline.Result, storagePath string, logger *log.Logger) {
	notifier, err := buildNotifier(choice)
	if err != nil {
		logger.Warn("notifier unavailable", map[string]any{"error": err.Error()})
		return
	}
	defer iox.DiscardClose(notifier)

	event := notify.NewExportCompletedEvent(result, storagePath, time.Now())
	if err := notifier.Notify(ctx, event); err != nil {
		logger.Warn("export notification failed", map[string]any{
			"type":  choice.notifyType,
			"error": err.Error(),
		})
		return
	}
	logger.Info("export notification sent", map[string]any{"type": choice.notifyType})
}

// ExportReport is the rendered summary of an export.
type ExportReport struct {
	ExportID       string           `json:"export_id" yaml:"export_id"`
	Name           string           `json:"name" yaml:"name"`
	State          string           `json:"state" yaml:"state"`
	Artifact       string           `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Descriptor     string           `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	PCInit         string           `json:"pc_init,omitempty" yaml:"pc_init,omitempty"`
	PCUnInit       string           `json:"pc_uninit,omitempty" yaml:"pc_uninit,omitempty"`
	PCProgramPage  string           `json:"pc_program_page,omitempty" yaml:"pc_program_page,omitempty"`
	PCEraseSector  string           `json:"pc_erase_sector,omitempty" yaml:"pc_erase_sector,omitempty"`
	PCEraseAll     string           `json:"pc_erase_all,omitempty" yaml:"pc_erase_all,omitempty"`
	MissingSymbols []string         `json:"missing_symbols,omitempty" yaml:"missing_symbols,omitempty"`
	ImageBytes     int              `json:"image_bytes" yaml:"image_bytes"`
	BuildExitCode  int              `json:"build_exit_code" yaml:"build_exit_code"`
	Events         int64            `json:"events" yaml:"events"`
	Diagnostics    int64            `json:"diagnostics" yaml:"diagnostics"`
	StoragePath    string           `json:"storage_path,omitempty" yaml:"storage_path,omitempty"`
	Duration       string           `json:"duration" yaml:"duration"`
	Error          string           `json:"error,omitempty" yaml:"error,omitempty"`
	Metrics        metrics.Snapshot `json:"metrics" yaml:"metrics"`
}

func newExportReport(result *pipeline.Result, storagePath string, snapshot metrics.Snapshot) *ExportReport {
	report := &ExportReport{
		ExportID:       result.ExportID,
		Name:           result.Name,
		State:          string(result.State),
		Artifact:       result.Artifact,
		Descriptor:     result.DescriptorPath,
		MissingSymbols: result.MissingSymbols,
		ImageBytes:     result.ImageBytes,
		BuildExitCode:  result.BuildExitCode,
		Events:         result.EventCount,
		Diagnostics:    result.Diagnostics,
		StoragePath:    storagePath,
		Duration:       result.Duration.Round(time.Millisecond).String(),
		Error:          result.Error,
		Metrics:        snapshot,
	}
	if a := result.Addresses; a != nil {
		report.PCInit = descriptor.Address(a.Init).String()
		report.PCUnInit = descriptor.Address(a.UnInit).String()
		report.PCProgramPage = descriptor.Address(a.ProgramPage).String()
		report.PCEraseSector = descriptor.Address(a.EraseSector).String()
		report.PCEraseAll = descriptor.Address(a.EraseChip).String()
	}
	return report
}
