package cmd

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flashgen/build"
	"github.com/pithecene-io/flashgen/notify"
	"github.com/pithecene-io/flashgen/pipeline"
	"github.com/pithecene-io/flashgen/tools"
	"github.com/pithecene-io/flashgen/types"
)

const testListing = "00000101 T Init\n00000201 T UnInit\n00000301 T ProgramPage\n00000401 T EraseSector\n00000501 T EraseChip\n"

const testArtifact = "/work/algo/target/thumbv7em-none-eabi/release/algo"

func artifactLine(path string) string {
	return `{"reason":"compiler-artifact","package_id":"algo 0.1.0","target":{"name":"algo"},"executable":"` + path + `"}`
}

const warningLine = `{"reason":"compiler-message","message":{"rendered":"warning: unused\n","level":"warning"}}`

// testRunner answers the nm, objdump and objcopy invocations of an export.
func testRunner(listing string) *tools.StubRunner {
	return tools.NewStubRunner().
		Respond(tools.DefaultNM, tools.StubResponse{Stdout: listing}).
		Respond(tools.DefaultObjdump, tools.StubResponse{Stdout: "disassembly\n"}).
		Handle(tools.DefaultObjcopy, func(inv tools.Invocation) tools.StubResponse {
			if err := os.WriteFile(inv.Args[3], []byte{0x01, 0x02, 0x03, 0x04}, 0o600); err != nil {
				return tools.StubResponse{Err: err}
			}
			return tools.StubResponse{}
		})
}

type appOutput struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
}

// runCommand runs a single command through a fresh app and returns its
// output and error. Exit errors are returned instead of exiting.
func runCommand(t *testing.T, command *cli.Command, args ...string) (*appOutput, error) {
	t.Helper()
	out := &appOutput{}
	app := &cli.App{
		Name:           "flashgen",
		Writer:         &out.stdout,
		ErrWriter:      &out.stderr,
		ExitErrHandler: func(*cli.Context, error) {},
		Commands:       []*cli.Command{command},
	}
	err := app.Run(append([]string{"flashgen", command.Name}, args...))
	return out, err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return exitSuccess
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return exitUnexpected
}

func stubExport(proc *build.StubProcess, runner tools.Runner) *cli.Command {
	return exportCommand(exportDeps{buildFactory: proc.Factory(), runner: runner})
}

func decodeReport(t *testing.T, data []byte) ExportReport {
	t.Helper()
	var report ExportReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("invalid report JSON: %v\n%s", err, data)
	}
	return report
}

func TestExport_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	proc := &build.StubProcess{Events: warningLine + "\n" + artifactLine(testArtifact) + "\n"}

	out, err := runCommand(t, stubExport(proc, testRunner(testListing)),
		"--manifest-dir", dir, "--format", "json", "--quiet-log")
	if err != nil {
		t.Fatalf("export failed: %v\nstderr: %s", err, out.stderr.String())
	}

	report := decodeReport(t, out.stdout.Bytes())
	if report.State != "done" {
		t.Errorf("state = %q, want done", report.State)
	}
	if report.Name != DefaultName {
		t.Errorf("name = %q, want %q", report.Name, DefaultName)
	}
	if report.PCInit != "0x102" || report.PCEraseAll != "0x502" {
		t.Errorf("addresses = %s, %s", report.PCInit, report.PCEraseAll)
	}
	if report.ImageBytes != 4 {
		t.Errorf("image_bytes = %d, want 4", report.ImageBytes)
	}

	wantDescriptor := filepath.Join(dir, pipeline.DefaultOutputDir, pipeline.DefaultDescriptorFile)
	if report.Descriptor != wantDescriptor {
		t.Errorf("descriptor = %q, want %q", report.Descriptor, wantDescriptor)
	}
	data, err := os.ReadFile(wantDescriptor)
	if err != nil {
		t.Fatalf("descriptor not written: %v", err)
	}
	if !strings.Contains(string(data), "pc_init: 0x102\n") {
		t.Errorf("descriptor missing pc_init:\n%s", data)
	}
	if !strings.Contains(out.stderr.String(), "warning: unused\n") {
		t.Errorf("diagnostic not relayed to stderr: %q", out.stderr.String())
	}
}

func TestExport_Quiet(t *testing.T) {
	proc := &build.StubProcess{Events: artifactLine(testArtifact) + "\n"}
	out, err := runCommand(t, stubExport(proc, testRunner(testListing)),
		"--manifest-dir", t.TempDir(), "--quiet", "--quiet-log")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if out.stdout.Len() != 0 {
		t.Errorf("--quiet should suppress the report, got %q", out.stdout.String())
	}
}

func TestExport_ExitCodes(t *testing.T) {
	tests := []struct {
		name   string
		events string
		runner tools.Runner
		args   []string
		want   int
	}{
		{
			name:   "no artifact",
			events: warningLine + "\n",
			runner: testRunner(testListing),
			want:   exitBuildOutcome,
		},
		{
			name:   "multiple artifacts",
			events: artifactLine(testArtifact) + "\n" + artifactLine("/work/algo/target/release/other") + "\n",
			runner: testRunner(testListing),
			want:   exitBuildOutcome,
		},
		{
			name:   "nm fails",
			events: artifactLine(testArtifact) + "\n",
			runner: testRunner(testListing).Respond(tools.DefaultNM, tools.StubResponse{ExitCode: 1, Stderr: "no symbols"}),
			want:   exitToolFailure,
		},
		{
			name:   "strict with missing symbol",
			events: artifactLine(testArtifact) + "\n",
			runner: testRunner("00000101 T Init\n"),
			args:   []string{"--strict-symbols"},
			want:   exitSymbolError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &build.StubProcess{Events: tt.events}
			args := append([]string{"--manifest-dir", t.TempDir(), "--format", "json", "--quiet-log"}, tt.args...)
			_, err := runCommand(t, stubExport(proc, tt.runner), args...)
			if got := exitCode(t, err); got != tt.want {
				t.Errorf("exit code = %d, want %d (err: %v)", got, tt.want, err)
			}
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("stdout closed") }

func TestExport_ReportRenderFailureKeepsExitCode(t *testing.T) {
	proc := &build.StubProcess{Events: warningLine + "\n"}
	app := &cli.App{
		Name:           "flashgen",
		Writer:         failingWriter{},
		ErrWriter:      io.Discard,
		ExitErrHandler: func(*cli.Context, error) {},
		Commands:       []*cli.Command{stubExport(proc, testRunner(testListing))},
	}

	err := app.Run([]string{"flashgen", "export", "--manifest-dir", t.TempDir(), "--format", "json", "--quiet-log"})
	if got := exitCode(t, err); got != exitBuildOutcome {
		t.Errorf("exit code = %d, want %d (err: %v)", got, exitBuildOutcome, err)
	}
}

func TestExport_MissingSymbolsWithoutStrict(t *testing.T) {
	proc := &build.StubProcess{Events: artifactLine(testArtifact) + "\n"}
	out, err := runCommand(t, stubExport(proc, testRunner("00000101 T Init\n")),
		"--manifest-dir", t.TempDir(), "--format", "json", "--quiet-log")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	report := decodeReport(t, out.stdout.Bytes())
	if report.PCUnInit != "0x0" {
		t.Errorf("pc_uninit = %q, want 0x0", report.PCUnInit)
	}
	if len(report.MissingSymbols) != 4 {
		t.Errorf("missing_symbols = %v, want 4 entries", report.MissingSymbols)
	}
}

func TestExport_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := "name: from-config\n"
	if err := os.WriteFile(filepath.Join(dir, "flashgen.yaml"), []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("default file supplies name", func(t *testing.T) {
		proc := &build.StubProcess{Events: artifactLine(testArtifact) + "\n"}
		out, err := runCommand(t, stubExport(proc, testRunner(testListing)),
			"--manifest-dir", dir, "--format", "json", "--quiet-log")
		if err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if got := decodeReport(t, out.stdout.Bytes()).Name; got != "from-config" {
			t.Errorf("name = %q, want from-config", got)
		}
	})

	t.Run("flag overrides config", func(t *testing.T) {
		proc := &build.StubProcess{Events: artifactLine(testArtifact) + "\n"}
		out, err := runCommand(t, stubExport(proc, testRunner(testListing)),
			"--manifest-dir", dir, "--name", "from-flag", "--format", "json", "--quiet-log")
		if err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if got := decodeReport(t, out.stdout.Bytes()).Name; got != "from-flag" {
			t.Errorf("name = %q, want from-flag", got)
		}
	})

	t.Run("explicit config not found", func(t *testing.T) {
		proc := &build.StubProcess{}
		_, err := runCommand(t, stubExport(proc, testRunner(testListing)),
			"--manifest-dir", dir, "--config", filepath.Join(dir, "missing.yaml"))
		if err == nil || !strings.Contains(err.Error(), "config file not found") {
			t.Errorf("expected config not found error, got %v", err)
		}
	})
}

func TestExport_OptionErrors(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"empty name", []string{"--name", ""}, "--name must not be empty"},
		{"blank build command", []string{"--build-command", "  "}, "--build-command must not be empty"},
		{"unknown backend", []string{"--publish-backend", "gcs"}, "invalid --publish-backend"},
		{"backend without path", []string{"--publish-backend", "s3"}, "--publish-path is required"},
		{"fs path missing", []string{"--publish-backend", "fs", "--publish-path", filepath.Join(file, "nope")}, "--publish-path"},
		{"fs path is a file", []string{"--publish-backend", "fs", "--publish-path", file}, "is not a directory"},
		{"unknown notify type", []string{"--notify-type", "email"}, "invalid --notify-type"},
		{"notify without url", []string{"--notify-type", "webhook"}, "--notify-url is required"},
		{"bad header", []string{"--notify-type", "webhook", "--notify-url", "http://localhost", "--notify-header", "novalue"}, "invalid --notify-header"},
		{"negative retries", []string{"--notify-type", "redis", "--notify-url", "redis://localhost:6379", "--notify-retries", "-1"}, "--notify-retries must be >= 0"},
		{"tui", []string{"--tui"}, "--tui is not supported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &build.StubProcess{Events: artifactLine(testArtifact) + "\n"}
			args := append([]string{"--manifest-dir", t.TempDir(), "--quiet-log"}, tt.args...)
			_, err := runCommand(t, stubExport(proc, testRunner(testListing)), args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
			if proc.Waited() {
				t.Error("build should not run when options are invalid")
			}
		})
	}
}

func TestExport_PublishFS(t *testing.T) {
	store := t.TempDir()
	proc := &build.StubProcess{Events: artifactLine(testArtifact) + "\n"}

	out, err := runCommand(t, stubExport(proc, testRunner(testListing)),
		"--manifest-dir", t.TempDir(), "--name", "algo",
		"--publish-backend", "fs", "--publish-path", store,
		"--format", "json", "--quiet-log")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	report := decodeReport(t, out.stdout.Bytes())
	wantLocation := filepath.Join(store, "algorithms", "name=algo", "export_id="+report.ExportID)
	if report.StoragePath != wantLocation {
		t.Errorf("storage_path = %q, want %q", report.StoragePath, wantLocation)
	}
	for _, file := range []string{pipeline.DefaultDescriptorFile, pipeline.DisassemblyFile, pipeline.DumpFile, pipeline.SymbolsFile} {
		if _, err := os.Stat(filepath.Join(wantLocation, file)); err != nil {
			t.Errorf("%s not published: %v", file, err)
		}
	}
	if report.Metrics.PublishSuccess != 4 {
		t.Errorf("publish_success = %d, want 4", report.Metrics.PublishSuccess)
	}
}

func TestExport_WebhookNotify(t *testing.T) {
	var (
		mu       sync.Mutex
		received notify.ExportCompletedEvent
		header   string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		header = r.Header.Get("X-Token")
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	proc := &build.StubProcess{Events: artifactLine(testArtifact) + "\n"}
	_, err := runCommand(t, stubExport(proc, testRunner(testListing)),
		"--manifest-dir", t.TempDir(), "--name", "algo", "--quiet",
		"--notify-type", "webhook", "--notify-url", ts.URL, "--notify-header", "X-Token=secret",
		"--quiet-log")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if received.Name != "algo" || received.EventType != notify.EventExportCompleted {
		t.Errorf("event = %+v", received)
	}
	if received.Artifact != testArtifact {
		t.Errorf("artifact = %q, want %q", received.Artifact, testArtifact)
	}
	if header != "secret" {
		t.Errorf("X-Token = %q, want secret", header)
	}
}

func TestExport_NotifyFailureKeepsSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	proc := &build.StubProcess{Events: artifactLine(testArtifact) + "\n"}
	out, err := runCommand(t, stubExport(proc, testRunner(testListing)),
		"--manifest-dir", t.TempDir(), "--quiet",
		"--notify-type", "webhook", "--notify-url", ts.URL, "--notify-retries", "0")
	if err != nil {
		t.Fatalf("notification failure should not fail the export: %v", err)
	}
	if !strings.Contains(out.stderr.String(), "export notification failed") {
		t.Errorf("expected a warning log, got %q", out.stderr.String())
	}
}

func TestExport_RecordEventsThenRead(t *testing.T) {
	dir := t.TempDir()
	journal := filepath.Join(dir, "journal", "events.bin")
	proc := &build.StubProcess{Events: warningLine + "\n" + artifactLine(testArtifact) + "\n"}

	if _, err := runCommand(t, stubExport(proc, testRunner(testListing)),
		"--manifest-dir", dir, "--record-events", journal, "--quiet", "--quiet-log"); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	out, err := runCommand(t, EventsCommand(), "--summary", "--format", "json", journal)
	if err != nil {
		t.Fatalf("events failed: %v", err)
	}
	var summary struct {
		Total       int64            `json:"total"`
		Diagnostics int64            `json:"diagnostics"`
		Executables []string         `json:"executables"`
		ByLevel     map[string]int64 `json:"by_level"`
	}
	if err := json.Unmarshal(out.stdout.Bytes(), &summary); err != nil {
		t.Fatalf("invalid summary JSON: %v\n%s", err, out.stdout.String())
	}
	if summary.Total != 2 || summary.Diagnostics != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.Executables) != 1 || summary.Executables[0] != testArtifact {
		t.Errorf("executables = %v", summary.Executables)
	}
	if summary.ByLevel["warning"] != 1 {
		t.Errorf("by_level = %v", summary.ByLevel)
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		kind pipeline.ErrorKind
		want int
	}{
		{pipeline.ErrorNoArtifact, exitBuildOutcome},
		{pipeline.ErrorMultipleArtifacts, exitBuildOutcome},
		{pipeline.ErrorSymbolParse, exitSymbolError},
		{pipeline.ErrorIncompleteSymbolTable, exitSymbolError},
		{pipeline.ErrorExternalTool, exitToolFailure},
		{pipeline.ErrorIO, exitIOFailure},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := &pipeline.ExportError{Kind: tt.kind, State: types.StateFailed, Err: errors.New("boom")}
			if got := exitCodeFor(err); got != tt.want {
				t.Errorf("exitCodeFor(%s) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}

	if got := exitCodeFor(nil); got != exitSuccess {
		t.Errorf("exitCodeFor(nil) = %d", got)
	}
	if got := exitCodeFor(errors.New("plain")); got != exitUnexpected {
		t.Errorf("exitCodeFor(plain) = %d", got)
	}
}
