package tools

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pithecene-io/flashgen/metrics"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_CapturesOutputAndExitCode(t *testing.T) {
	requireShell(t)

	var stdout, stderr bytes.Buffer
	code, err := NewExecRunner().Run(t.Context(), Invocation{
		Name:   "sh",
		Args:   []string{"-c", "echo out; echo err >&2; exit 3"},
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if stdout.String() != "out\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
	if stderr.String() != "err\n" {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestExecRunner_EnvAndDir(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()

	var stdout bytes.Buffer
	code, err := NewExecRunner().Run(t.Context(), Invocation{
		Name:   "sh",
		Args:   []string{"-c", `printf "%s %s" "$FLASHGEN_TEST" "$(pwd)"`},
		Dir:    dir,
		Env:    []string{"FLASHGEN_TEST=yes"},
		Stdout: &stdout,
	})
	if err != nil || code != 0 {
		t.Fatalf("Run = (%d, %v)", code, err)
	}
	if !strings.HasPrefix(stdout.String(), "yes ") {
		t.Errorf("env not applied: %q", stdout.String())
	}
}

func TestExecRunner_MissingProgram(t *testing.T) {
	code, err := NewExecRunner().Run(t.Context(), Invocation{Name: "flashgen-definitely-missing-tool"})
	if err == nil {
		t.Fatal("expected start error")
	}
	if code != -1 {
		t.Errorf("exit code = %d, want -1", code)
	}
}

func TestOutput_Success(t *testing.T) {
	stub := NewStubRunner().Respond("rust-nm", StubResponse{Stdout: "00000101 T Init\n"})

	out, err := Output(t.Context(), stub, DefaultToolset().SymbolTable("algo.elf"))
	if err != nil {
		t.Fatalf("Output failed: %v", err)
	}
	if string(out) != "00000101 T Init\n" {
		t.Errorf("Output = %q", out)
	}
}

func TestOutput_NonZeroExit(t *testing.T) {
	stub := NewStubRunner().Respond("rust-nm", StubResponse{Stderr: "no such file\n", ExitCode: 1})

	_, err := Output(t.Context(), stub, DefaultToolset().SymbolTable("missing.elf"))
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected *ToolError, got %T: %v", err, err)
	}
	if toolErr.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", toolErr.ExitCode)
	}
	if got := toolErr.Error(); got != "rust-nm missing.elf: exit status 1: no such file" {
		t.Errorf("Error() = %q", got)
	}
}

func TestOutput_StartFailure(t *testing.T) {
	cause := errors.New("executable file not found")
	stub := NewStubRunner().Respond("rust-objdump", StubResponse{Err: cause})

	_, err := Output(t.Context(), stub, DefaultToolset().Dump("algo.elf"))
	if !errors.Is(err, cause) {
		t.Fatalf("error should wrap the start failure, got %v", err)
	}
}

func TestToolset_Invocations(t *testing.T) {
	ts := Toolset{NM: "nm", Objdump: "objdump", Objcopy: "objcopy"}

	got := []string{
		ts.SymbolTable("a.elf").String(),
		ts.SymbolsByAddress("a.elf").String(),
		ts.Disassembly("a.elf").String(),
		ts.Dump("a.elf").String(),
		ts.FlatBinary("a.elf", "a.bin").String(),
	}
	want := []string{
		"nm a.elf",
		"nm a.elf -n",
		"objdump --disassemble a.elf",
		"objdump -x a.elf",
		"objcopy -O binary a.elf a.bin",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("invocations mismatch (-want +got):\n%s", diff)
	}
}

func TestToolset_WithDefaults(t *testing.T) {
	ts := Toolset{NM: "arm-none-eabi-nm"}.WithDefaults()
	want := Toolset{NM: "arm-none-eabi-nm", Objdump: DefaultObjdump, Objcopy: DefaultObjcopy}
	if ts != want {
		t.Errorf("WithDefaults() = %+v, want %+v", ts, want)
	}
}

func TestInstrumentedRunner_RecordsMetrics(t *testing.T) {
	collector := metrics.NewCollector("exp-1", "algo", "")
	stub := NewStubRunner().
		Respond("ok", StubResponse{}).
		Respond("bad", StubResponse{ExitCode: 2}).
		Respond("broken", StubResponse{Err: errors.New("boom")})
	runner := NewInstrumentedRunner(stub, collector, nil)

	for _, name := range []string{"ok", "bad", "broken"} {
		_, _ = runner.Run(t.Context(), Invocation{Name: name})
	}

	s := collector.Snapshot()
	if s.ToolInvocations != 3 {
		t.Errorf("ToolInvocations = %d, want 3", s.ToolInvocations)
	}
	if s.ToolFailures != 2 {
		t.Errorf("ToolFailures = %d, want 2", s.ToolFailures)
	}
	if len(stub.Calls) != 3 {
		t.Errorf("inner runner saw %d calls, want 3", len(stub.Calls))
	}
}
