package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

const targetDefinition = `name: nrf52
flash_algorithms:
  - name: nrf52-flash
    instructions: AQIDBA==
    pc_init: 0x1
    pc_uninit: 0x5
    pc_program_page: 0x9
    pc_erase_sector: 0xd
    pc_erase_all: 0x11
  - name: nrf52-uicr
    instructions: ""
    pc_init: 0x21
    pc_uninit: 0x0
    pc_program_page: 0x0
    pc_erase_sector: 0x0
    pc_erase_all: 0x0
`

func writeDefinition(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.yaml")
	if err := os.WriteFile(path, []byte(targetDefinition), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInspect_TargetDefinition(t *testing.T) {
	out, err := runCommand(t, InspectCommand(), "--format", "json", writeDefinition(t))
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}

	var got []map[string]any
	if err := json.Unmarshal(out.stdout.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out.stdout.String())
	}
	if len(got) != 2 {
		t.Fatalf("got %d algorithms, want 2", len(got))
	}
	if got[0]["name"] != "nrf52-flash" || got[1]["name"] != "nrf52-uicr" {
		t.Errorf("names = %v, %v", got[0]["name"], got[1]["name"])
	}
}

func TestInspect_AlgorithmFilter(t *testing.T) {
	path := writeDefinition(t)

	out, err := runCommand(t, InspectCommand(), "--format", "yaml", "--algorithm", "nrf52-uicr", path)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if !strings.Contains(out.stdout.String(), "pc_init: 0x21") {
		t.Errorf("expected filtered algorithm, got:\n%s", out.stdout.String())
	}
	if strings.Contains(out.stdout.String(), "nrf52-flash") {
		t.Errorf("filter should drop other algorithms:\n%s", out.stdout.String())
	}

	_, err = runCommand(t, InspectCommand(), "--algorithm", "missing", path)
	if err == nil || !strings.Contains(err.Error(), `no flash algorithm named "missing"`) {
		t.Errorf("expected missing algorithm error, got %v", err)
	}
}

func TestInspect_Errors(t *testing.T) {
	_, err := runCommand(t, InspectCommand())
	if got := exitCode(t, err); got != exitUnexpected {
		t.Errorf("missing argument exit code = %d, want %d", got, exitUnexpected)
	}

	_, err = runCommand(t, InspectCommand(), filepath.Join(t.TempDir(), "missing.yaml"))
	if got := exitCode(t, err); got != exitIOFailure {
		t.Errorf("missing file exit code = %d, want %d", got, exitIOFailure)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("- not\n- a mapping\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err = runCommand(t, InspectCommand(), bad)
	if err == nil || !strings.Contains(err.Error(), "invalid descriptor") {
		t.Errorf("expected invalid descriptor error, got %v", err)
	}
}
