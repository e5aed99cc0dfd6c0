package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/pithecene-io/flashgen/iox"
	"github.com/pithecene-io/flashgen/symtab"
	"github.com/pithecene-io/flashgen/tools"
	"github.com/pithecene-io/flashgen/types"
)

// Debug listing file names, relative to the output directory.
const (
	DisassemblyFile = "disassembly.s"
	DumpFile        = "dump.txt"
	SymbolsFile     = "nm.txt"
)

// Symbols holds the outcome of entry point resolution.
type Symbols struct {
	Addresses types.Addresses
	Matched   int
	Missing   []string
}

// ResolveSymbols lists the artifact's symbols and resolves the entry
// points. With strict set, missing entry points fail the export.
func ResolveSymbols(ctx context.Context, runner tools.Runner, ts tools.Toolset, artifact string, strict bool) (*Symbols, error) {
	listing, err := tools.Output(ctx, runner, ts.SymbolTable(artifact))
	if err != nil {
		return nil, newError(ErrorExternalTool, types.StateResolving, err)
	}

	table, err := symtab.Parse(bytes.NewReader(listing))
	if err != nil {
		var parseErr *symtab.ParseError
		if errors.As(err, &parseErr) {
			return nil, newError(ErrorSymbolParse, types.StateResolving, err)
		}
		return nil, newError(ErrorExternalTool, types.StateResolving, err)
	}

	addrs, err := table.Addresses(strict)
	if err != nil {
		return nil, newError(ErrorIncompleteSymbolTable, types.StateResolving, err)
	}

	return &Symbols{
		Addresses: addrs,
		Matched:   table.Matched(),
		Missing:   table.Missing(),
	}, nil
}

// ExtractImage converts the artifact into a flat binary and returns its
// bytes. The intermediate file lives in a temporary directory that is
// removed before returning.
func ExtractImage(ctx context.Context, runner tools.Runner, ts tools.Toolset, artifact string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "flashgen-image-*")
	if err != nil {
		return nil, newError(ErrorIO, types.StateExtracting, fmt.Errorf("failed to create temp dir: %w", err))
	}
	defer iox.DiscardErr(func() error { return os.RemoveAll(dir) })

	out := filepath.Join(dir, "image.bin")
	if _, err := tools.Output(ctx, runner, ts.FlatBinary(artifact, out)); err != nil {
		return nil, newError(ErrorExternalTool, types.StateExtracting, err)
	}

	image, err := os.ReadFile(out)
	if err != nil {
		return nil, newError(ErrorExternalTool, types.StateExtracting, fmt.Errorf("flat image not produced: %w", err))
	}
	return image, nil
}

// DebugInfo lists the written debug listing paths.
type DebugInfo struct {
	Disassembly string `json:"disassembly" yaml:"disassembly"`
	Dump        string `json:"dump" yaml:"dump"`
	Symbols     string `json:"symbols" yaml:"symbols"`
}

// Paths returns the listing paths in write order.
func (d *DebugInfo) Paths() []string {
	return []string{d.Disassembly, d.Dump, d.Symbols}
}

// EmitDebugInfo writes the disassembly, the full object dump and the
// address-sorted symbol listing into dir. Any failure is fatal.
func EmitDebugInfo(ctx context.Context, runner tools.Runner, ts tools.Toolset, artifact, dir string) (*DebugInfo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, newError(ErrorIO, types.StateEmittingDebugInfo, fmt.Errorf("failed to create output dir: %w", err))
	}

	info := &DebugInfo{
		Disassembly: filepath.Join(dir, DisassemblyFile),
		Dump:        filepath.Join(dir, DumpFile),
		Symbols:     filepath.Join(dir, SymbolsFile),
	}
	listings := []struct {
		path string
		inv  tools.Invocation
	}{
		{info.Disassembly, ts.Disassembly(artifact)},
		{info.Dump, ts.Dump(artifact)},
		{info.Symbols, ts.SymbolsByAddress(artifact)},
	}

	for _, l := range listings {
		out, err := tools.Output(ctx, runner, l.inv)
		if err != nil {
			return nil, newError(ErrorExternalTool, types.StateEmittingDebugInfo, err)
		}
		if err := renameio.WriteFile(l.path, out, 0o644); err != nil {
			return nil, newError(ErrorIO, types.StateEmittingDebugInfo, fmt.Errorf("failed to write %s: %w", l.path, err))
		}
	}
	return info, nil
}
