// Package symtab parses textual symbol listings and resolves the flash
// algorithm entry points.
package symtab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pithecene-io/flashgen/types"
)

// textSeparator splits "<hex-address> T <name>" listing lines.
const textSeparator = " T "

// MaxLineSize is the longest accepted listing line (16 MiB).
const MaxLineSize = 16 * 1024 * 1024

// ThumbBit marks an entry point as Thumb code.
const ThumbBit = 1

// ParseError reports a text-symbol line whose address is not hexadecimal.
type ParseError struct {
	// Line is the 1-based line number in the listing.
	Line int
	// Text is the offending line.
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("symbol listing line %d: invalid address in %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IncompleteError reports entry point symbols missing from a listing.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("symbol table is missing entry points: %s", strings.Join(e.Missing, ", "))
}

// IsIncomplete returns true if err is an *IncompleteError.
func IsIncomplete(err error) bool {
	var incErr *IncompleteError
	return errors.As(err, &incErr)
}

// Table maps text-section symbol names to their raw addresses.
type Table map[string]uint64

// Parse reads a symbol listing. Only lines that split into exactly two
// parts on " T " are considered; all other lines are ignored. The address
// part must be bare hex: surrounding whitespace is a parse error.
// When a name repeats, the last occurrence wins.
func Parse(r io.Reader) (Table, error) {
	table := make(Table)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		parts := strings.Split(line, textSeparator)
		if len(parts) != 2 {
			continue
		}
		addr, err := strconv.ParseUint(parts[0], 16, 64)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Text: line, Err: err}
		}
		table[strings.TrimSpace(parts[1])] = addr
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read symbol listing: %w", err)
	}
	return table, nil
}

// ParseString parses a listing held in memory.
func ParseString(listing string) (Table, error) {
	return Parse(strings.NewReader(listing))
}

// Addresses resolves the entry points, adding ThumbBit to every symbol
// found. Absent symbols stay zero unless strict is set, in which case an
// *IncompleteError naming them is returned.
func (t Table) Addresses(strict bool) (types.Addresses, error) {
	var addrs types.Addresses
	var missing []string
	for _, name := range types.EntryPointSymbols {
		raw, ok := t[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		addrs.Set(name, raw+ThumbBit)
	}
	if strict && len(missing) > 0 {
		return types.Addresses{}, &IncompleteError{Missing: missing}
	}
	return addrs, nil
}

// Matched returns how many entry point symbols the table contains.
func (t Table) Matched() int {
	n := 0
	for _, name := range types.EntryPointSymbols {
		if _, ok := t[name]; ok {
			n++
		}
	}
	return n
}

// Missing returns the entry point symbols absent from the table,
// in descriptor field order.
func (t Table) Missing() []string {
	var out []string
	for _, name := range types.EntryPointSymbols {
		if _, ok := t[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}
