//nolint:revive // types is a common Go package naming convention
package types

// Entry point symbol names exported by every flash algorithm.
const (
	SymbolInit        = "Init"
	SymbolUnInit      = "UnInit"
	SymbolProgramPage = "ProgramPage"
	SymbolEraseSector = "EraseSector"
	SymbolEraseChip   = "EraseChip"
)

// EntryPointSymbols lists the entry point names in descriptor field order.
var EntryPointSymbols = []string{
	SymbolInit,
	SymbolUnInit,
	SymbolProgramPage,
	SymbolEraseSector,
	SymbolEraseChip,
}

// Addresses holds the resolved entry point addresses of a flash algorithm.
// Each resolved value already carries the Thumb bit.
type Addresses struct {
	Init        uint64 `json:"init" yaml:"init"`
	UnInit      uint64 `json:"uninit" yaml:"uninit"`
	ProgramPage uint64 `json:"program_page" yaml:"program_page"`
	EraseSector uint64 `json:"erase_sector" yaml:"erase_sector"`
	EraseChip   uint64 `json:"erase_chip" yaml:"erase_chip"`
}

// Set stores addr under the field for symbol name.
// Returns false if name is not an entry point symbol.
func (a *Addresses) Set(name string, addr uint64) bool {
	switch name {
	case SymbolInit:
		a.Init = addr
	case SymbolUnInit:
		a.UnInit = addr
	case SymbolProgramPage:
		a.ProgramPage = addr
	case SymbolEraseSector:
		a.EraseSector = addr
	case SymbolEraseChip:
		a.EraseChip = addr
	default:
		return false
	}
	return true
}

// Get returns the address stored for symbol name.
func (a *Addresses) Get(name string) (uint64, bool) {
	switch name {
	case SymbolInit:
		return a.Init, true
	case SymbolUnInit:
		return a.UnInit, true
	case SymbolProgramPage:
		return a.ProgramPage, true
	case SymbolEraseSector:
		return a.EraseSector, true
	case SymbolEraseChip:
		return a.EraseChip, true
	default:
		return 0, false
	}
}
