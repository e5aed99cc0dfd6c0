package tools

// Default binutils front-ends shipped with cargo-binutils.
const (
	DefaultNM      = "rust-nm"
	DefaultObjdump = "rust-objdump"
	DefaultObjcopy = "rust-objcopy"
)

// Toolset names the binutils programs used to inspect an artifact.
type Toolset struct {
	NM      string
	Objdump string
	Objcopy string
}

// DefaultToolset returns the cargo-binutils toolset.
func DefaultToolset() Toolset {
	return Toolset{
		NM:      DefaultNM,
		Objdump: DefaultObjdump,
		Objcopy: DefaultObjcopy,
	}
}

// WithDefaults fills empty program names from DefaultToolset.
func (t Toolset) WithDefaults() Toolset {
	def := DefaultToolset()
	if t.NM == "" {
		t.NM = def.NM
	}
	if t.Objdump == "" {
		t.Objdump = def.Objdump
	}
	if t.Objcopy == "" {
		t.Objcopy = def.Objcopy
	}
	return t
}

// SymbolTable lists the artifact's symbols in nm's default format.
func (t Toolset) SymbolTable(artifact string) Invocation {
	return Invocation{Name: t.NM, Args: []string{artifact}}
}

// SymbolsByAddress lists the artifact's symbols sorted by address.
func (t Toolset) SymbolsByAddress(artifact string) Invocation {
	return Invocation{Name: t.NM, Args: []string{artifact, "-n"}}
}

// Disassembly disassembles the artifact's executable sections.
func (t Toolset) Disassembly(artifact string) Invocation {
	return Invocation{Name: t.Objdump, Args: []string{"--disassemble", artifact}}
}

// Dump prints all headers of the artifact.
func (t Toolset) Dump(artifact string) Invocation {
	return Invocation{Name: t.Objdump, Args: []string{"-x", artifact}}
}

// FlatBinary writes the artifact's loadable sections to out as a raw image.
func (t Toolset) FlatBinary(artifact, out string) Invocation {
	return Invocation{Name: t.Objcopy, Args: []string{"-O", "binary", artifact, out}}
}
