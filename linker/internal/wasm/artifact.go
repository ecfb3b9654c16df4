package wasm

import (
	"github.com/tetratelabs/wazero/api"
)

// Section ids.
const (
	sectionType     = 0x01
	sectionImport   = 0x02
	sectionFunction = 0x03
	sectionMemory   = 0x05
	sectionGlobal   = 0x06
	sectionExport   = 0x07
	sectionCode     = 0x0a
)

// External kinds in import and export entries.
const (
	externFunc   = 0x00
	externMemory = 0x02
	externGlobal = 0x03
)

var magicVersion = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// ArtifactBuilder builds the minimal module an entry point is hosted in:
// functions imported from a host module and re-exported through wasm
// trampolines, an optional exported memory, and constant globals.
type ArtifactBuilder struct {
	hostModule string
	memoryName string
	funcs      []artifactFunc
	globals    []artifactGlobal
	memoryMin  uint32
}

type artifactFunc struct {
	importName string
	exportName string
	params     []api.ValueType
	results    []api.ValueType
}

type artifactGlobal struct {
	name    string
	valType api.ValueType
	value   int64
}

// NewArtifactBuilder creates a builder whose imports come from hostModule.
func NewArtifactBuilder(hostModule string) *ArtifactBuilder {
	return &ArtifactBuilder{hostModule: hostModule}
}

// AddFunc imports importName from the host module and exports a function
// named exportName that forwards its parameters and results.
func (b *ArtifactBuilder) AddFunc(importName, exportName string, params, results []api.ValueType) {
	b.funcs = append(b.funcs, artifactFunc{
		importName: importName,
		exportName: exportName,
		params:     params,
		results:    results,
	})
}

// SetMemory defines a memory of at least minPages pages, exported as name.
func (b *ArtifactBuilder) SetMemory(name string, minPages uint32) {
	b.memoryName = name
	b.memoryMin = minPages
}

// HasMemory reports whether a memory is defined.
func (b *ArtifactBuilder) HasMemory() bool {
	return b.memoryName != ""
}

// AddConstGlobal exports an immutable integer global. Only i32 and i64 are
// supported.
func (b *ArtifactBuilder) AddConstGlobal(name string, valType api.ValueType, value int64) {
	b.globals = append(b.globals, artifactGlobal{name: name, valType: valType, value: value})
}

// Build generates the module bytes.
func (b *ArtifactBuilder) Build() []byte {
	wasm := append([]byte{}, magicVersion...)

	if len(b.funcs) > 0 {
		wasm = appendSection(wasm, sectionType, b.typeSection())
		wasm = appendSection(wasm, sectionImport, b.importSection())
		wasm = appendSection(wasm, sectionFunction, b.functionSection())
	}
	if b.HasMemory() {
		wasm = appendSection(wasm, sectionMemory, b.memorySection())
	}
	if len(b.globals) > 0 {
		wasm = appendSection(wasm, sectionGlobal, b.globalSection())
	}
	wasm = appendSection(wasm, sectionExport, b.exportSection())
	if len(b.funcs) > 0 {
		wasm = appendSection(wasm, sectionCode, b.codeSection())
	}
	return wasm
}

// One type per function; type i belongs to import i and trampoline i.
func (b *ArtifactBuilder) typeSection() []byte {
	section := AppendULEB128(nil, uint32(len(b.funcs)))
	for _, f := range b.funcs {
		section = append(section, 0x60)
		section = AppendULEB128(section, uint32(len(f.params)))
		for _, t := range f.params {
			section = append(section, valType(t))
		}
		section = AppendULEB128(section, uint32(len(f.results)))
		for _, t := range f.results {
			section = append(section, valType(t))
		}
	}
	return section
}

func (b *ArtifactBuilder) importSection() []byte {
	section := AppendULEB128(nil, uint32(len(b.funcs)))
	for i, f := range b.funcs {
		section = appendName(section, b.hostModule)
		section = appendName(section, f.importName)
		section = append(section, externFunc)
		section = AppendULEB128(section, uint32(i))
	}
	return section
}

func (b *ArtifactBuilder) functionSection() []byte {
	section := AppendULEB128(nil, uint32(len(b.funcs)))
	for i := range b.funcs {
		section = AppendULEB128(section, uint32(i))
	}
	return section
}

func (b *ArtifactBuilder) memorySection() []byte {
	section := AppendULEB128(nil, 1)
	section = append(section, 0x00) // no maximum
	return AppendULEB128(section, b.memoryMin)
}

func (b *ArtifactBuilder) globalSection() []byte {
	section := AppendULEB128(nil, uint32(len(b.globals)))
	for _, g := range b.globals {
		section = append(section, valType(g.valType), 0x00)
		if g.valType == api.ValueTypeI64 {
			section = append(section, 0x42)
			section = AppendSLEB128(section, g.value)
		} else {
			section = append(section, 0x41)
			section = AppendSLEB128(section, int32(g.value))
		}
		section = append(section, 0x0b)
	}
	return section
}

func (b *ArtifactBuilder) exportSection() []byte {
	n := len(b.funcs) + len(b.globals)
	if b.HasMemory() {
		n++
	}
	section := AppendULEB128(nil, uint32(n))

	if b.HasMemory() {
		section = appendName(section, b.memoryName)
		section = append(section, externMemory, 0x00)
	}
	for i, g := range b.globals {
		section = appendName(section, g.name)
		section = append(section, externGlobal)
		section = AppendULEB128(section, uint32(i))
	}
	// trampolines follow the imported functions in the index space
	for i, f := range b.funcs {
		section = appendName(section, f.exportName)
		section = append(section, externFunc)
		section = AppendULEB128(section, uint32(len(b.funcs)+i))
	}
	return section
}

func (b *ArtifactBuilder) codeSection() []byte {
	section := AppendULEB128(nil, uint32(len(b.funcs)))
	for i, f := range b.funcs {
		body := b.trampoline(i, f)
		section = AppendULEB128(section, uint32(len(body)))
		section = append(section, body...)
	}
	return section
}

// trampoline pushes every parameter and calls import i.
func (b *ArtifactBuilder) trampoline(importIdx int, f artifactFunc) []byte {
	body := []byte{0x00} // no locals
	for i := range f.params {
		body = append(body, 0x20)
		body = AppendULEB128(body, uint32(i))
	}
	body = append(body, 0x10)
	body = AppendULEB128(body, uint32(importIdx))
	return append(body, 0x0b)
}
