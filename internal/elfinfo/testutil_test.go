package elfinfo

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// fixtureSpec describes the minimal dynamic ELF64/x86_64 shared object
// buildFixture assembles for tests. Only the handful of dynamic-section
// shapes auditwheel-go actually reads are modeled; this is not a general
// purpose ELF writer.
type fixtureSpec struct {
	soname      string
	needed      []string
	rpath       string
	runpath     string
	interpreter string
	// importedSym, if set, adds one undefined dynamic symbol bound to
	// (verLib, verName), e.g. ("libfoo.so.1", "GLIBC_2.17").
	importedSym string
	verLib      string
	verName     string
}

// buildFixture writes a synthetic ELF64 little-endian x86_64 shared object
// to a temp file and returns its path. It mirrors just enough of the
// dynamic section (.dynstr/.dynsym/.gnu.version/.gnu.version_r/.dynamic)
// for debug/elf's DynString/ImportedSymbols to report what the spec says
// Open should expose.
func buildFixture(t *testing.T, spec fixtureSpec) string {
	t.Helper()

	const ehdrSize = 64
	const phdrSize = 56 // sizeof(Prog64)
	const shdrSize = 64 // sizeof(Section64)

	// --- string table ---------------------------------------------------
	var dynstr bytes.Buffer
	dynstr.WriteByte(0)
	strOff := map[string]uint32{}
	addStr := func(s string) uint32 {
		if s == "" {
			return 0
		}
		if off, ok := strOff[s]; ok {
			return off
		}
		off := uint32(dynstr.Len())
		dynstr.WriteString(s)
		dynstr.WriteByte(0)
		strOff[s] = off
		return off
	}
	for _, n := range spec.needed {
		addStr(n)
	}
	if spec.soname != "" {
		addStr(spec.soname)
	}
	if spec.rpath != "" {
		addStr(spec.rpath)
	}
	if spec.runpath != "" {
		addStr(spec.runpath)
	}
	symNameOff := addStr(spec.importedSym)
	verLibOff := addStr(spec.verLib)
	verNameOff := addStr(spec.verName)

	// --- dynsym: null symbol + optional one undefined versioned symbol --
	var dynsym bytes.Buffer
	binary.Write(&dynsym, binary.LittleEndian, elf.Sym64{}) // null symbol
	hasSym := spec.importedSym != ""
	if hasSym {
		const stbGlobal = 1
		const sttFunc = 2
		binary.Write(&dynsym, binary.LittleEndian, elf.Sym64{
			Name:  symNameOff,
			Info:  stbGlobal<<4 | sttFunc,
			Other: 0,
			Shndx: 0, // SHN_UNDEF
		})
	}

	// --- .gnu.version (versym): one uint16 per dynsym entry -------------
	var versym bytes.Buffer
	binary.Write(&versym, binary.LittleEndian, uint16(0))
	const vnaOther = 2
	if hasSym {
		binary.Write(&versym, binary.LittleEndian, uint16(vnaOther))
	}

	// --- .gnu.version_r (verneed+vernaux), 16 bytes each -----------------
	var verneed bytes.Buffer
	if hasSym {
		binary.Write(&verneed, binary.LittleEndian, uint16(1))  // vn_version
		binary.Write(&verneed, binary.LittleEndian, uint16(1))  // vn_cnt
		binary.Write(&verneed, binary.LittleEndian, verLibOff)  // vn_file
		binary.Write(&verneed, binary.LittleEndian, uint32(16)) // vn_aux
		binary.Write(&verneed, binary.LittleEndian, uint32(0))  // vn_next

		binary.Write(&verneed, binary.LittleEndian, uint32(0))   // vna_hash
		binary.Write(&verneed, binary.LittleEndian, uint16(0))   // vna_flags
		binary.Write(&verneed, binary.LittleEndian, uint16(vnaOther))
		binary.Write(&verneed, binary.LittleEndian, verNameOff) // vna_name
		binary.Write(&verneed, binary.LittleEndian, uint32(0))  // vna_next
	}

	// --- interpreter string ----------------------------------------------
	var interp bytes.Buffer
	if spec.interpreter != "" {
		interp.WriteString(spec.interpreter)
		interp.WriteByte(0)
	}

	// --- section header string table --------------------------------------
	var shstrtab bytes.Buffer
	shstrtab.WriteByte(0)
	shstrOff := map[string]uint32{}
	addShStr := func(s string) uint32 {
		off := uint32(shstrtab.Len())
		shstrtab.WriteString(s)
		shstrtab.WriteByte(0)
		shstrOff[s] = off
		return off
	}
	names := []string{".dynstr", ".dynsym", ".gnu.version", ".gnu.version_r", ".dynamic", ".shstrtab"}
	for _, n := range names {
		addShStr(n)
	}

	// --- layout: header | phdrs | dynstr | dynsym | versym | verneed |
	//             interp | dynamic | shstrtab | shdrs -----------------------
	var phdrs []elf.Prog64
	dataOff := int64(ehdrSize)

	var interpPhdrIdx = -1
	if spec.interpreter != "" {
		interpPhdrIdx = len(phdrs)
		phdrs = append(phdrs, elf.Prog64{}) // patched once offset known
	}

	body := new(bytes.Buffer)
	bodyBase := dataOff + int64(len(phdrs))*phdrSize

	writeSection := func(b []byte) (off int64, size int64) {
		off = bodyBase + int64(body.Len())
		body.Write(b)
		size = int64(len(b))
		return
	}

	dynstrOff, dynstrSize := writeSection(dynstr.Bytes())
	dynsymOff, dynsymSize := writeSection(dynsym.Bytes())
	versymOff, versymSize := writeSection(versym.Bytes())
	verneedOff, verneedSize := writeSection(verneed.Bytes())
	interpOff, interpSize := writeSection(interp.Bytes())

	if interpPhdrIdx >= 0 {
		phdrs[interpPhdrIdx] = elf.Prog64{
			Type:   uint32(elf.PT_INTERP),
			Off:    uint64(interpOff),
			Filesz: uint64(interpSize),
			Memsz:  uint64(interpSize),
		}
	}

	// --- .dynamic ---------------------------------------------------------
	var dynamic bytes.Buffer
	writeDyn := func(tag elf.DynTag, val uint64) {
		binary.Write(&dynamic, binary.LittleEndian, elf.Dyn64{Tag: int64(tag), Val: val})
	}
	for _, n := range spec.needed {
		writeDyn(elf.DT_NEEDED, uint64(strOff[n]))
	}
	if spec.soname != "" {
		writeDyn(elf.DT_SONAME, uint64(strOff[spec.soname]))
	}
	if spec.rpath != "" {
		writeDyn(elf.DT_RPATH, uint64(strOff[spec.rpath]))
	}
	if spec.runpath != "" {
		writeDyn(elf.DT_RUNPATH, uint64(strOff[spec.runpath]))
	}
	writeDyn(elf.DT_NULL, 0)
	dynamicOff, dynamicSize := writeSection(dynamic.Bytes())

	shstrtabOff, shstrtabSize := writeSection(shstrtab.Bytes())

	// --- section headers ---------------------------------------------------
	var shdrs []elf.Section64
	shdrs = append(shdrs, elf.Section64{}) // NULL section
	shdrs = append(shdrs, elf.Section64{
		Name: shstrOff[".dynstr"], Type: uint32(elf.SHT_STRTAB),
		Off: uint64(dynstrOff), Size: uint64(dynstrSize),
	})
	dynstrIdx := uint32(len(shdrs) - 1)
	shdrs = append(shdrs, elf.Section64{
		Name: shstrOff[".dynsym"], Type: uint32(elf.SHT_DYNSYM),
		Off: uint64(dynsymOff), Size: uint64(dynsymSize),
		Link: dynstrIdx, Entsize: 24,
	})
	shdrs = append(shdrs, elf.Section64{
		Name: shstrOff[".gnu.version"], Type: uint32(elf.SHT_GNU_VERSYM),
		Off: uint64(versymOff), Size: uint64(versymSize),
		Link: dynstrIdx, Entsize: 2,
	})
	shdrs = append(shdrs, elf.Section64{
		Name: shstrOff[".gnu.version_r"], Type: uint32(elf.SHT_GNU_VERNEED),
		Off: uint64(verneedOff), Size: uint64(verneedSize),
		Link: dynstrIdx, Info: 1,
	})
	shdrs = append(shdrs, elf.Section64{
		Name: shstrOff[".dynamic"], Type: uint32(elf.SHT_DYNAMIC),
		Off: uint64(dynamicOff), Size: uint64(dynamicSize),
		Link: dynstrIdx, Entsize: 16,
	})
	shstrtabIdx := uint32(len(shdrs))
	shdrs = append(shdrs, elf.Section64{
		Name: shstrOff[".shstrtab"], Type: uint32(elf.SHT_STRTAB),
		Off: uint64(shstrtabOff), Size: uint64(shstrtabSize),
	})

	shoff := bodyBase + int64(body.Len())

	hdr := elf.Header64{
		Ident:     [16]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0},
		Type:      uint16(elf.ET_DYN),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Phoff:     uint64(dataOff),
		Shoff:     uint64(shoff),
		Ehsize:    ehdrSize,
		Phentsize: phdrSize,
		Phnum:     uint16(len(phdrs)),
		Shentsize: shdrSize,
		Shnum:     uint16(len(shdrs)),
		Shstrndx:  uint16(shstrtabIdx),
	}

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, hdr)
	for _, p := range phdrs {
		binary.Write(&out, binary.LittleEndian, p)
	}
	out.Write(body.Bytes())
	for _, s := range shdrs {
		binary.Write(&out, binary.LittleEndian, s)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.so")
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}
