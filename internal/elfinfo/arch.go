package elfinfo

import "debug/elf"

// ArchTokens lists every policy architecture token archToken can produce,
// longest recognizable suffix forms first where one token is a suffix of
// another (none currently collide, but callers splitting a trailing
// "_{arch}" segment off a longer string should prefer this order).
var ArchTokens = []string{
	"x86_64", "i686", "aarch64", "armv7l", "ppc64le", "ppc64",
	"s390x", "riscv64", "loongarch64",
}

// Arch returns the policy architecture token for f (e.g. "x86_64",
// "aarch64"), as used in wheel platform tags and policy file entries.
func (f *File) Arch() string {
	tok, _ := archToken(f.Machine, f.Class, f.Data)
	return tok
}

// archToken maps an ELF machine/class/data triple to the architecture
// token used in policy files and wheel platform tags (spec.md §4.A, §6).
// Returns ErrUnsupportedELF for any combination not in the known set.
func archToken(machine elf.Machine, class elf.Class, data elf.Data) (string, error) {
	switch machine {
	case elf.EM_X86_64:
		return "x86_64", nil
	case elf.EM_386:
		return "i686", nil
	case elf.EM_AARCH64:
		return "aarch64", nil
	case elf.EM_ARM:
		return "armv7l", nil
	case elf.EM_PPC64:
		// ppc64 and ppc64le share EM_PPC64; only the data encoding tells
		// them apart, since both are ELFCLASS64.
		if data == elf.ELFDATA2LSB {
			return "ppc64le", nil
		}
		return "ppc64", nil
	case elf.EM_S390:
		return "s390x", nil
	case elf.EM_RISCV:
		if class == elf.ELFCLASS64 {
			return "riscv64", nil
		}
		return "", ErrUnsupportedELF
	case elf.EM_LOONGARCH:
		return "loongarch64", nil
	default:
		return "", ErrUnsupportedELF
	}
}
