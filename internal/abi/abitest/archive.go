// Package abitest builds minimal static library files for tests.
package abitest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// GNUArchive returns an ar archive whose GNU symbol index lists symbols,
// followed by a single dummy object member.
func GNUArchive(symbols ...string) []byte {
	var strtab bytes.Buffer
	for _, s := range symbols {
		strtab.WriteString(s)
		strtab.WriteByte(0)
	}

	var index bytes.Buffer
	binary.Write(&index, binary.BigEndian, uint32(len(symbols)))
	for range symbols {
		binary.Write(&index, binary.BigEndian, uint32(0x44))
	}
	index.Write(strtab.Bytes())

	var b bytes.Buffer
	b.WriteString("!<arch>\n")
	writeMember(&b, "/", index.Bytes())
	writeMember(&b, "core.o/", []byte("\x7fELF-object"))
	return b.Bytes()
}

// BSDArchive returns an ar archive with a "__.SYMDEF SORTED" index stored
// under a BSD extended name, listing symbols with Mach-O underscores.
func BSDArchive(symbols ...string) []byte {
	var strtab bytes.Buffer
	for _, s := range symbols {
		strtab.WriteString("_" + s)
		strtab.WriteByte(0)
	}
	for strtab.Len()%4 != 0 {
		strtab.WriteByte(0)
	}

	var index bytes.Buffer
	binary.Write(&index, binary.LittleEndian, uint32(8*len(symbols)))
	for range symbols {
		binary.Write(&index, binary.LittleEndian, uint32(0))
		binary.Write(&index, binary.LittleEndian, uint32(0x60))
	}
	binary.Write(&index, binary.LittleEndian, uint32(strtab.Len()))
	index.Write(strtab.Bytes())

	name := []byte("__.SYMDEF SORTED\x00\x00\x00\x00")
	var b bytes.Buffer
	b.WriteString("!<arch>\n")
	writeMember(&b, fmt.Sprintf("#1/%d", len(name)), append(name, index.Bytes()...))
	writeMember(&b, "core.o", []byte("\xcf\xfa\xed\xfe"))
	return b.Bytes()
}

// UniversalArchive wraps per-architecture archives in a fat header.
func UniversalArchive(slices ...[]byte) []byte {
	const align = 4096
	var b bytes.Buffer
	binary.Write(&b, binary.BigEndian, uint32(0xcafebabe))
	binary.Write(&b, binary.BigEndian, uint32(len(slices)))

	off := uint32(align)
	for i, s := range slices {
		binary.Write(&b, binary.BigEndian, uint32(0x01000007+i*5)) // cputype
		binary.Write(&b, binary.BigEndian, uint32(3))              // cpusubtype
		binary.Write(&b, binary.BigEndian, off)
		binary.Write(&b, binary.BigEndian, uint32(len(s)))
		binary.Write(&b, binary.BigEndian, uint32(12))
		off += uint32((len(s) + align - 1) / align * align)
	}
	for _, s := range slices {
		for b.Len()%align != 0 {
			b.WriteByte(0)
		}
		b.Write(s)
	}
	return b.Bytes()
}

// WriteCoreArchive writes a GNU archive exporting the core entry symbol
// to path and returns path.
func WriteCoreArchive(t testing.TB, path string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, GNUArchive("rust_clap_entry"), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return path
}

func writeMember(b *bytes.Buffer, name string, data []byte) {
	fmt.Fprintf(b, "%-16s%-12d%-6d%-6d%-8s%-10d`\n", name, 0, 0, 0, "644", len(data))
	b.Write(data)
	if len(data)%2 == 1 {
		b.WriteByte('\n')
	}
}
