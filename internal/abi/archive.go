package abi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ArchiveKind classifies a static library file by its magic bytes.
type ArchiveKind int

const (
	NotArchive ArchiveKind = iota
	ArArchive              // "!<arch>\n" (GNU, BSD and MSVC .lib)
	ThinArchive            // "!<thin>\n"
	UniversalArchive       // Mach-O fat wrapper around per-arch ar archives
)

func (k ArchiveKind) String() string {
	switch k {
	case ArArchive:
		return "ar archive"
	case ThinArchive:
		return "thin ar archive"
	case UniversalArchive:
		return "universal archive"
	default:
		return "not an archive"
	}
}

const (
	arMagic     = "!<arch>\n"
	thinMagic   = "!<thin>\n"
	fatMagic    = 0xcafebabe
	fatMagic64  = 0xcafebabf
	arHeaderLen = 60

	// Only the leading members can be symbol tables.
	maxIndexMembers = 4
)

var (
	// ErrNoSymbolTable is returned when an archive carries no symbol index
	// to inspect. Callers treat it as inconclusive rather than fatal.
	ErrNoSymbolTable = errors.New("archive has no symbol table")
)

// MissingSymbolError reports a static library that does not export the
// core entry record.
type MissingSymbolError struct {
	Path   string
	Symbol string
}

func (e *MissingSymbolError) Error() string {
	return fmt.Sprintf("%s does not export %s", e.Path, e.Symbol)
}

// Sniff reports what kind of static library path is.
func Sniff(path string) (ArchiveKind, error) {
	f, err := os.Open(path)
	if err != nil {
		return NotArchive, err
	}
	defer f.Close()
	return sniff(f)
}

func sniff(r io.ReaderAt) (ArchiveKind, error) {
	var magic [8]byte
	n, err := r.ReadAt(magic[:], 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return NotArchive, err
	}
	switch {
	case n == 8 && string(magic[:]) == arMagic:
		return ArArchive, nil
	case n == 8 && string(magic[:]) == thinMagic:
		return ThinArchive, nil
	case n >= 4:
		m := binary.BigEndian.Uint32(magic[:4])
		if m == fatMagic || m == fatMagic64 {
			return UniversalArchive, nil
		}
	}
	return NotArchive, nil
}

// ExportsSymbol reports whether the archive's symbol index lists symbol.
// For universal archives every architecture slice must list it. Mach-O
// leading underscores are accepted.
func ExportsSymbol(path, symbol string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, err
	}

	kind, err := sniff(f)
	if err != nil {
		return false, err
	}

	switch kind {
	case ArArchive, ThinArchive:
		return archiveExports(io.NewSectionReader(f, 0, info.Size()), symbol)
	case UniversalArchive:
		slices, err := fatSlices(f)
		if err != nil {
			return false, fmt.Errorf("%s: %w", path, err)
		}
		for _, s := range slices {
			ok, err := archiveExports(s, symbol)
			if err != nil || !ok {
				return ok, err
			}
		}
		return len(slices) > 0, nil
	default:
		return false, fmt.Errorf("%s: %s", path, kind)
	}
}

// VerifyCoreArchive checks that path is a static library exporting the
// core entry record. An archive without a symbol index passes with
// ErrNoSymbolTable so the caller can decide to warn.
func VerifyCoreArchive(path string) error {
	ok, err := ExportsSymbol(path, CoreSymbol)
	if err != nil {
		return err
	}
	if !ok {
		return &MissingSymbolError{Path: path, Symbol: CoreSymbol}
	}
	return nil
}

func fatSlices(r io.ReaderAt) ([]*io.SectionReader, error) {
	var hdr [8]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, err
	}
	is64 := binary.BigEndian.Uint32(hdr[:4]) == fatMagic64
	count := binary.BigEndian.Uint32(hdr[4:])
	if count == 0 || count > 64 {
		return nil, fmt.Errorf("implausible fat arch count %d", count)
	}

	entrySize := int64(20)
	if is64 {
		entrySize = 32
	}

	slices := make([]*io.SectionReader, 0, count)
	for i := int64(0); i < int64(count); i++ {
		entry := make([]byte, entrySize)
		if _, err := r.ReadAt(entry, 8+i*entrySize); err != nil {
			return nil, err
		}
		var off, size int64
		if is64 {
			off = int64(binary.BigEndian.Uint64(entry[8:16]))
			size = int64(binary.BigEndian.Uint64(entry[16:24]))
		} else {
			off = int64(binary.BigEndian.Uint32(entry[8:12]))
			size = int64(binary.BigEndian.Uint32(entry[12:16]))
		}
		slices = append(slices, io.NewSectionReader(r, off, size))
	}
	return slices, nil
}

// archiveExports scans the leading members of an ar archive for a symbol
// index (GNU "/", "/SYM64/", BSD "__.SYMDEF*") and looks symbol up in it.
func archiveExports(r *io.SectionReader, symbol string) (bool, error) {
	kind, err := sniff(r)
	if err != nil {
		return false, err
	}
	if kind != ArArchive && kind != ThinArchive {
		return false, errors.New("slice is not an ar archive")
	}

	off := int64(len(arMagic))
	found := false
	for i := 0; i < maxIndexMembers && off < r.Size(); i++ {
		var hdr [arHeaderLen]byte
		if _, err := r.ReadAt(hdr[:], off); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return false, err
		}
		if string(hdr[58:60]) != "`\n" {
			return false, fmt.Errorf("corrupt member header at offset %d", off)
		}

		name := strings.TrimRight(string(hdr[0:16]), " ")
		memberSize, err := strconv.ParseInt(strings.TrimSpace(string(hdr[48:58])), 10, 64)
		if err != nil {
			return false, fmt.Errorf("bad member size at offset %d: %w", off, err)
		}
		dataOff, dataSize := off+arHeaderLen, memberSize

		// BSD extended names store the name at the start of the data.
		if strings.HasPrefix(name, "#1/") {
			n, err := strconv.ParseInt(name[3:], 10, 64)
			if err != nil || n > memberSize {
				return false, fmt.Errorf("bad extended name at offset %d", off)
			}
			buf := make([]byte, n)
			if _, err := r.ReadAt(buf, dataOff); err != nil {
				return false, err
			}
			name = string(bytes.TrimRight(buf, "\x00"))
			dataOff += n
			dataSize -= n
		}

		if !isSymbolIndex(name) {
			if found || (kind == ThinArchive && name != "//") {
				break
			}
		} else {
			found = true
			data := make([]byte, dataSize)
			if _, err := r.ReadAt(data, dataOff); err != nil {
				return false, err
			}
			if indexContains(indexStrings(name, data), symbol) {
				return true, nil
			}
		}

		next := off + arHeaderLen + memberSize
		off = next + next%2
	}

	if !found {
		return false, ErrNoSymbolTable
	}
	return false, nil
}

func isSymbolIndex(name string) bool {
	return name == "/" || name == "/SYM64/" || strings.HasPrefix(name, "__.SYMDEF")
}

// indexStrings returns the string table of a symbol index member, or the
// whole member when its layout does not parse.
func indexStrings(name string, data []byte) []byte {
	size := int64(len(data))
	switch {
	case name == "/":
		// First linker member: BE count, BE offsets, strings. MSVC writes
		// its second linker member under the same name in LE with a
		// member table first; the fallback covers it.
		if size >= 4 {
			n := int64(binary.BigEndian.Uint32(data))
			if start := 4 + 4*n; start <= size {
				return data[start:]
			}
		}
	case name == "/SYM64/":
		if size >= 8 {
			n := int64(binary.BigEndian.Uint64(data))
			if start := 8 + 8*n; start >= 8 && start <= size {
				return data[start:]
			}
		}
	default:
		// __.SYMDEF: ranlib byte length, ranlib entries, string table length,
		// strings. Byte order follows the target; try both.
		for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
			if size < 4 {
				break
			}
			ranlibs := int64(order.Uint32(data))
			strOff := 4 + ranlibs
			if strOff+4 > size {
				continue
			}
			strLen := int64(order.Uint32(data[strOff:]))
			if strOff+4+strLen <= size {
				return data[strOff+4 : strOff+4+strLen]
			}
		}
	}
	return data
}

// indexContains looks for symbol as a complete NUL-terminated entry of a
// string table. When the table could not be isolated, the byte before an
// entry may belong to binary offsets, so only identifier characters
// disqualify a match.
func indexContains(table []byte, symbol string) bool {
	for _, candidate := range []string{symbol, "_" + symbol} {
		needle := []byte(candidate + "\x00")
		for base := 0; base < len(table); {
			i := bytes.Index(table[base:], needle)
			if i < 0 {
				break
			}
			pos := base + i
			if pos == 0 || !isIdentByte(table[pos-1]) {
				return true
			}
			base = pos + 1
		}
	}
	return false
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' || b == '.' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
