// Package abi describes the binary seam between the compiled core and the
// native bridging unit: the entry record both sides must lay out
// identically, and the symbols that carry it.
package abi

import (
	"fmt"
	"unsafe"
)

const (
	// CoreSymbol is the entry record exported by the core static library.
	CoreSymbol = "rust_clap_entry"
	// BridgeSymbol is the entry record the bundle exports to hosts.
	BridgeSymbol = "clap_entry"
	// CTypeName is the C struct tag used by both sides.
	CTypeName = "clap_plugin_entry"
)

// Version mirrors clap_version_t.
type Version struct {
	Major    uint32
	Minor    uint32
	Revision uint32
}

// EntryPoint mirrors clap_plugin_entry_t. Function pointers are opaque
// addresses; only their position in the record matters here.
type EntryPoint struct {
	Version    Version
	Init       uintptr // bool (*)(const char *plugin_path)
	Deinit     uintptr // void (*)(void)
	GetFactory uintptr // const void *(*)(const char *factory_id)
}

// Field is one member of the entry record.
type Field struct {
	Name   string
	CType  string
	Offset uintptr
	Size   uintptr
}

// Layout is the ordered member list plus total size and alignment.
type Layout struct {
	Fields []Field
	Size   uintptr
	Align  uintptr
}

// Contract returns the record layout as compiled for the host.
func Contract() Layout {
	var e EntryPoint
	return Layout{
		Fields: []Field{
			{Name: "version", CType: "clap_version", Offset: unsafe.Offsetof(e.Version), Size: unsafe.Sizeof(e.Version)},
			{Name: "init", CType: "bool (*)(const char *)", Offset: unsafe.Offsetof(e.Init), Size: unsafe.Sizeof(e.Init)},
			{Name: "deinit", CType: "void (*)(void)", Offset: unsafe.Offsetof(e.Deinit), Size: unsafe.Sizeof(e.Deinit)},
			{Name: "get_factory", CType: "const void *(*)(const char *)", Offset: unsafe.Offsetof(e.GetFactory), Size: unsafe.Sizeof(e.GetFactory)},
		},
		Size:  unsafe.Sizeof(e),
		Align: unsafe.Alignof(e),
	}
}

// ExpectedLayout computes the layout a C compiler produces for the record
// on a target with the given pointer size (4 or 8).
func ExpectedLayout(ptrSize uintptr) Layout {
	const versionSize, versionAlign = 12, 4

	fields := []Field{{Name: "version", CType: "clap_version", Offset: 0, Size: versionSize}}
	off := uintptr(versionSize)
	for _, f := range []Field{
		{Name: "init", CType: "bool (*)(const char *)"},
		{Name: "deinit", CType: "void (*)(void)"},
		{Name: "get_factory", CType: "const void *(*)(const char *)"},
	} {
		off = alignUp(off, ptrSize)
		f.Offset = off
		f.Size = ptrSize
		fields = append(fields, f)
		off += ptrSize
	}

	align := max(ptrSize, versionAlign)
	return Layout{Fields: fields, Size: alignUp(off, align), Align: align}
}

// Offset returns the offset of the named field.
func (l Layout) Offset(name string) (uintptr, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f.Offset, true
		}
	}
	return 0, false
}

// Equal reports the first difference between two layouts, or nil when they
// are field-for-field identical.
func (l Layout) Equal(other Layout) error {
	if len(l.Fields) != len(other.Fields) {
		return fmt.Errorf("field count differs: %d != %d", len(l.Fields), len(other.Fields))
	}
	for i, f := range l.Fields {
		o := other.Fields[i]
		switch {
		case f.Name != o.Name:
			return fmt.Errorf("field %d: name %q != %q", i, f.Name, o.Name)
		case f.Offset != o.Offset:
			return fmt.Errorf("field %s: offset %d != %d", f.Name, f.Offset, o.Offset)
		case f.Size != o.Size:
			return fmt.Errorf("field %s: size %d != %d", f.Name, f.Size, o.Size)
		}
	}
	if l.Size != other.Size {
		return fmt.Errorf("record size %d != %d", l.Size, other.Size)
	}
	return nil
}

func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}
