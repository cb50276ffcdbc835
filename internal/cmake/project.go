package cmake

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dosanma1/clapforge/internal/abi"
	"github.com/dosanma1/clapforge/internal/template"
)

// Link dependencies of the bundle targets per platform.
var (
	appleFrameworks  = []string{"AudioToolbox", "CoreFoundation", "CoreAudio", "AppKit", "Foundation", "Security"}
	windowsLibraries = []string{"ws2_32", "userenv", "bcrypt", "ntdll", "advapi32"}
	linuxLibraries   = []string{"pthread", "dl", "m"}
)

// Project is the generated native build description for one target.
type Project struct {
	ProjectName      string
	OutputName       string
	CoreTarget       string
	ImplTarget       string
	CMakeVersion     string
	ManufacturerName string
	ManufacturerCode string
	AppleFrameworks  []string
	WindowsLibraries []string
	LinuxLibraries   []string
}

// NewProject describes the native build for the crate target.
func NewProject(target, cmakeVersion, manufacturerName, manufacturerCode string) Project {
	ident := template.Underscore(target)
	return Project{
		ProjectName:      ident,
		OutputName:       target,
		CoreTarget:       ident + "_core",
		ImplTarget:       ident + "_impl",
		CMakeVersion:     cmakeVersion,
		ManufacturerName: manufacturerName,
		ManufacturerCode: manufacturerCode,
		AppleFrameworks:  appleFrameworks,
		WindowsLibraries: windowsLibraries,
		LinuxLibraries:   linuxLibraries,
	}
}

// bridgeField is a struct member rendered into the bridging unit.
type bridgeField struct {
	Name   string
	Decl   string
	Offset uintptr
}

type bridgeData struct {
	TypeName     string
	CoreSymbol   string
	BridgeSymbol string
	Fields       []bridgeField
	Layout64     []bridgeField
	Layout32     []bridgeField
	Size64       uintptr
	Size32       uintptr
}

func newBridgeData() bridgeData {
	contract := abi.Contract()
	l64, l32 := abi.ExpectedLayout(8), abi.ExpectedLayout(4)
	return bridgeData{
		TypeName:     abi.CTypeName,
		CoreSymbol:   abi.CoreSymbol,
		BridgeSymbol: abi.BridgeSymbol,
		Fields:       bridgeFields(contract),
		Layout64:     bridgeFields(l64),
		Layout32:     bridgeFields(l32),
		Size64:       l64.Size,
		Size32:       l32.Size,
	}
}

func bridgeFields(l abi.Layout) []bridgeField {
	out := make([]bridgeField, len(l.Fields))
	for i, f := range l.Fields {
		out[i] = bridgeField{Name: f.Name, Decl: declare(f), Offset: f.Offset}
	}
	return out
}

// declare renders a C member declaration, placing the name inside
// function pointer declarators.
func declare(f abi.Field) string {
	if strings.Contains(f.CType, "(*)") {
		return strings.Replace(f.CType, "(*)", "(*"+f.Name+")", 1)
	}
	return f.CType + " " + f.Name
}

// Materialize writes CMakeLists.txt and the bridging unit into dir. Files
// whose content is unchanged are left untouched.
func Materialize(engine *template.Engine, dir string, p Project) error {
	if err := engine.RenderToFile("CMakeLists.txt.tmpl", p, filepath.Join(dir, "CMakeLists.txt")); err != nil {
		return fmt.Errorf("failed to generate CMakeLists.txt: %w", err)
	}
	if err := engine.RenderToFile("clap_entry.cpp.tmpl", newBridgeData(), filepath.Join(dir, "clap_entry.cpp")); err != nil {
		return fmt.Errorf("failed to generate bridging unit: %w", err)
	}
	if err := engine.CopyEmbeddedFile("clap_entry.h", filepath.Join(dir, "clap_entry.h")); err != nil {
		return fmt.Errorf("failed to generate bridging header: %w", err)
	}
	return nil
}
