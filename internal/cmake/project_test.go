package cmake

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosanma1/clapforge/internal/abi"
	"github.com/dosanma1/clapforge/internal/template"
)

func materialize(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, Materialize(template.NewEngine(), dir, NewProject("gain-example", "1.2.3", "free-audio", "Frau")))
	return dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestMaterialize_CMakeLists(t *testing.T) {
	content := readFile(t, filepath.Join(materialize(t), "CMakeLists.txt"))

	for _, want := range []string{
		"project(gain_example VERSION 1.2.3 LANGUAGES C CXX)",
		"set(CMAKE_CXX_STANDARD 17)",
		"set(CMAKE_POSITION_INDEPENDENT_CODE ON)",
		`set(CMAKE_OSX_ARCHITECTURES "x86_64;arm64"`,
		"enable_language(OBJCXX)",
		`"-framework AudioToolbox"`,
		`"-framework Security"`,
		"INTERFACE ws2_32 userenv bcrypt ntdll advapi32",
		"INTERFACE pthread dl m",
		"MultiThreaded$<$<CONFIG:Debug>:Debug>",
		"add_subdirectory(\"${CLAP_WRAPPER_SOURCE_DIR}\"",
		"make_clapfirst_plugins(",
		"IMPL_TARGET gain_example_impl",
		`OUTPUT_NAME "gain-example"`,
		"PLUGIN_FORMATS ${PLUGIN_FORMATS}",
		`AUV2_MANUFACTURER_CODE "Frau"`,
	} {
		assert.Contains(t, content, want)
	}
}

func TestMaterialize_BridgingUnit(t *testing.T) {
	dir := materialize(t)
	content := readFile(t, filepath.Join(dir, "clap_entry.cpp"))

	assert.Contains(t, content, "extern const clap_plugin_entry rust_clap_entry;")
	assert.Contains(t, content, "CLAP_EXPORT extern const clap_plugin_entry clap_entry;")
	assert.Contains(t, content, "CLAP_EXPORT const clap_plugin_entry clap_entry = rust_clap_entry;")
	assert.Less(t,
		strings.Index(content, "CLAP_EXPORT extern const clap_plugin_entry clap_entry;"),
		strings.Index(content, "CLAP_EXPORT const clap_plugin_entry clap_entry = rust_clap_entry;"))
	assert.Contains(t, content, "    clap_version version;")
	assert.Contains(t, content, "    bool (*init)(const char *);")
	assert.Contains(t, content, "    void (*deinit)(void);")
	assert.Contains(t, content, "    const void *(*get_factory)(const char *);")
	assert.Contains(t, content, "offsetof(clap_plugin_entry, init) == 16")
	assert.Contains(t, content, "offsetof(clap_plugin_entry, get_factory) == 32")
	assert.Contains(t, content, "sizeof(clap_plugin_entry) == 40")
	assert.Contains(t, content, "offsetof(clap_plugin_entry, init) == 12")

	assert.FileExists(t, filepath.Join(dir, "clap_entry.h"))
}

func TestMaterialize_Idempotent(t *testing.T) {
	dir := materialize(t)
	first := readFile(t, filepath.Join(dir, "clap_entry.cpp"))

	require.NoError(t, Materialize(template.NewEngine(), dir, NewProject("gain-example", "1.2.3", "free-audio", "Frau")))
	assert.Equal(t, first, readFile(t, filepath.Join(dir, "clap_entry.cpp")))
}

func TestDeclare(t *testing.T) {
	assert.Equal(t, "clap_version version", declare(abi.Field{Name: "version", CType: "clap_version"}))
	assert.Equal(t, "void (*deinit)(void)", declare(abi.Field{Name: "deinit", CType: "void (*)(void)"}))
}

func TestMaterialize_BridgingUnitExportsEntry(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("nm output differs for COFF objects")
	}
	cxx, err := exec.LookPath("c++")
	if err != nil {
		t.Skip("c++ not found in PATH")
	}
	nm, err := exec.LookPath("nm")
	if err != nil {
		t.Skip("nm not found in PATH")
	}

	dir := materialize(t)
	obj := filepath.Join(t.TempDir(), "clap_entry.o")
	out, err := exec.Command(cxx, "-std=c++17", "-c", filepath.Join(dir, "clap_entry.cpp"), "-I", dir, "-o", obj).CombinedOutput()
	require.NoError(t, err, string(out))

	symbols, err := exec.Command(nm, obj).CombinedOutput()
	require.NoError(t, err, string(symbols))

	var global, core bool
	for _, line := range strings.Split(string(symbols), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		kind, name := fields[len(fields)-2], strings.TrimPrefix(fields[len(fields)-1], "_")
		switch name {
		case abi.BridgeSymbol:
			// Uppercase symbol types are external.
			global = kind == strings.ToUpper(kind) && kind != "U"
		case abi.CoreSymbol:
			core = kind == "U"
		}
	}
	assert.True(t, global, "clap_entry is not a global symbol:\n%s", symbols)
	assert.True(t, core, "rust_clap_entry is not an undefined reference:\n%s", symbols)
}
