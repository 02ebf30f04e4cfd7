package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestLoadExplicitLibAndBin(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Cargo.toml"), `
[package]
name = "widget"

[lib]
path = "./src/widget.rs"

[[bin]]
name = "widget-cli"
path = "src/bin/cli.rs"
`)

	m, err := Load(filepath.Join(dir, "Cargo.toml"))
	require.NoError(t, err)

	assert.Equal(t, "widget", m.Name)
	require.NotNil(t, m.Library)
	assert.Equal(t, []string{"src/widget.rs"}, m.Library.Srcs)

	require.Len(t, m.Binaries, 1)
	assert.Equal(t, "widget-cli", m.Binaries[0].Name)
	assert.Equal(t, []string{"src/bin/cli.rs"}, m.Binaries[0].Srcs)
}

func TestLoadImplicitLibAndMain(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Cargo.toml"), `
[package]
name = "widget"
`)
	writeFile(t, filepath.Join(dir, "src/lib.rs"), "")
	writeFile(t, filepath.Join(dir, "src/main.rs"), "")

	m, err := Load(filepath.Join(dir, "Cargo.toml"))
	require.NoError(t, err)

	require.NotNil(t, m.Library)
	assert.Equal(t, "widget", m.Library.Name)
	assert.Equal(t, []string{"src/lib.rs"}, m.Library.Srcs)

	require.Len(t, m.Binaries, 1)
	assert.Equal(t, []string{"src/main.rs"}, m.Binaries[0].Srcs)
}

func TestLoadImplicitTestsGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Cargo.toml"), `
[package]
name = "widget"
`)
	writeFile(t, filepath.Join(dir, "tests/smoke.rs"), "")
	writeFile(t, filepath.Join(dir, "tests/integration.rs"), "")

	m, err := Load(filepath.Join(dir, "Cargo.toml"))
	require.NoError(t, err)

	require.Len(t, m.Tests, 2)
	var names []string
	for _, tgt := range m.Tests {
		names = append(names, tgt.Name)
	}
	assert.ElementsMatch(t, []string{"smoke", "integration"}, names)
}

func TestLoadProcMacroFlag(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Cargo.toml"), `
[package]
name = "my-macros"

[lib]
proc-macro = true
`)

	m, err := Load(filepath.Join(dir, "Cargo.toml"))
	require.NoError(t, err)
	require.NotNil(t, m.Library)
	assert.True(t, m.Library.ProcMacro)
}
