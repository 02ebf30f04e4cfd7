package lockfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestGetBazelLockfileCratesSkipsEntriesWithoutLibraryTargetName(t *testing.T) {
	doc := `{
  "workspace_members": { "direct-cargo-bazel-deps": "root" },
  "crates": {
    "root": {
      "name": "direct-cargo-bazel-deps",
      "version": "0.0.0",
      "common": {},
      "deps": {
        "normal": {
          "serde-json": { "id": "serde_json_id" },
          "ghost": { "id": "no_target_id" }
        },
        "proc_macro": { "syn": { "id": "syn_id" } }
      }
    },
    "serde_json_id": {
      "name": "serde-json",
      "version": "1.0.0",
      "common": { "library_target_name": "serde_json" }
    },
    "syn_id": {
      "name": "syn",
      "version": "2.0.0",
      "common": { "library_target_name": "syn" }
    },
    "no_target_id": {
      "name": "ghost",
      "version": "0.1.0",
      "common": {}
    }
  }
}`
	path := writeTemp(t, "cargo-bazel-lock.json", doc)

	crates, err := GetBazelLockfileCrates(path)
	require.NoError(t, err)
	require.Len(t, crates, 2)

	byName := map[string]Package{}
	for _, c := range crates {
		byName[c.Name] = c
	}

	serdeJSON, ok := byName["serde-json"]
	require.True(t, ok)
	assert.Equal(t, "serde_json", serdeJSON.CrateName)
	assert.False(t, serdeJSON.ProcMacro)

	syn, ok := byName["syn"]
	require.True(t, ok)
	assert.True(t, syn.ProcMacro)
}

func TestGetCargoLockfileCratesMarksProcMacroDeps(t *testing.T) {
	doc := `
[[package]]
name = "direct-cargo-bazel-deps"
version = "0.0.0"
dependencies = [
    "serde-json 1.0.0",
    "syn 2.0.0",
]

[[package]]
name = "serde-json"
version = "1.0.0"
source = "registry+https://github.com/rust-lang/crates.io-index"
dependencies = []

[[package]]
name = "syn"
version = "2.0.0"
source = "registry+https://github.com/rust-lang/crates.io-index"
dependencies = [
    "proc-macro2 1.0.0",
]
`
	path := writeTemp(t, "Cargo.lock", doc)

	crates, err := GetCargoLockfileCrates(path)
	require.NoError(t, err)
	require.Len(t, crates, 2)

	byName := map[string]Package{}
	for _, c := range crates {
		byName[c.Name] = c
	}

	serdeJSON, ok := byName["serde-json"]
	require.True(t, ok)
	assert.Equal(t, "serde_json", serdeJSON.CrateName)
	assert.False(t, serdeJSON.ProcMacro)
	assert.True(t, serdeJSON.WorkspaceMember == false)

	syn, ok := byName["syn"]
	require.True(t, ok)
	assert.True(t, syn.ProcMacro)
}

func TestGetCargoLockfileCratesWorkspaceMemberHasNoSource(t *testing.T) {
	doc := `
[[package]]
name = "my-crate"
version = "0.1.0"
dependencies = []
`
	path := writeTemp(t, "Cargo.lock", doc)

	crates, err := GetCargoLockfileCrates(path)
	require.NoError(t, err)
	require.Len(t, crates, 1)
	assert.True(t, crates[0].WorkspaceMember)
}

func TestNormalizeVersionDowngradesMalformed(t *testing.T) {
	assert.Equal(t, "1.2.3", normalizeVersion("1.2.3"))
	assert.Equal(t, "unknown", normalizeVersion("not-a-version"))
	assert.Equal(t, "unknown", normalizeVersion(""))
}
