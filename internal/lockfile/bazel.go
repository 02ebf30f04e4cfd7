package lockfile

import (
	"encoding/json"
	"fmt"
	"os"
)

// bazelLockfile is the subset of a cargo-bazel splice lockfile this
// resolver needs: a workspace_members mapping (package name to crate id)
// and a crates mapping (crate id to its resolved metadata).
type bazelLockfile struct {
	WorkspaceMembers map[string]string          `json:"workspace_members"`
	Crates           map[string]bazelCrateEntry `json:"crates"`
}

type bazelCrateEntry struct {
	Name    string             `json:"name"`
	Version string             `json:"version"`
	Common  bazelCrateCommon   `json:"common"`
	Deps    bazelCrateDeps     `json:"deps"`
}

type bazelCrateCommon struct {
	LibraryTargetName string `json:"library_target_name"`
}

// bazelDepRef is one entry of a deps mapping: the id of the depended-on
// crate. cargo-bazel's real schema carries more per-dep metadata
// (target triples, extra feature sets); only the id matters here.
type bazelDepRef struct {
	ID string `json:"id"`
}

type bazelCrateDeps struct {
	Normal          map[string]bazelDepRef `json:"normal"`
	NormalDev       map[string]bazelDepRef `json:"normal_dev"`
	ProcMacro       map[string]bazelDepRef `json:"proc_macro"`
	ProcMacroDev    map[string]bazelDepRef `json:"proc_macro_dev"`
}

// GetBazelLockfileCrates reads and parses a cargo-bazel splice lockfile at
// path, entirely into memory, and emits one Package per workspace-member
// dependency (normal, dev, proc-macro, and proc-macro-dev), skipping any
// dependency crate with no library target name.
func GetBazelLockfileCrates(path string) ([]Package, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bazel lockfile %s: %w", path, err)
	}

	var doc bazelLockfile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing bazel lockfile %s: %w", path, err)
	}

	var crates []Package
	add := func(id string, isProcMacro bool) {
		entry, ok := doc.Crates[id]
		if !ok {
			return
		}
		if entry.Common.LibraryTargetName == "" {
			return
		}
		crates = append(crates, Package{
			Name:      entry.Name,
			CrateName: entry.Common.LibraryTargetName,
			ProcMacro: isProcMacro,
			Version:   entry.Version,
		})
	}

	for _, memberID := range doc.WorkspaceMembers {
		member, ok := doc.Crates[memberID]
		if !ok {
			continue
		}
		for _, dep := range member.Deps.Normal {
			add(dep.ID, false)
		}
		for _, dep := range member.Deps.NormalDev {
			add(dep.ID, false)
		}
		for _, dep := range member.Deps.ProcMacro {
			add(dep.ID, true)
		}
		for _, dep := range member.Deps.ProcMacroDev {
			add(dep.ID, true)
		}
	}

	return crates, nil
}
