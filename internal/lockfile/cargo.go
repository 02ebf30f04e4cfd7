package lockfile

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/semver"
)

// cargoLockfile mirrors the subset of Cargo.lock's schema this resolver
// needs: a flat list of [[package]] tables.
type cargoLockfile struct {
	Package []cargoPackage `toml:"package"`
}

type cargoPackage struct {
	Name         string            `toml:"name"`
	Version      string            `toml:"version"`
	Source       string            `toml:"source"`
	Dependencies []string          `toml:"dependencies"`
}

// GetCargoLockfileCrates reads and parses a Cargo.lock at path and emits
// one Package per package other than the direct-cargo-bazel-deps
// sentinel; a package with no source is emitted with WorkspaceMember set.
// A package's dependency list in Cargo.lock is a flat "name version" (or
// bare "name") string per entry; semver.IsValid is used only to validate
// the version component, downgrading a malformed version to "unknown"
// rather than failing the whole lockfile read.
func GetCargoLockfileCrates(path string) ([]Package, error) {
	var doc cargoLockfile
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("parsing cargo lockfile %s: %w", path, err)
	}

	var crates []Package
	for _, pkg := range doc.Package {
		if isWorkspaceTarget(pkg.Name) {
			continue
		}

		deps := make([]PackageDependency, 0, len(pkg.Dependencies))
		procMacro := false
		for _, dep := range pkg.Dependencies {
			name, version := splitDependencySpec(dep)
			if isProcMacroDep(name) {
				procMacro = true
			}
			deps = append(deps, PackageDependency{
				Name:    name,
				Version: normalizeVersion(version),
			})
		}

		crates = append(crates, Package{
			Name:            pkg.Name,
			CrateName:       libraryTargetName(pkg.Name),
			ProcMacro:       procMacro,
			Version:         normalizeVersion(pkg.Version),
			WorkspaceMember: pkg.Source == "",
			Dependencies:    deps,
		})
	}

	return crates, nil
}

// splitDependencySpec splits a Cargo.lock dependency entry, which is
// either a bare crate name or "name version", on its first space.
func splitDependencySpec(spec string) (name, version string) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == ' ' {
			return spec[:i], spec[i+1:]
		}
	}
	return spec, ""
}

// normalizeVersion validates v as semver (after adding the leading "v"
// golang.org/x/mod/semver requires) and downgrades anything malformed to
// "unknown" instead of propagating a parse failure.
func normalizeVersion(v string) string {
	if v == "" {
		return "unknown"
	}
	if !semver.IsValid("v" + v) {
		return "unknown"
	}
	return v
}
