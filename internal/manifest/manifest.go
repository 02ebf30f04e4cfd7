// Package manifest parses a Cargo.toml manifest and projects its target
// tables (lib, bin, test, bench, example) into CrateInfo records, applying
// Cargo's own defaulting rules for targets that have no explicit array
// entry — the same completion cargo_toml::Manifest::complete_from_path
// performs in the original tool.
package manifest

import (
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// CrateInfo is one resolved build target: its crate name, its single
// source path (leading "./" stripped), and whether it's a procedural
// macro crate.
type CrateInfo struct {
	Name      string
	Srcs      []string
	ProcMacro bool
}

// Manifest is the completed projection of a Cargo.toml: the package name
// plus every target array, each already defaulted.
type Manifest struct {
	Name     string
	Library  *CrateInfo
	Binaries []CrateInfo
	Tests    []CrateInfo
	Benches  []CrateInfo
	Examples []CrateInfo
}

type cargoToml struct {
	Package *cargoPackage    `toml:"package"`
	Lib     *cargoProduct    `toml:"lib"`
	Bin     []cargoProduct   `toml:"bin"`
	Test    []cargoProduct   `toml:"test"`
	Bench   []cargoProduct   `toml:"bench"`
	Example []cargoProduct   `toml:"example"`
}

type cargoPackage struct {
	Name string `toml:"name"`
}

type cargoProduct struct {
	Name      string `toml:"name"`
	Path      string `toml:"path"`
	ProcMacro bool   `toml:"proc-macro"`
}

func (p cargoProduct) toCrateInfo(fallbackName, fallbackPath string) CrateInfo {
	name := p.Name
	if name == "" {
		name = fallbackName
	}
	path := p.Path
	if path == "" {
		path = fallbackPath
	}
	info := CrateInfo{ProcMacro: p.ProcMacro}
	if name != "" {
		info.Name = name
	}
	if path != "" {
		info.Srcs = []string{strings.TrimPrefix(path, "./")}
	}
	return info
}

// Load parses the Cargo.toml at path, applies Cargo's implicit-target
// defaulting, and projects the result into a Manifest.
func Load(path string) (*Manifest, error) {
	var doc cargoToml
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	pkgName := ""
	if doc.Package != nil {
		pkgName = doc.Package.Name
	}

	m := &Manifest{Name: pkgName}

	if doc.Lib != nil {
		lib := doc.Lib.toCrateInfo(pkgName, "src/lib.rs")
		m.Library = &lib
	} else if fileExists(filepath.Join(dir, "src/lib.rs")) {
		lib := cargoProduct{}.toCrateInfo(pkgName, "src/lib.rs")
		m.Library = &lib
	}

	if len(doc.Bin) > 0 {
		for _, b := range doc.Bin {
			m.Binaries = append(m.Binaries, b.toCrateInfo(pkgName, "src/main.rs"))
		}
	} else if fileExists(filepath.Join(dir, "src/main.rs")) {
		m.Binaries = append(m.Binaries, cargoProduct{}.toCrateInfo(pkgName, "src/main.rs"))
	} else {
		for _, p := range globRelative(dir, "src/bin/*.rs") {
			m.Binaries = append(m.Binaries, cargoProduct{}.toCrateInfo(targetNameFromPath(p), p))
		}
	}

	if len(doc.Test) > 0 {
		for _, tst := range doc.Test {
			m.Tests = append(m.Tests, tst.toCrateInfo("", ""))
		}
	} else {
		for _, p := range globRelative(dir, "tests/*.rs") {
			m.Tests = append(m.Tests, cargoProduct{}.toCrateInfo(targetNameFromPath(p), p))
		}
	}

	if len(doc.Bench) > 0 {
		for _, b := range doc.Bench {
			m.Benches = append(m.Benches, b.toCrateInfo("", ""))
		}
	} else {
		for _, p := range globRelative(dir, "benches/*.rs") {
			m.Benches = append(m.Benches, cargoProduct{}.toCrateInfo(targetNameFromPath(p), p))
		}
	}

	if len(doc.Example) > 0 {
		for _, e := range doc.Example {
			m.Examples = append(m.Examples, e.toCrateInfo("", ""))
		}
	} else {
		for _, p := range globRelative(dir, "examples/*.rs") {
			m.Examples = append(m.Examples, cargoProduct{}.toCrateInfo(targetNameFromPath(p), p))
		}
	}

	return m, nil
}

func targetNameFromPath(relPath string) string {
	base := filepath.Base(relPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
