package importer

import (
	"unicode"
	"unicode/utf8"
)

// isTypeNameHeuristic reports whether name's first rune is uppercase: the
// convention this engine relies on to tell a type/const reference apart
// from a crate name without resolving the identifier.
func isTypeNameHeuristic(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return r != utf8.RuneError && unicode.IsUpper(r)
}

// classifyImports applies the Identifier Classifier's final filter: drop
// anything that looks like a type/const reference. The crate/super/self
// and in-scope checks already happened at discovery time (scope.Stack.
// AddImport) and at scope-exit (trim_early_imports); this is the one
// check that can only be applied once every candidate's final spelling is
// known.
func classifyImports(names []string) []string {
	out := names[:0]
	for _, n := range names {
		if !isTypeNameHeuristic(n) {
			out = append(out, n)
		}
	}
	return out
}
