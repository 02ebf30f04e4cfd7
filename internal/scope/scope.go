// Package scope implements the lexical scope stack the import walker
// pushes and pops as it descends into modules, functions, and blocks: a
// non-empty stack of per-scope declared names plus an eagerly-maintained
// composite set of everything currently in scope.
package scope

import (
	art "github.com/plar/go-adaptive-radix-tree"
)

// Scope is one entry on the stack: the names it declares, whether it sits
// behind a test marker or cfg(test), whether it's behind gazelle::ignore,
// and the import candidates collected directly within it (before being
// folded into the parent on Pop).
type Scope struct {
	mods        map[string]struct{}
	IsTestOnly  bool
	IsIgnored   bool
	Imports     []string
	TestImports []string
}

func newScope(testOnly, ignored bool) *Scope {
	return &Scope{mods: map[string]struct{}{}, IsTestOnly: testOnly, IsIgnored: ignored}
}

// trimEarlyImports removes imports that name an identifier this same
// scope later declared as an in-scope mod: it's possible to reference an
// identifier before the module that shadows it is declared, in which case
// the late declaration wins and the import candidate should be dropped.
func (s *Scope) trimEarlyImports() {
	s.Imports = filterOut(s.Imports, s.mods)
	s.TestImports = filterOut(s.TestImports, s.mods)
}

func filterOut(idents []string, mods map[string]struct{}) []string {
	out := idents[:0]
	for _, id := range idents {
		if _, shadowed := mods[id]; !shadowed {
			out = append(out, id)
		}
	}
	return out
}

// Stack is the non-empty lexical scope stack for one file. The zero value
// is not usable; construct with New.
type Stack struct {
	scopes    []*Scope
	composite art.Tree
	denylist  map[string]struct{}
}

// New returns a Stack with a single root scope pushed.
func New() *Stack {
	return &Stack{
		scopes:    []*Scope{newScope(false, false)},
		composite: art.New(),
		denylist:  map[string]struct{}{},
	}
}

func (s *Stack) top() *Scope { return s.scopes[len(s.scopes)-1] }

// Push enters a new nested scope. test-only and ignored status propagate
// from the enclosing scope: a scope nested inside a test-only or ignored
// scope is itself test-only/ignored even if not directly marked so.
func (s *Stack) Push(testOnly, ignored bool) {
	parent := s.top()
	s.scopes = append(s.scopes, newScope(testOnly || parent.IsTestOnly, ignored || parent.IsIgnored))
}

// Pop closes the current scope, removing its declared names from the
// composite set, trimming shadowed-early imports, and folding its
// collected imports up into the parent scope.
func (s *Stack) Pop() {
	n := len(s.scopes)
	popped := s.scopes[n-1]
	s.scopes = s.scopes[:n-1]

	for name := range popped.mods {
		s.composite.Delete(art.Key(name))
	}
	popped.trimEarlyImports()

	parent := s.top()
	parent.Imports = append(parent.Imports, popped.Imports...)
	parent.TestImports = append(parent.TestImports, popped.TestImports...)
}

// IsRootScope reports whether the stack is down to just the file's root scope.
func (s *Stack) IsRootScope() bool { return len(s.scopes) == 1 }

// IsTestOnlyScope reports whether the current scope is test-only.
func (s *Stack) IsTestOnlyScope() bool { return s.top().IsTestOnly }

// IsIgnoredScope reports whether the current scope is behind gazelle::ignore.
func (s *Stack) IsIgnoredScope() bool { return s.top().IsIgnored }

// SetUseDenylist temporarily blocks AddMod for the given names while a
// use item's own tree is walked: a use item's leaf-bound name can equal
// one of its own import candidates (e.g. `use foobar::foobar;`), and
// letting that name enter scope.mods would make early-import trimming
// wrongly strip the import at scope exit. Call ClearUseDenylist once the
// item's tree walk is done.
func (s *Stack) SetUseDenylist(names []string) {
	s.denylist = make(map[string]struct{}, len(names))
	for _, n := range names {
		s.denylist[n] = struct{}{}
	}
}

// ClearUseDenylist removes the denylist installed by SetUseDenylist.
func (s *Stack) ClearUseDenylist() { s.denylist = map[string]struct{}{} }

// InScope reports whether name currently resolves to something declared
// by an enclosing (or the current) scope.
func (s *Stack) InScope(name string) bool {
	_, found := s.composite.Search(art.Key(name))
	return found
}

// AddMod registers name as an in-scope identifier declared by the current
// scope: a mod, a use-introduced binding, or a macro_rules name. A
// name already in scope (from an enclosing scope) or denylisted is a
// no-op, matching the original's "first declaration wins" shadowing rule.
func (s *Stack) AddMod(name string) {
	if s.InScope(name) {
		return
	}
	if _, denied := s.denylist[name]; denied {
		return
	}
	s.composite.Insert(art.Key(name), struct{}{})
	s.top().mods[name] = struct{}{}
}

// AddImport records name as a candidate crate import discovered in the
// current scope. Keywords referring to the current crate (crate, super,
// self) are not imports. A name already resolvable in scope, or a scope
// behind gazelle::ignore, contributes nothing.
func (s *Stack) AddImport(name string) {
	if name == "crate" || name == "super" || name == "self" {
		return
	}
	if s.InScope(name) || s.IsIgnoredScope() {
		return
	}
	top := s.top()
	if top.IsTestOnly {
		top.TestImports = append(top.TestImports, name)
	} else {
		top.Imports = append(top.Imports, name)
	}
}

// RootImports finalizes and returns the accumulated imports and test
// imports once the stack has been fully unwound back to its root scope:
// it trims early imports shadowed by a later mod declaration (the same
// trimming every Pop applies to nested scopes, which the root scope never
// otherwise receives since it's never popped), then removes any test
// import that's also a plain import.
func (s *Stack) RootImports() (imports, testImports []string) {
	root := s.top()
	root.trimEarlyImports()
	imports = dedup(root.Imports)
	importSet := map[string]struct{}{}
	for _, i := range imports {
		importSet[i] = struct{}{}
	}
	for _, ti := range dedup(root.TestImports) {
		if _, ok := importSet[ti]; !ok {
			testImports = append(testImports, ti)
		}
	}
	return imports, testImports
}

func dedup(in []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
