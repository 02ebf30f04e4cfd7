// Package importer composes rustsrc, scope, attrs, cfgexpr, and macroscan
// into the Import Inference Engine's AST Walker: given a parsed file, it
// produces the FileImports record the Request Server returns.
package importer

import (
	"sort"

	"github.com/bazel-contrib/rust-import-analyzer/internal/attrs"
	"github.com/bazel-contrib/rust-import-analyzer/internal/cfgexpr"
	"github.com/bazel-contrib/rust-import-analyzer/internal/macroscan"
	"github.com/bazel-contrib/rust-import-analyzer/internal/rustsrc"
	"github.com/bazel-contrib/rust-import-analyzer/internal/scope"
)

// Mode selects between the flat (evaluation-mode) and predicated
// (symbolic-mode) output forms described in spec §4.2.
type Mode int

const (
	ModeFlat Mode = iota
	ModePredicated
)

// Hints are the three file-level booleans spec §3 calls out.
type Hints struct {
	HasMain      bool
	HasTest      bool
	HasProcMacro bool
}

// FileImports is the per-file result of walking one parsed source file.
// Imports holds the flat, deduplicated import set in ModeFlat;
// PredicatedImports holds the symbolic predicate-per-identifier form in
// ModePredicated (nil otherwise, and vice versa).
type FileImports struct {
	Hints             Hints
	Imports           []string
	PredicatedImports map[string]*cfgexpr.BExpr
	TestImports       []string
	ExternMods        []string
	CompileData       []string
}

// Options configures one walk.
type Options struct {
	// ContainingDir is the directory the source file lives in, used to
	// resolve include_str!/include_bytes! targets into compile_data.
	ContainingDir string
	// EnabledFeatures is the feature set cfg predicates are evaluated
	// against in ModeFlat. Ignored in ModePredicated.
	EnabledFeatures map[string]bool
	Mode            Mode
}

type walker struct {
	opts Options
	st   *scope.Stack

	hints       Hints
	externMods  []string
	externSeen  map[string]struct{}
	compileData map[string]struct{}

	// predicatedImports accumulates, for ModePredicated, every recorded
	// predicate an import candidate was discovered under; the same
	// identifier discovered twice under different predicates disjoins them.
	predicatedImports map[string][]*cfgexpr.BExpr
}

// Walk runs the AST Walker over file and produces its FileImports. An
// invariant violation encountered while interpreting a cfg predicate (an
// empty all(...)/any(...)) is returned as a fatal error rather than
// folded into the result.
func Walk(file *rustsrc.File, opts Options) (*FileImports, error) {
	w := &walker{
		opts:              opts,
		st:                scope.New(),
		externSeen:        map[string]struct{}{},
		compileData:       map[string]struct{}{},
		predicatedImports: map[string][]*cfgexpr.BExpr{},
	}
	if err := w.walkItems(file.Items, nil); err != nil {
		return nil, err
	}

	imports, testImports := w.st.RootImports()
	imports = classifyImports(imports)
	testImports = classifyImports(testImports)

	fi := &FileImports{
		Hints:       w.hints,
		TestImports: sortedCopy(testImports),
		ExternMods:  append([]string(nil), w.externMods...),
		CompileData: sortedCopy(setToSlice(w.compileData)),
	}
	if w.opts.Mode == ModePredicated {
		fi.PredicatedImports = w.finalizePredicated(imports)
	} else {
		fi.Imports = sortedCopy(imports)
	}
	return fi, nil
}

func (w *walker) finalizePredicated(surviving []string) map[string]*cfgexpr.BExpr {
	keep := map[string]struct{}{}
	for _, n := range surviving {
		keep[n] = struct{}{}
	}
	out := map[string]*cfgexpr.BExpr{}
	for name, preds := range w.predicatedImports {
		if _, ok := keep[name]; !ok {
			continue
		}
		var combined *cfgexpr.BExpr
		for _, p := range preds {
			combined = cfgexpr.Or(combined, p)
		}
		out[name] = cfgexpr.Simplify(combined)
	}
	return out
}

// recordImport adds name as a candidate import in the current scope
// (subject to scope.Stack's keyword/in-scope/ignored filtering), and in
// ModePredicated also records pred (the conjunction of every enclosing
// cfg predicate, including this item's own) against it.
func (w *walker) recordImport(name string, pred *cfgexpr.BExpr) {
	w.st.AddImport(name)
	if w.opts.Mode == ModePredicated {
		w.predicatedImports[name] = append(w.predicatedImports[name], pred)
	}
}

// gate decides whether to descend into an item carrying the given
// attributes, and what enclosing predicate its children see. In ModeFlat
// an item whose own cfg predicate evaluates to false is skipped outright.
// In ModePredicated nothing is ever skipped on cfg grounds; the predicate
// simply accumulates for any imports discovered underneath.
func (w *walker) gate(itemAttrs []rustsrc.Attribute, enclosing *cfgexpr.BExpr) (descend bool, combined *cfgexpr.BExpr, err error) {
	itemPred, err := attrs.Predicate(itemAttrs)
	if err != nil {
		return false, nil, err
	}
	switch w.opts.Mode {
	case ModePredicated:
		return true, cfgexpr.And(enclosing, itemPred), nil
	default:
		if !cfgexpr.Eval(itemPred, w.opts.EnabledFeatures) {
			return false, enclosing, nil
		}
		return true, enclosing, nil
	}
}

func (w *walker) walkItems(items []rustsrc.Item, pred *cfgexpr.BExpr) error {
	for _, it := range items {
		if err := w.walkItem(it, pred); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) walkItem(it rustsrc.Item, pred *cfgexpr.BExpr) error {
	ok, childPred, err := w.gate(it.Attributes(), pred)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	switch v := it.(type) {
	case *rustsrc.UseItem:
		w.walkUseItem(v, childPred)

	case *rustsrc.ExternCrateItem:
		if !attrs.ParseDirectives(v.Attributes()).ShouldIgnore() {
			w.recordImport(v.Name.Text, childPred)
		}

	case *rustsrc.ModItem:
		w.st.AddMod(v.Name.Text)
		if v.Body == nil {
			if w.st.IsRootScope() {
				if _, seen := w.externSeen[v.Name.Text]; !seen {
					w.externSeen[v.Name.Text] = struct{}{}
					w.externMods = append(w.externMods, v.Name.Text)
				}
			}
			return nil
		}
		ignored := attrs.ParseDirectives(v.Attributes()).ShouldIgnore()
		testOnly := isCfgTest(v.Attributes())
		w.st.Push(testOnly, ignored)
		err := w.walkBlock(v.Body, childPred)
		w.st.Pop()
		if err != nil {
			return err
		}

	case *rustsrc.FnItem:
		if v.Name.Text == "main" && w.st.IsRootScope() {
			w.hints.HasMain = true
		}
		isTest := false
		for _, a := range v.Attributes() {
			if attrs.IsTestAttribute(a.Meta.Segments) {
				isTest = true
			}
			if attrs.IsProcMacroMarker(a.Meta.Segments) {
				w.hints.HasProcMacro = true
			}
		}
		if isTest {
			w.hints.HasTest = true
		}
		ignored := attrs.ParseDirectives(v.Attributes()).ShouldIgnore()
		w.st.Push(isTest, ignored)
		w.scanTypeTokens(v.ArgTokens, childPred)
		w.scanTypeTokens(v.RetTokens, childPred)
		var err error
		if v.Body != nil {
			err = w.walkBlock(v.Body, childPred)
		}
		w.st.Pop()
		if err != nil {
			return err
		}

	case *rustsrc.MacroRulesItem:
		w.st.AddMod(v.Name.Text)

	case *rustsrc.StructItem:
		return w.walkDerives(v.Attributes(), childPred)

	case *rustsrc.EnumItem:
		return w.walkDerives(v.Attributes(), childPred)

	case *rustsrc.TypeItem:
		if err := w.walkDerives(v.Attributes(), childPred); err != nil {
			return err
		}
		w.scanTypeTokens(v.Value, childPred)

	case *rustsrc.MacroCallItem:
		w.scanMacroPath(v.Path, childPred)
		ignored := attrs.ParseDirectives(v.Attributes()).ShouldIgnore()
		w.st.Push(false, ignored)
		w.scanGroupTokens(v.Path, v.Group, childPred)
		w.st.Pop()

	case *rustsrc.OpaqueItem:
		if err := w.walkDerives(v.Attributes(), childPred); err != nil {
			return err
		}
		w.scanTypeTokens(v.Tokens, childPred)
	}
	return nil
}

// walkDerives interprets derive(...) / cfg_attr(pred, derive(...)) on an
// item that doesn't otherwise push a scope, contributing the first
// segment of each multi-segment derive path as an import.
func (w *walker) walkDerives(itemAttrs []rustsrc.Attribute, pred *cfgexpr.BExpr) error {
	for _, a := range itemAttrs {
		if err := w.walkAttrMeta(a.Meta, pred); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) walkAttrMeta(m rustsrc.Meta, pred *cfgexpr.BExpr) error {
	if metas, ok := attrs.DeriveSegments(m); ok {
		for _, dm := range metas {
			if len(dm.Segments) >= 2 {
				w.recordImport(dm.FirstSegment(), pred)
			}
		}
		return nil
	}
	innerPred, inner, ok, err := attrs.CfgAttrInner(m)
	if err != nil {
		return err
	}
	if ok {
		combined := pred
		if w.opts.Mode == ModePredicated {
			combined = cfgexpr.And(pred, innerPred)
		} else if !cfgexpr.Eval(innerPred, w.opts.EnabledFeatures) {
			return nil
		}
		return w.walkAttrMeta(inner, combined)
	}
	return nil
}

func isCfgTest(itemAttrs []rustsrc.Attribute) bool {
	for _, a := range itemAttrs {
		if a.Meta.Kind == rustsrc.MetaList && a.Meta.FirstSegment() == "cfg" {
			inner, ok := rustsrc.ParseMetaSingle(a.Meta.ListTokens)
			if ok && inner.Kind == rustsrc.MetaPath && len(inner.Segments) == 1 && inner.Segments[0].Text == "test" {
				return true
			}
		}
	}
	return false
}

func (w *walker) walkUseItem(v *rustsrc.UseItem, pred *cfgexpr.BExpr) {
	importName := firstSegmentOf(v.Tree)
	inScopeNames := inScopeNamesOf(v.Tree)

	if importName != "" && !attrs.ParseDirectives(v.Attributes()).ShouldIgnore() {
		w.recordImport(importName, pred)
	}

	var denylist []string
	if importName != "" {
		denylist = []string{importName}
	}
	w.st.SetUseDenylist(denylist)
	for _, n := range inScopeNames {
		w.st.AddMod(n)
	}
	w.st.ClearUseDenylist()
}

func firstSegmentOf(t rustsrc.UseTree) string {
	switch v := t.(type) {
	case *rustsrc.UseName:
		return v.Ident.Text
	case *rustsrc.UseRename:
		return v.Ident.Text
	case *rustsrc.UsePath:
		return v.Segment.Text
	case *rustsrc.UseGroup:
		for _, item := range v.Items {
			if s := firstSegmentOf(item); s != "" {
				return s
			}
		}
	}
	return ""
}

func inScopeNamesOf(t rustsrc.UseTree) []string {
	switch v := t.(type) {
	case *rustsrc.UseName:
		if v.Ident.Text == "self" {
			return nil
		}
		return []string{v.Ident.Text}
	case *rustsrc.UseRename:
		return []string{v.Rename.Text}
	case *rustsrc.UsePath:
		names := inScopeNamesOf(v.Sub)
		if grp, ok := v.Sub.(*rustsrc.UseGroup); ok {
			for _, item := range grp.Items {
				if un, ok2 := item.(*rustsrc.UseName); ok2 && un.Ident.Text == "self" {
					names = append(names, v.Segment.Text)
					break
				}
			}
		}
		return names
	case *rustsrc.UseGroup:
		var names []string
		for _, item := range v.Items {
			names = append(names, inScopeNamesOf(item)...)
		}
		return names
	}
	return nil
}

// walkBlock handles a fn/mod body directly in the scope the caller already
// pushed for it (the fn/mod item rule itself supplies the scope), walking
// its elements without an extra push/pop layer.
func (w *walker) walkBlock(b *rustsrc.Block, pred *cfgexpr.BExpr) error {
	for _, el := range b.Elements {
		if el.Item != nil {
			if err := w.walkItem(el.Item, pred); err != nil {
				return err
			}
			continue
		}
		if err := w.scanStmtTokens(el.Stmt, pred); err != nil {
			return err
		}
	}
	return nil
}

// scanStmtTokens handles one opaque statement token run. A run that is
// exactly a single brace-delimited group (a bare nested `{ ... }` block
// statement, as opposed to a fn/mod body) is reparsed as its own Block and
// walked in a freshly pushed scope, per spec §4.1's "Blocks push a new
// scope on entry" applying to every block, not just fn/mod bodies.
// Anything else is handed to the macro token scanner in a fresh pushed
// scope, matching §4.3's "walk it in a fresh pushed scope" for a
// successfully-interpreted token run; the push/pop has no externally
// visible effect for macroscan specifically, since it never declares
// names, only discovers import candidates, but it costs nothing to keep
// the structure uniform.
func (w *walker) scanStmtTokens(trees []rustsrc.TokenTree, pred *cfgexpr.BExpr) error {
	if len(trees) == 1 && trees[0].Group != nil && trees[0].Group.Delim == rustsrc.Brace {
		if nested, err := rustsrc.ParseBlock(trees[0].Group.Tokens); err == nil {
			w.st.Push(false, false)
			walkErr := w.walkBlock(nested, pred)
			w.st.Pop()
			return walkErr
		}
	}
	w.st.Push(false, false)
	_ = macroscan.Scan(trees, w.scanCtx(pred))
	w.st.Pop()
	return nil
}

func (w *walker) scanTypeTokens(trees []rustsrc.TokenTree, pred *cfgexpr.BExpr) {
	_ = macroscan.Scan(trees, w.scanCtx(pred))
}

func (w *walker) scanGroupTokens(path []rustsrc.Token, g *rustsrc.Group, pred *cfgexpr.BExpr) {
	if g == nil || len(path) == 0 {
		return
	}
	_ = macroscan.ScanMacroCall(path[len(path)-1].Text, g, w.scanCtx(pred))
}

func (w *walker) scanMacroPath(path []rustsrc.Token, pred *cfgexpr.BExpr) {
	if len(path) >= 2 {
		w.recordImport(path[0].Text, pred)
	}
}

func (w *walker) scanCtx(pred *cfgexpr.BExpr) *macroscan.Context {
	return &macroscan.Context{
		ContainingDir: w.opts.ContainingDir,
		IgnoredScope:  w.st.IsIgnoredScope(),
		CompileData:   w.compileData,
		AddImport:     func(name string) { w.recordImport(name, pred) },
	}
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func setToSlice(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
