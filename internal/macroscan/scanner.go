// Package macroscan interprets the raw token streams that sit behind a
// macro invocation (and, more generally, any block/fn body statement our
// rustsrc parser doesn't otherwise interpret): it extracts include_str!/
// include_bytes! targets and performs a best-effort scan for path and
// nested-macro references so they still contribute import candidates.
package macroscan

import "github.com/bazel-contrib/rust-import-analyzer/internal/rustsrc"

// AbsoluteIncludeError is returned when an include_str!/include_bytes!
// argument is an absolute path, which the original treats as a fatal
// condition rather than a silent recovery.
type AbsoluteIncludeError struct {
	Path string
}

func (e *AbsoluteIncludeError) Error() string {
	return "included paths must not be absolute: " + e.Path
}

// Context carries the state the scanner needs across a recursive scan:
// where to report discovered import candidates, where compile_data
// (include_str!/include_bytes! targets) collects, and whether the
// enclosing scope is behind gazelle::ignore (which suppresses compile_data
// collection but not the scan itself, matching the original's posture of
// "still bring names into scope, just don't record dependencies").
type Context struct {
	ContainingDir string
	IgnoredScope  bool
	AddImport     func(name string)
	CompileData   map[string]struct{}
}

// Scan interprets trees as the argument tokens of a macro invocation (or
// an unparsed statement/expression run within a block), applying the
// four-step fallback chain: since this package has no Rust expression
// grammar to attempt, "parse as an expression" is approximated by the
// heuristic that a genuine single Rust expression never contains a bare
// top-level comma (one outside any bracketed/braced/parenthesized group,
// which is already encapsulated as a single TokenTree by the time this
// package sees it); a token run satisfying that is scanned directly for
// paths and nested macro calls, otherwise the comma-split / skip-to-ident
// fallbacks apply exactly as in the reference implementation.
func Scan(trees []rustsrc.TokenTree, ctx *Context) error {
	if len(trees) == 0 {
		return nil
	}
	if !hasTopLevelComma(trees) {
		return scanPathsAndMacros(trees, ctx)
	}
	if startsWithIdent(trees) {
		fragments, sawComma := splitOnCommas(trees)
		if sawComma {
			for _, frag := range fragments {
				if err := Scan(frag, ctx); err != nil {
					return err
				}
			}
			return nil
		}
		return scanPathsAndMacros(trees, ctx)
	}
	rest := dropUntilIdent(trees)
	if len(rest) == len(trees) || len(rest) == 0 {
		return nil
	}
	return Scan(rest, ctx)
}

// scanPathsAndMacros walks trees once, looking for `ident(::ident)*` path
// runs (contributing the first segment as an import when there are two or
// more segments, matching the Path-node rule) and `path!(...)`/`path![...]`/
// `path!{...}` macro invocations, recursing into both nested groups and
// macro argument streams.
func scanPathsAndMacros(trees []rustsrc.TokenTree, ctx *Context) error {
	i := 0
	for i < len(trees) {
		if trees[i].Leaf != nil && trees[i].Leaf.Kind == rustsrc.Ident {
			segs := []string{trees[i].Leaf.Text}
			j := i + 1
			for j+1 < len(trees) && trees[j].IsPunct("::") &&
				trees[j+1].Leaf != nil && trees[j+1].Leaf.Kind == rustsrc.Ident {
				segs = append(segs, trees[j+1].Leaf.Text)
				j += 2
			}
			if j < len(trees) && trees[j].IsPunct("!") && j+1 < len(trees) && trees[j+1].Group != nil {
				if len(segs) >= 2 && ctx.AddImport != nil {
					ctx.AddImport(segs[0])
				}
				if err := handleMacroCall(segs[len(segs)-1], trees[j+1].Group, ctx); err != nil {
					return err
				}
				i = j + 2
				continue
			}
			if len(segs) >= 2 && ctx.AddImport != nil {
				ctx.AddImport(segs[0])
			}
			i = j
			continue
		}
		if trees[i].Group != nil {
			if err := Scan(trees[i].Group.Tokens, ctx); err != nil {
				return err
			}
			i++
			continue
		}
		i++
	}
	return nil
}

func handleMacroCall(name string, group *rustsrc.Group, ctx *Context) error {
	return ScanMacroCall(name, group, ctx)
}

// ScanMacroCall handles a single `name!(...)`/`name![...]`/`name!{...}`
// invocation already split into its macro name and argument group: the
// include_str!/include_bytes! special case, then a recursive Scan of the
// argument tokens for further path/macro references. Exported so callers
// holding a macro invocation's name and group directly (item-position
// macro calls, which the parser already splits this way) don't need to
// re-synthesize a token run just to go through Scan's own detection.
func ScanMacroCall(name string, group *rustsrc.Group, ctx *Context) error {
	if (name == "include_str" || name == "include_bytes") && !ctx.IgnoredScope {
		if err := extractInclude(group.Tokens, ctx); err != nil {
			return err
		}
	}
	return Scan(group.Tokens, ctx)
}

// extractInclude handles include_str!("path")/include_bytes!("path"): if
// the macro argument is a single string literal, it's normalized relative
// to ctx.ContainingDir and recorded in ctx.CompileData. An absolute
// argument is a hard error.
func extractInclude(args []rustsrc.TokenTree, ctx *Context) error {
	if len(args) != 1 || args[0].Leaf == nil {
		return nil
	}
	lit := args[0].Leaf
	if lit.Kind != rustsrc.Str && lit.Kind != rustsrc.RawStr {
		return nil
	}
	if len(lit.Text) > 0 && lit.Text[0] == '/' {
		return &AbsoluteIncludeError{Path: lit.Text}
	}
	joined := lit.Text
	if ctx.ContainingDir != "" {
		joined = ctx.ContainingDir + "/" + lit.Text
	}
	if ctx.CompileData != nil {
		ctx.CompileData[NormalizePath(joined)] = struct{}{}
	}
	return nil
}

func hasTopLevelComma(trees []rustsrc.TokenTree) bool {
	for _, t := range trees {
		if t.IsPunct(",") {
			return true
		}
	}
	return false
}

func startsWithIdent(trees []rustsrc.TokenTree) bool {
	return len(trees) > 0 && trees[0].Leaf != nil && trees[0].Leaf.Kind == rustsrc.Ident
}

// splitOnCommas splits trees on top-level commas, mirroring the
// reference's split_on_commas: the trailing segment is only included if
// it's non-empty or no comma was seen at all (so an all-empty input
// doesn't produce a spurious single empty fragment).
func splitOnCommas(trees []rustsrc.TokenTree) ([][]rustsrc.TokenTree, bool) {
	var result [][]rustsrc.TokenTree
	var cur []rustsrc.TokenTree
	sawComma := false
	for _, t := range trees {
		if t.IsPunct(",") {
			sawComma = true
			result = append(result, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	if len(cur) > 0 || !sawComma {
		result = append(result, cur)
	}
	return result, sawComma
}

// dropUntilIdent returns the suffix of trees starting at the first leaf
// identifier, or nil if none exists.
func dropUntilIdent(trees []rustsrc.TokenTree) []rustsrc.TokenTree {
	for i, t := range trees {
		if t.Leaf != nil && t.Leaf.Kind == rustsrc.Ident {
			return trees[i:]
		}
	}
	return nil
}
