// Package attrs interprets the attribute sub-language used by the import
// walker: cfg/cfg_attr/derive, the #[test]-family markers, the proc-macro
// markers, and the gazelle::ignore directive.
package attrs

import (
	"fmt"

	"github.com/bazel-contrib/rust-import-analyzer/internal/cfgexpr"
	"github.com/bazel-contrib/rust-import-analyzer/internal/rustsrc"
)

// EmptyCfgListError reports an empty all(...) or any(...) predicate, an
// invariant violation the cfg grammar defines as an error rather than a
// vacuous true/false, matching cfg.rs's bexpr_join(...).expect("empty
// and"/"empty or") panics. It is always fatal: callers must not fold it
// into a per-file recoverable response.
type EmptyCfgListError struct {
	Form string // "all" or "any"
}

func (e *EmptyCfgListError) Error() string {
	return fmt.Sprintf("empty %s(...) predicate", e.Form)
}

// CfgExpr converts a single already-isolated cfg predicate Meta (the
// nested meta reached by reinterpreting a `#[cfg(...)]` attribute's
// ListTokens as one Meta) into a BExpr, recursively expanding all/any/not.
// Any shape this grammar doesn't recognize defaults to an always-true
// constant, matching the original's "malformed cfg doesn't gate" posture.
// An empty all(...)/any(...) argument list is the one shape that is a
// hard error rather than a default.
func CfgExpr(meta rustsrc.Meta) (*cfgexpr.BExpr, error) {
	switch meta.Kind {
	case rustsrc.MetaPath:
		if len(meta.Segments) != 1 {
			return cfgexpr.NewConst(true), nil
		}
		return cfgexpr.NewAtom(cfgexpr.Atom{Value: meta.Segments[0].Text}), nil

	case rustsrc.MetaNameValue:
		if len(meta.Segments) != 1 || meta.Value == nil {
			return cfgexpr.NewConst(true), nil
		}
		return cfgexpr.NewAtom(cfgexpr.Atom{HasKey: true, Key: meta.Segments[0].Text, Value: meta.Value.Text}), nil

	case rustsrc.MetaList:
		switch meta.FirstSegment() {
		case "all":
			return combineList(meta.ListTokens, "all", cfgexpr.NewAnd)
		case "any":
			return combineList(meta.ListTokens, "any", cfgexpr.NewOr)
		case "not":
			items, ok := rustsrc.SplitMetaList(meta.ListTokens)
			if !ok || len(items) != 1 {
				return cfgexpr.NewConst(true), nil
			}
			inner, err := CfgExpr(items[0])
			if err != nil {
				return nil, err
			}
			return cfgexpr.NewNot(inner), nil
		default:
			return cfgexpr.NewConst(true), nil
		}
	}
	return cfgexpr.NewConst(true), nil
}

func combineList(toks []rustsrc.TokenTree, form string, combine func(...*cfgexpr.BExpr) *cfgexpr.BExpr) (*cfgexpr.BExpr, error) {
	items, ok := rustsrc.SplitMetaList(toks)
	if !ok {
		return cfgexpr.NewConst(true), nil
	}
	if len(items) == 0 {
		return nil, &EmptyCfgListError{Form: form}
	}
	ops := make([]*cfgexpr.BExpr, len(items))
	for i, m := range items {
		op, err := CfgExpr(m)
		if err != nil {
			return nil, err
		}
		ops[i] = op
	}
	return combine(ops...), nil
}

// isCfgMeta reports whether a parsed attribute Meta is a `cfg(...)` form,
// and if so returns the single nested predicate Meta (or ok=false if the
// argument doesn't reduce to exactly one Meta, which the original treats
// as non-gating rather than an error).
func isCfgMeta(m rustsrc.Meta) (rustsrc.Meta, bool) {
	if m.Kind != rustsrc.MetaList || m.FirstSegment() != "cfg" {
		return rustsrc.Meta{}, false
	}
	return rustsrc.ParseMetaSingle(m.ListTokens)
}

// Predicate returns the conjunction of every #[cfg(...)] predicate
// attached to attrs, or nil if there are none (meaning "always enabled").
// A malformed cfg argument contributes nothing, matching cfg_enabled's
// attr.parse_args::<Meta>() failure path. An empty all(...)/any(...)
// predicate is a fatal error and is returned as such, not defaulted.
func Predicate(attrs []rustsrc.Attribute) (*cfgexpr.BExpr, error) {
	var acc *cfgexpr.BExpr
	for _, a := range attrs {
		inner, ok := isCfgMeta(a.Meta)
		if !ok {
			continue
		}
		expr, err := CfgExpr(inner)
		if err != nil {
			return nil, err
		}
		acc = cfgexpr.And(acc, expr)
	}
	return acc, nil
}

// Enabled evaluates every #[cfg(...)] attribute against enabledFeatures
// (evaluation mode). An item with no cfg attributes is always enabled.
func Enabled(attrs []rustsrc.Attribute, enabledFeatures map[string]bool) (bool, error) {
	pred, err := Predicate(attrs)
	if err != nil {
		return false, err
	}
	return cfgexpr.Eval(pred, enabledFeatures), nil
}

// Directive is a recognized gazelle:: custom attribute directive.
type Directive int

const (
	DirectiveIgnore Directive = iota
)

// DirectiveSet accumulates the directives found on one item's attributes.
type DirectiveSet struct {
	ignore bool
}

func (d *DirectiveSet) insert(dir Directive) {
	switch dir {
	case DirectiveIgnore:
		d.ignore = true
	}
}

// ShouldIgnore reports whether a gazelle::ignore directive was present.
func (d DirectiveSet) ShouldIgnore() bool { return d.ignore }

// ParseDirectives scans attrs for gazelle::<name> directives.
func ParseDirectives(attrs []rustsrc.Attribute) DirectiveSet {
	var ds DirectiveSet
	for _, a := range attrs {
		m := a.Meta
		if len(m.Segments) == 2 && m.Segments[0].Text == "gazelle" && m.Segments[1].Text == "ignore" {
			ds.insert(DirectiveIgnore)
		}
	}
	return ds
}

// IsTestAttribute reports whether segments name a test marker: a bare
// `test`, or any multi-segment path ending in `::test` (tokio::test,
// async_std::test, custom::framework::test, ...).
func IsTestAttribute(segments []rustsrc.Token) bool {
	if len(segments) == 0 {
		return false
	}
	return segments[len(segments)-1].Text == "test"
}

// IsProcMacroMarker reports whether segments is the bare `proc_macro` or
// `proc_macro_attribute` marker attribute.
func IsProcMacroMarker(segments []rustsrc.Token) bool {
	if len(segments) != 1 {
		return false
	}
	return segments[0].Text == "proc_macro" || segments[0].Text == "proc_macro_attribute"
}

// DeriveSegments returns the comma-separated derive path list for a
// `#[derive(...)]` attribute's meta, or ok=false if it isn't a derive
// attribute or its argument list doesn't parse.
func DeriveSegments(m rustsrc.Meta) ([]rustsrc.Meta, bool) {
	if m.Kind != rustsrc.MetaList || m.FirstSegment() != "derive" {
		return nil, false
	}
	return rustsrc.SplitMetaList(m.ListTokens)
}

// CfgAttrInner returns the inner attribute Meta of a `#[cfg_attr(pred,
// inner)]` attribute along with its gating predicate, or ok=false if m
// isn't a cfg_attr or doesn't have exactly two arguments.
func CfgAttrInner(m rustsrc.Meta) (pred *cfgexpr.BExpr, inner rustsrc.Meta, ok bool, err error) {
	if m.Kind != rustsrc.MetaList || m.FirstSegment() != "cfg_attr" {
		return nil, rustsrc.Meta{}, false, nil
	}
	items, splitOK := rustsrc.SplitMetaList(m.ListTokens)
	if !splitOK || len(items) != 2 {
		return nil, rustsrc.Meta{}, false, nil
	}
	pred, err = CfgExpr(items[0])
	if err != nil {
		return nil, rustsrc.Meta{}, false, err
	}
	return pred, items[1], true, nil
}
