package rustsrc

// File is the root of a parsed source file: a flat sequence of items.
type File struct {
	Items []Item
}

// Item is implemented by every item-level declaration the parser
// recognizes. Node kinds not listed here (traits, impls, consts, statics,
// unions) are parsed only far enough to skip past them; they carry no
// import-bearing semantics the spec calls out, beyond their attributes,
// which ARE processed (see the OpaqueItem fallback in Parser.parseItem).
type Item interface {
	itemNode()
	Attributes() []Attribute
}

type base struct {
	Attrs []Attribute
}

func (b base) Attributes() []Attribute { return b.Attrs }

// UseItem is a `use <tree>;` declaration.
type UseItem struct {
	base
	Tree UseTree
}

func (*UseItem) itemNode() {}

// UseTree mirrors syn::UseTree.
type UseTree interface {
	useTreeNode()
}

// UseName is a bare trailing name: `use foo;` or the `bar` in `use a::bar;`.
type UseName struct{ Ident Token }

// UseRename is `a as z` (including the terminal `as z` of a longer path).
type UseRename struct {
	Ident  Token
	Rename Token
}

// UsePath is `segment::rest`.
type UsePath struct {
	Segment Token
	Sub     UseTree
}

// UseGroup is `{a, b, c}`, applied recursively through nesting.
type UseGroup struct{ Items []UseTree }

// UseGlob is the `*` in `use a::*;`.
type UseGlob struct{}

func (*UseName) useTreeNode()   {}
func (*UseRename) useTreeNode() {}
func (*UsePath) useTreeNode()   {}
func (*UseGroup) useTreeNode()  {}
func (*UseGlob) useTreeNode()   {}

// ExternCrateItem is `extern crate name;` (optionally `as alias`).
type ExternCrateItem struct {
	base
	Name Token
}

func (*ExternCrateItem) itemNode() {}

// ModItem is `mod name { ... }` or `mod name;` (Body == nil).
type ModItem struct {
	base
	Name Token
	Body *Block // nil when declared at a file root without an inline body
}

func (*ModItem) itemNode() {}

// FnItem is a function item. Only the signature's name and the raw body
// token stream are retained; argument/return types are not parsed beyond
// being scanned for path references by the importer (see RetTokens/
// ArgTokens).
type FnItem struct {
	base
	Name      Token
	ArgTokens []TokenTree // concatenated token streams of each parameter's type
	RetTokens []TokenTree // return type tokens, if any
	Body      *Block      // nil for a trait method signature with no body
}

func (*FnItem) itemNode() {}

// MacroRulesItem is `macro_rules! name { ... }`.
type MacroRulesItem struct {
	base
	Name Token
}

func (*MacroRulesItem) itemNode() {}

// StructItem, EnumItem, TypeItem carry only their attributes (for derive/
// cfg processing); their bodies are not interpreted further, matching
// spec §4.1's "do not push a scope by themselves but their attributes are
// processed."
type StructItem struct {
	base
	Name Token
}

func (*StructItem) itemNode() {}

type EnumItem struct {
	base
	Name Token
}

func (*EnumItem) itemNode() {}

// TypeItem is `type Name = <tokens>;`; Value holds the RHS tokens so the
// importer can scan it for path references (e.g. `type Y = bb::B;`).
type TypeItem struct {
	base
	Name  Token
	Value []TokenTree
}

func (*TypeItem) itemNode() {}

// MacroCallItem is a macro invocation used at item position, e.g.
// `lazy_static::lazy_static! { ... }`.
type MacroCallItem struct {
	base
	Path  []Token
	Group *Group
}

func (*MacroCallItem) itemNode() {}

// OpaqueItem is any other item kind the parser recognizes syntactically
// (trait, impl, const, static, union) but doesn't otherwise interpret. Its
// attributes are still processed, and a best-effort scan of its raw tokens
// is performed by the importer for nested paths, matching the original's
// coverage of "everything defaults to traversing children."
type OpaqueItem struct {
	base
	Tokens []TokenTree
}

func (*OpaqueItem) itemNode() {}

// Block is the body of a fn or mod, or a bare block statement: a sequence
// of elements, each either a nested Item or a raw statement token run.
type Block struct {
	Elements []BlockElement
}

// BlockElement is either an Item (nested use/mod/fn/etc., which affects
// scope) or a Stmt (an opaque, unparsed statement token run scanned for
// paths/macros by macroscan).
type BlockElement struct {
	Item Item
	Stmt []TokenTree
}

// MetaKind distinguishes the three attribute-meta shapes from syn::Meta.
type MetaKind int

const (
	MetaPath MetaKind = iota
	MetaList
	MetaNameValue
)

// Meta mirrors syn::Meta. For MetaList, ListTokens holds the unparsed inner
// tokens of the delimited group: callers reinterpret them either as a
// single nested Meta (cfg's own argument) or as a comma-separated list of
// Metas (derive(...), cfg_attr(...), all/any/not(...)), matching how the
// original's cfg_enabled vs eval_cfg_meta/visit_attr_meta each parse the
// same list shape differently depending on context.
type Meta struct {
	Segments   []Token
	Kind       MetaKind
	ListTokens []TokenTree
	Value      *Token
}

// LastSegment returns the final path segment's text, or "" if Segments is empty.
func (m Meta) LastSegment() string {
	if len(m.Segments) == 0 {
		return ""
	}
	return m.Segments[len(m.Segments)-1].Text
}

// FirstSegment returns the first path segment's text, or "" if Segments is empty.
func (m Meta) FirstSegment() string {
	if len(m.Segments) == 0 {
		return ""
	}
	return m.Segments[0].Text
}

// Attribute is one `#[...]` (or `#![...]`) attribute attached to an item.
type Attribute struct {
	Meta Meta
}
