package rustsrc

import "fmt"

// Parser consumes a flat []TokenTree sequence (as produced by Tokenize +
// BuildTokenTrees) and produces items. It is a small recursive-descent
// parser: it recognizes just enough item-level grammar to find use/mod/
// fn/struct/enum/type/macro_rules/extern-crate boundaries and their
// attributes, and otherwise treats content as opaque token runs handed to
// the macroscan package.
type Parser struct {
	trees []TokenTree
	i     int
}

// ParseFile tokenizes and parses an entire source file.
func ParseFile(src string) (*File, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	// drop the trailing EOF sentinel before tree-building
	trees, err := BuildTokenTrees(toks[:len(toks)-1])
	if err != nil {
		return nil, err
	}
	p := &Parser{trees: trees}
	items, err := p.parseItems()
	if err != nil {
		return nil, err
	}
	return &File{Items: items}, nil
}

func (p *Parser) peek() TokenTree {
	if p.i >= len(p.trees) {
		return TokenTree{}
	}
	return p.trees[p.i]
}

func (p *Parser) peekN(n int) TokenTree {
	if p.i+n >= len(p.trees) {
		return TokenTree{}
	}
	return p.trees[p.i+n]
}

func (p *Parser) atEnd() bool { return p.i >= len(p.trees) }

func (p *Parser) next() TokenTree {
	tt := p.peek()
	p.i++
	return tt
}

func (p *Parser) expectPunct(s string) error {
	if !p.peek().IsPunct(s) {
		return fmt.Errorf("expected %q, got %v", s, p.peek())
	}
	p.i++
	return nil
}

func (p *Parser) expectIdent(s string) error {
	if !p.peek().IsIdent(s) {
		return fmt.Errorf("expected ident %q, got %v", s, p.peek())
	}
	p.i++
	return nil
}

// skipToSemiOrBrace advances past tokens until it consumes a top-level `;`
// or a `{...}` group (returning that group, or nil if it stopped on `;`).
// Used for item shapes this parser doesn't interpret beyond their header.
func (p *Parser) skipToSemiOrBrace() (*Group, []TokenTree) {
	var skipped []TokenTree
	for !p.atEnd() {
		tt := p.next()
		if tt.IsPunct(";") {
			return nil, skipped
		}
		if tt.Group != nil && tt.Group.Delim == Brace {
			return tt.Group, skipped
		}
		skipped = append(skipped, tt)
	}
	return nil, skipped
}

// parseItems parses items until the cursor is exhausted.
func (p *Parser) parseItems() ([]Item, error) {
	var items []Item
	for !p.atEnd() {
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		if item != nil {
			items = append(items, item)
		}
	}
	return items, nil
}

var modifierKeywords = map[string]bool{
	"pub": true, "async": true, "unsafe": true, "extern": true,
	"const": true, "default": true,
}

// parseItem parses one item (attributes, visibility/modifiers, then the
// item keyword dispatch). Returns a nil Item (no error) for a stray `;`.
func (p *Parser) parseItem() (Item, error) {
	attrs, err := p.parseAttributes()
	if err != nil {
		return nil, err
	}

	if p.peek().IsPunct(";") {
		p.next()
		return nil, nil
	}

	// visibility: pub, pub(crate), pub(in path), pub(super)
	if p.peek().IsIdent("pub") {
		p.next()
		if g := p.peek(); g.Group != nil && g.Group.Delim == Paren {
			p.next()
		}
	}

	// skip modifier keywords (async fn, unsafe fn, extern "C" fn, const fn)
	for {
		tt := p.peek()
		if tt.IsIdent("extern") {
			p.next()
			if p.peek().Leaf != nil && (p.peek().Leaf.Kind == Str || p.peek().Leaf.Kind == RawStr) {
				p.next()
			}
			// `extern crate ...;` is handled separately below; if the next
			// token is "crate" this was actually that form.
			if p.peek().IsIdent("crate") {
				return p.parseExternCrate(attrs)
			}
			continue
		}
		if tt.Leaf != nil && tt.Leaf.Kind == Ident && modifierKeywords[tt.Leaf.Text] && tt.Leaf.Text != "extern" {
			// don't consume "const" if it's actually `const NAME: T = ...;`
			// followed by an identifier then `:`/`=` rather than `fn`.
			if tt.Leaf.Text == "const" && !p.nextIsKeyword(1, "fn") && !p.nextIsKeyword(1, "unsafe") {
				break
			}
			p.next()
			continue
		}
		break
	}

	kw := p.peek()
	if kw.Leaf == nil || kw.Leaf.Kind != Ident {
		// unrecognized item-starting shape; consume one tree to make progress
		// and fold it into an opaque run so callers don't infinite-loop.
		var toks []TokenTree
		if !p.atEnd() {
			toks = append(toks, p.next())
		}
		return &OpaqueItem{base: base{Attrs: attrs}, Tokens: toks}, nil
	}

	switch kw.Leaf.Text {
	case "use":
		p.next()
		return p.parseUse(attrs)
	case "mod":
		p.next()
		return p.parseMod(attrs)
	case "fn":
		p.next()
		return p.parseFn(attrs)
	case "macro_rules":
		if p.peekN(1).IsPunct("!") {
			p.next()
			p.next()
			return p.parseMacroRules(attrs)
		}
	case "struct":
		p.next()
		return p.parseStruct(attrs)
	case "enum":
		p.next()
		return p.parseEnum(attrs)
	case "type":
		p.next()
		return p.parseType(attrs)
	case "extern":
		p.next()
		return p.parseExternCrate(attrs)
	}

	// Could be a macro invocation at item position: `path::to::macro! {...}`
	// or `path!(...)​;`.
	if item := p.tryParseMacroCallItem(attrs); item != nil {
		return item, nil
	}

	// trait/impl/const/static/union and anything else: skip the header and
	// retain the body (if braced) as opaque tokens.
	p.next() // the keyword itself
	group, header := p.skipToSemiOrBrace()
	var toks []TokenTree
	toks = append(toks, header...)
	if group != nil {
		toks = append(toks, TokenTree{Group: group})
	}
	return &OpaqueItem{base: base{Attrs: attrs}, Tokens: toks}, nil
}

// nextIsKeyword checks whether the tree at offset n from the cursor is the
// identifier kw, used for const-fn lookahead disambiguation.
func (p *Parser) nextIsKeyword(n int, kw string) bool {
	return p.peekN(n).IsIdent(kw)
}

func (p *Parser) tryParseMacroCallItem(attrs []Attribute) Item {
	save := p.i
	var path []Token
	for {
		tt := p.peek()
		if tt.Leaf == nil || tt.Leaf.Kind != Ident {
			break
		}
		path = append(path, *tt.Leaf)
		p.next()
		if p.peek().IsPunct("::") {
			p.next()
			continue
		}
		break
	}
	if len(path) == 0 || !p.peek().IsPunct("!") {
		p.i = save
		return nil
	}
	p.next() // '!'
	if p.peek().IsIdent("") {
		// macro_rules-style named macro invocation `name! ident { ... }`; rare
		// at item position other than macro_rules (handled earlier), skip name.
	}
	g := p.peek()
	if g.Group == nil {
		p.i = save
		return nil
	}
	p.next()
	if g.Group.Delim != Brace {
		if !p.peek().IsPunct(";") {
			p.i = save
			return nil
		}
		p.next()
	}
	return &MacroCallItem{base: base{Attrs: attrs}, Path: path, Group: g.Group}
}

// parseAttributes consumes a run of `#[...]` / `#![...]` attributes.
func (p *Parser) parseAttributes() ([]Attribute, error) {
	var attrs []Attribute
	for p.peek().IsPunct("#") {
		p.next()
		if p.peek().IsPunct("!") {
			p.next()
		}
		g := p.peek()
		if g.Group == nil || g.Group.Delim != Bracket {
			return nil, fmt.Errorf("expected [...] after #, got %v", g)
		}
		p.next()
		meta, err := parseMetaSingleStrict(g.Group.Tokens)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, Attribute{Meta: meta})
	}
	return attrs, nil
}

func (p *Parser) parseExternCrate(attrs []Attribute) (Item, error) {
	if err := p.expectIdent("crate"); err != nil {
		return nil, err
	}
	if p.peek().Leaf == nil || p.peek().Leaf.Kind != Ident {
		return nil, fmt.Errorf("expected crate name, got %v", p.peek())
	}
	name := *p.next().Leaf
	if p.peek().IsIdent("as") {
		p.next()
		if p.peek().Leaf != nil && p.peek().Leaf.Kind == Ident {
			p.next()
		}
	}
	_ = p.expectPunct(";")
	return &ExternCrateItem{base: base{Attrs: attrs}, Name: name}, nil
}

func (p *Parser) parseUse(attrs []Attribute) (Item, error) {
	tree, err := p.parseUseTree()
	if err != nil {
		return nil, err
	}
	_ = p.expectPunct(";")
	return &UseItem{base: base{Attrs: attrs}, Tree: tree}, nil
}

// parseUseTree mirrors syn::UseTree's recursive grammar.
func (p *Parser) parseUseTree() (UseTree, error) {
	if p.peek().IsPunct("*") {
		p.next()
		return &UseGlob{}, nil
	}
	if g := p.peek(); g.Group != nil && g.Group.Delim == Brace {
		p.next()
		sub := &Parser{trees: g.Group.Tokens}
		var items []UseTree
		for !sub.atEnd() {
			t, err := sub.parseUseTree()
			if err != nil {
				return nil, err
			}
			items = append(items, t)
			if sub.peek().IsPunct(",") {
				sub.next()
			}
		}
		return &UseGroup{Items: items}, nil
	}
	if p.peek().IsIdent("self") {
		ident := *p.next().Leaf
		return &UseName{Ident: ident}, nil
	}
	if p.peek().Leaf == nil || p.peek().Leaf.Kind != Ident {
		return nil, fmt.Errorf("expected use-tree segment, got %v", p.peek())
	}
	ident := *p.next().Leaf
	if p.peek().IsPunct("::") {
		p.next()
		sub, err := p.parseUseTree()
		if err != nil {
			return nil, err
		}
		return &UsePath{Segment: ident, Sub: sub}, nil
	}
	if p.peek().IsIdent("as") {
		p.next()
		if p.peek().Leaf == nil || p.peek().Leaf.Kind != Ident {
			return nil, fmt.Errorf("expected rename target, got %v", p.peek())
		}
		rename := *p.next().Leaf
		return &UseRename{Ident: ident, Rename: rename}, nil
	}
	return &UseName{Ident: ident}, nil
}

func (p *Parser) parseMod(attrs []Attribute) (Item, error) {
	if p.peek().Leaf == nil || p.peek().Leaf.Kind != Ident {
		return nil, fmt.Errorf("expected mod name, got %v", p.peek())
	}
	name := *p.next().Leaf
	if p.peek().IsPunct(";") {
		p.next()
		return &ModItem{base: base{Attrs: attrs}, Name: name, Body: nil}, nil
	}
	g := p.peek()
	if g.Group == nil || g.Group.Delim != Brace {
		return nil, fmt.Errorf("expected mod body or ';', got %v", g)
	}
	p.next()
	body, err := ParseBlock(g.Group.Tokens)
	if err != nil {
		return nil, err
	}
	return &ModItem{base: base{Attrs: attrs}, Name: name, Body: body}, nil
}

func (p *Parser) parseFn(attrs []Attribute) (Item, error) {
	if p.peek().Leaf == nil || p.peek().Leaf.Kind != Ident {
		return nil, fmt.Errorf("expected fn name, got %v", p.peek())
	}
	name := *p.next().Leaf
	// skip generics <...> if present: collected as a sequence of leaves/groups
	// between matching angle brackets isn't tree-structured by our lexer, so
	// approximate by skipping a balanced run of tokens that isn't the
	// parameter list, stopping once we see the parameter group.
	for p.peek().IsPunct("<") {
		depth := 0
		for !p.atEnd() {
			tt := p.next()
			if tt.IsPunct("<") {
				depth++
			} else if tt.IsPunct(">") {
				depth--
				if depth == 0 {
					break
				}
			}
		}
	}
	g := p.peek()
	if g.Group == nil || g.Group.Delim != Paren {
		return nil, fmt.Errorf("expected fn parameter list, got %v", g)
	}
	p.next()
	argTokens := extractParamTypes(g.Group.Tokens)

	var retTokens []TokenTree
	if p.peek().IsPunct("->") {
		p.next()
		for !p.atEnd() && !p.peek().IsPunct(";") {
			if g2 := p.peek(); g2.Group != nil && g2.Group.Delim == Brace {
				break
			}
			retTokens = append(retTokens, p.next())
		}
	}
	// skip `where` clause tokens up to the body/semicolon
	if p.peek().IsIdent("where") {
		p.next()
		for !p.atEnd() && !p.peek().IsPunct(";") {
			if g2 := p.peek(); g2.Group != nil && g2.Group.Delim == Brace {
				break
			}
			p.next()
		}
	}

	if p.peek().IsPunct(";") {
		p.next()
		return &FnItem{base: base{Attrs: attrs}, Name: name, ArgTokens: argTokens, RetTokens: retTokens, Body: nil}, nil
	}
	bg := p.peek()
	if bg.Group == nil || bg.Group.Delim != Brace {
		return nil, fmt.Errorf("expected fn body, got %v", bg)
	}
	p.next()
	body, err := ParseBlock(bg.Group.Tokens)
	if err != nil {
		return nil, err
	}
	return &FnItem{base: base{Attrs: attrs}, Name: name, ArgTokens: argTokens, RetTokens: retTokens, Body: body}, nil
}

// extractParamTypes returns the concatenation of each parameter's type
// tokens (the part after a top-level `:`), skipping `self`/`&self`/`&mut self`.
func extractParamTypes(params []TokenTree) []TokenTree {
	var out []TokenTree
	var cur []TokenTree
	depth := 0
	seenColon := false
	flush := func() {
		if seenColon {
			out = append(out, cur...)
		}
		cur = nil
		seenColon = false
	}
	for _, tt := range params {
		if tt.IsPunct(",") && depth == 0 {
			flush()
			continue
		}
		if tt.IsPunct(":") && depth == 0 && !seenColon {
			seenColon = true
			continue
		}
		if seenColon {
			cur = append(cur, tt)
		}
	}
	flush()
	return out
}

func (p *Parser) parseMacroRules(attrs []Attribute) (Item, error) {
	if p.peek().Leaf == nil || p.peek().Leaf.Kind != Ident {
		return nil, fmt.Errorf("expected macro_rules name, got %v", p.peek())
	}
	name := *p.next().Leaf
	g := p.peek()
	if g.Group == nil {
		return nil, fmt.Errorf("expected macro_rules body, got %v", g)
	}
	p.next()
	if g.Group.Delim == Paren || g.Group.Delim == Bracket {
		_ = p.expectPunct(";")
	}
	return &MacroRulesItem{base: base{Attrs: attrs}, Name: name}, nil
}

func (p *Parser) parseStruct(attrs []Attribute) (Item, error) {
	if p.peek().Leaf == nil || p.peek().Leaf.Kind != Ident {
		return nil, fmt.Errorf("expected struct name, got %v", p.peek())
	}
	name := *p.next().Leaf
	p.skipGenericsAndWhere()
	if p.peek().IsPunct(";") {
		p.next()
	} else if g := p.peek(); g.Group != nil && (g.Group.Delim == Brace || g.Group.Delim == Paren) {
		p.next()
		if g.Group.Delim == Paren {
			_ = p.expectPunct(";")
		}
	}
	return &StructItem{base: base{Attrs: attrs}, Name: name}, nil
}

func (p *Parser) parseEnum(attrs []Attribute) (Item, error) {
	if p.peek().Leaf == nil || p.peek().Leaf.Kind != Ident {
		return nil, fmt.Errorf("expected enum name, got %v", p.peek())
	}
	name := *p.next().Leaf
	p.skipGenericsAndWhere()
	if g := p.peek(); g.Group != nil && g.Group.Delim == Brace {
		p.next()
	}
	return &EnumItem{base: base{Attrs: attrs}, Name: name}, nil
}

func (p *Parser) parseType(attrs []Attribute) (Item, error) {
	if p.peek().Leaf == nil || p.peek().Leaf.Kind != Ident {
		return nil, fmt.Errorf("expected type name, got %v", p.peek())
	}
	name := *p.next().Leaf
	p.skipGenericsAndWhere()
	var value []TokenTree
	if p.peek().IsPunct("=") {
		p.next()
		for !p.atEnd() && !p.peek().IsPunct(";") {
			value = append(value, p.next())
		}
	}
	_ = p.expectPunct(";")
	return &TypeItem{base: base{Attrs: attrs}, Name: name, Value: value}, nil
}

func (p *Parser) skipGenericsAndWhere() {
	if p.peek().IsPunct("<") {
		depth := 0
		for !p.atEnd() {
			tt := p.next()
			if tt.IsPunct("<") {
				depth++
			} else if tt.IsPunct(">") {
				depth--
				if depth == 0 {
					break
				}
			}
		}
	}
	if p.peek().IsIdent("where") {
		p.next()
		for !p.atEnd() {
			if p.peek().IsPunct(";") {
				break
			}
			if g := p.peek(); g.Group != nil && g.Group.Delim == Brace {
				break
			}
			p.next()
		}
	}
}

// ParseBlock parses trees (typically the contents of a brace-delimited
// Group) as a block body: a sequence of items interleaved with opaque
// statement token runs. Exported so callers outside this package (the
// macro/block scanner) can reparse a nested brace group discovered inside
// an otherwise-opaque statement run as its own nested scope.
func ParseBlock(trees []TokenTree) (*Block, error) {
	p := &Parser{trees: trees}
	var elems []BlockElement
	for !p.atEnd() {
		if looksLikeItemStart(p) {
			save := p.i
			item, err := p.parseItem()
			if err != nil {
				// fall back to treating it as a statement if item parsing fails,
				// matching the lossy, best-effort posture of the rest of the
				// scanner.
				p.i = save
				stmt := p.consumeStatement()
				elems = append(elems, BlockElement{Stmt: stmt})
				continue
			}
			if item != nil {
				elems = append(elems, BlockElement{Item: item})
			}
			continue
		}
		stmt := p.consumeStatement()
		if len(stmt) > 0 {
			elems = append(elems, BlockElement{Stmt: stmt})
		}
	}
	return &Block{Elements: elems}, nil
}

var itemKeywords = map[string]bool{
	"use": true, "mod": true, "fn": true, "struct": true, "enum": true,
	"type": true, "trait": true, "impl": true, "const": true, "static": true,
	"union": true, "extern": true, "macro_rules": true,
}

// looksLikeItemStart reports whether the parser's cursor is positioned at
// an attribute, visibility modifier, or item keyword, as opposed to an
// expression-statement.
func looksLikeItemStart(p *Parser) bool {
	save := p.i
	defer func() { p.i = save }()
	if p.peek().IsPunct("#") {
		return true
	}
	if p.peek().IsIdent("pub") {
		return true
	}
	for {
		tt := p.peek()
		if tt.Leaf == nil || tt.Leaf.Kind != Ident {
			break
		}
		if itemKeywords[tt.Leaf.Text] {
			return true
		}
		if modifierKeywords[tt.Leaf.Text] {
			p.next()
			continue
		}
		break
	}
	return false
}

// consumeStatement consumes tokens up to and including the next top-level
// `;`, or a single top-level `{...}` block statement, or to end of input.
func (p *Parser) consumeStatement() []TokenTree {
	var out []TokenTree
	if g := p.peek(); g.Group != nil && g.Group.Delim == Brace {
		out = append(out, p.next())
		return out
	}
	for !p.atEnd() {
		tt := p.next()
		out = append(out, tt)
		if tt.IsPunct(";") {
			break
		}
		if tt.Group != nil && tt.Group.Delim == Brace {
			break
		}
	}
	return out
}

// parseMetaSingleStrict parses trees as exactly one Meta, erroring if
// anything is left over. Used for the content of a #[...] attribute,
// which always holds exactly one meta item.
func parseMetaSingleStrict(trees []TokenTree) (Meta, error) {
	m, ok := parseMetaSingle(trees)
	if !ok {
		return Meta{}, fmt.Errorf("not a single valid attribute meta")
	}
	return m, nil
}

// parseMetaSingle attempts to parse trees as exactly one Meta (path,
// name-value, or list), returning ok=false if trees don't fully reduce to
// one, mirroring syn::Meta::parse's all-or-nothing behavior relied on by
// cfg_enabled's "malformed cfg is silently non-gating" path.
func parseMetaSingle(trees []TokenTree) (Meta, bool) {
	i := 0
	var segs []Token
	for i < len(trees) {
		tt := trees[i]
		if tt.Leaf == nil || tt.Leaf.Kind != Ident {
			break
		}
		segs = append(segs, *tt.Leaf)
		i++
		if i < len(trees) && trees[i].IsPunct("::") {
			i++
			continue
		}
		break
	}
	if len(segs) == 0 {
		return Meta{}, false
	}
	if i == len(trees) {
		return Meta{Segments: segs, Kind: MetaPath}, true
	}
	if trees[i].IsPunct("=") {
		i++
		if i >= len(trees) {
			return Meta{}, false
		}
		valTree := trees[i]
		i++
		if i != len(trees) || valTree.Leaf == nil {
			return Meta{}, false
		}
		v := *valTree.Leaf
		return Meta{Segments: segs, Kind: MetaNameValue, Value: &v}, true
	}
	if trees[i].Group != nil && (trees[i].Group.Delim == Paren || trees[i].Group.Delim == Bracket) {
		g := trees[i].Group
		i++
		if i != len(trees) {
			return Meta{}, false
		}
		return Meta{Segments: segs, Kind: MetaList, ListTokens: g.Tokens}, true
	}
	return Meta{}, false
}

// SplitMetaList splits list tokens (the inner content of a Meta's List
// form) on top-level commas into individual Metas. ok is false if any
// comma-separated segment fails to parse as a single Meta, matching the
// original's all-or-nothing Punctuated<Meta, Comma> parse used for
// derive(...) and cfg_attr(...) argument lists.
func SplitMetaList(trees []TokenTree) ([]Meta, bool) {
	var groups [][]TokenTree
	var cur []TokenTree
	for _, tt := range trees {
		if tt.IsPunct(",") {
			groups = append(groups, cur)
			cur = nil
			continue
		}
		cur = append(cur, tt)
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	var metas []Meta
	for _, g := range groups {
		m, ok := parseMetaSingle(g)
		if !ok {
			return nil, false
		}
		metas = append(metas, m)
	}
	return metas, true
}

// ParseMetaSingle exposes parseMetaSingle for use by the cfgexpr and attrs
// packages, which need to reinterpret a cfg(...) list's tokens as one
// nested Meta.
func ParseMetaSingle(trees []TokenTree) (Meta, bool) { return parseMetaSingle(trees) }
