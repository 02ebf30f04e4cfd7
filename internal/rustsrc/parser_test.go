package rustsrc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeBasic(t *testing.T) {
	toks, err := Tokenize(`use foo::bar; // trailing comment
	/* block */ let x = 1;`)
	require.NoError(t, err)
	require.NotEmpty(t, toks)
	assert.Equal(t, EOF, toks[len(toks)-1].Kind)

	var texts []string
	for _, tok := range toks {
		if tok.Kind != EOF {
			texts = append(texts, tok.Text)
		}
	}
	assert.Equal(t, []string{"use", "foo", "::", "bar", ";", "let", "x", "=", "1", ";"}, texts)
}

func TestTokenizeRawIdentAndString(t *testing.T) {
	toks, err := Tokenize(`r#type r"raw\nstring" r#"nested "quotes""#`)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(toks), 3)
	assert.Equal(t, Ident, toks[0].Kind)
	assert.Equal(t, "type", toks[0].Text)
	assert.True(t, toks[0].Raw)
	assert.Equal(t, RawStr, toks[1].Kind)
	assert.Equal(t, `raw\nstring`, toks[1].Text)
	assert.Equal(t, RawStr, toks[2].Kind)
	assert.Equal(t, `nested "quotes"`, toks[2].Text)
}

func TestTokenizeLifetimeVsChar(t *testing.T) {
	toks, err := Tokenize(`'a 'static 'x'`)
	require.NoError(t, err)
	assert.Equal(t, Lifetime, toks[0].Kind)
	assert.Equal(t, "a", toks[0].Text)
	assert.Equal(t, Lifetime, toks[1].Kind)
	assert.Equal(t, "static", toks[1].Text)
	assert.Equal(t, Char, toks[2].Kind)
}

func TestBuildTokenTreesNesting(t *testing.T) {
	toks, err := Tokenize(`foo(bar, [baz::{self, qux}])`)
	require.NoError(t, err)
	trees, err := BuildTokenTrees(toks[:len(toks)-1])
	require.NoError(t, err)
	require.Len(t, trees, 2)
	assert.True(t, trees[0].IsIdent("foo"))
	require.NotNil(t, trees[1].Group)
	assert.Equal(t, Paren, trees[1].Group.Delim)
}

func TestParseUseTreeShapes(t *testing.T) {
	f, err := ParseFile(`
use std::collections::HashMap;
use std::io::{self, Read, Write as W};
use a::b::*;
`)
	require.NoError(t, err)
	require.Len(t, f.Items, 3)

	u0 := f.Items[0].(*UseItem)
	path, ok := u0.Tree.(*UsePath)
	require.True(t, ok)
	assert.Equal(t, "std", path.Segment.Text)

	u1 := f.Items[1].(*UseItem)
	p1, ok := u1.Tree.(*UsePath)
	require.True(t, ok)
	p2, ok := p1.Sub.(*UsePath)
	require.True(t, ok)
	grp, ok := p2.Sub.(*UseGroup)
	require.True(t, ok)
	require.Len(t, grp.Items, 3)
	_, isSelf := grp.Items[0].(*UseName)
	assert.True(t, isSelf)
	rename, isRename := grp.Items[2].(*UseRename)
	require.True(t, isRename)
	assert.Equal(t, "Write", rename.Ident.Text)
	assert.Equal(t, "W", rename.Rename.Text)

	u2 := f.Items[2].(*UseItem)
	top, ok := u2.Tree.(*UsePath)
	require.True(t, ok)
	next, ok := top.Sub.(*UsePath)
	require.True(t, ok)
	_, isGlob := next.Sub.(*UseGlob)
	assert.True(t, isGlob)
}

func TestParseModWithBodyAndWithoutBody(t *testing.T) {
	f, err := ParseFile(`
mod inline {
	use bb::B;
	fn helper() {}
}
mod external;
`)
	require.NoError(t, err)
	require.Len(t, f.Items, 2)

	m0 := f.Items[0].(*ModItem)
	require.NotNil(t, m0.Body)
	require.Len(t, m0.Body.Elements, 2)
	assert.IsType(t, &UseItem{}, m0.Body.Elements[0].Item)
	assert.IsType(t, &FnItem{}, m0.Body.Elements[1].Item)

	m1 := f.Items[1].(*ModItem)
	assert.Nil(t, m1.Body)
}

func TestParseFnBodyMixesItemsAndStatements(t *testing.T) {
	f, err := ParseFile(`
fn run(x: foo::Bar) -> baz::Result<()> {
	use local::Thing;
	let y = local::Thing::new();
	if true {
		qux::util();
	}
}
`)
	require.NoError(t, err)
	require.Len(t, f.Items, 1)
	fn := f.Items[0].(*FnItem)
	require.NotNil(t, fn.Body)
	assert.IsType(t, &UseItem{}, fn.Body.Elements[0].Item)

	var sawStmt bool
	for _, e := range fn.Body.Elements {
		if e.Item == nil {
			sawStmt = true
		}
	}
	assert.True(t, sawStmt)

	argToks := Flatten(fn.ArgTokens)
	require.NotEmpty(t, argToks)
	assert.Equal(t, "foo", argToks[0].Text)

	retToks := Flatten(fn.RetTokens)
	require.NotEmpty(t, retToks)
	assert.Equal(t, "baz", retToks[0].Text)
}

func TestParseAttributesMetaShapes(t *testing.T) {
	f, err := ParseFile(`
#[cfg(feature = "foo")]
#[derive(Debug, Clone, foo::Trait)]
#[gazelle::ignore]
struct Widget;
`)
	require.NoError(t, err)
	require.Len(t, f.Items, 1)
	s := f.Items[0].(*StructItem)
	require.Len(t, s.Attrs, 3)

	cfgAttr := s.Attrs[0].Meta
	assert.Equal(t, MetaList, cfgAttr.Kind)
	assert.Equal(t, "cfg", cfgAttr.FirstSegment())
	nested, ok := ParseMetaSingle(cfgAttr.ListTokens)
	require.True(t, ok)
	assert.Equal(t, MetaNameValue, nested.Kind)
	assert.Equal(t, "feature", nested.FirstSegment())
	require.NotNil(t, nested.Value)
	assert.Equal(t, "foo", nested.Value.Text)

	deriveAttr := s.Attrs[1].Meta
	metas, ok := SplitMetaList(deriveAttr.ListTokens)
	require.True(t, ok)
	require.Len(t, metas, 3)
	assert.Equal(t, "Debug", metas[0].LastSegment())
	assert.Equal(t, "Trait", metas[2].LastSegment())
	assert.Equal(t, "foo", metas[2].FirstSegment())

	ignoreAttr := s.Attrs[2].Meta
	assert.Equal(t, MetaPath, ignoreAttr.Kind)
	assert.Equal(t, "gazelle", ignoreAttr.FirstSegment())
	assert.Equal(t, "ignore", ignoreAttr.LastSegment())
}

func TestParseMalformedCfgIsNotSingleMeta(t *testing.T) {
	f, err := ParseFile(`
#[cfg(feature = "baz", "bar")]
use baz;
`)
	require.NoError(t, err)
	u := f.Items[0].(*UseItem)
	cfgAttr := u.Attrs[0].Meta
	_, ok := ParseMetaSingle(cfgAttr.ListTokens)
	assert.False(t, ok, "malformed cfg argument should not reduce to a single Meta")
}

func TestParseMacroRulesAndMacroCallItem(t *testing.T) {
	f, err := ParseFile(`
macro_rules! my_macro {
	() => {};
}
lazy_static::lazy_static! {
	static ref X: u32 = 0;
}
`)
	require.NoError(t, err)
	require.Len(t, f.Items, 2)
	assert.IsType(t, &MacroRulesItem{}, f.Items[0])
	call, ok := f.Items[1].(*MacroCallItem)
	require.True(t, ok)
	require.Len(t, call.Path, 2)
	assert.Equal(t, "lazy_static", call.Path[0].Text)
	assert.Equal(t, "lazy_static", call.Path[1].Text)
}

func TestParseExternCrate(t *testing.T) {
	f, err := ParseFile(`extern crate serde as serde_crate;`)
	require.NoError(t, err)
	require.Len(t, f.Items, 1)
	ec := f.Items[0].(*ExternCrateItem)
	assert.Equal(t, "serde", ec.Name.Text)
}

func TestParseTypeItemCapturesValueTokens(t *testing.T) {
	f, err := ParseFile(`type Y = bb::B;`)
	require.NoError(t, err)
	ty := f.Items[0].(*TypeItem)
	toks := Flatten(ty.Value)
	require.NotEmpty(t, toks)
	assert.Equal(t, "bb", toks[0].Text)
	assert.Equal(t, "B", toks[2].Text)
}
