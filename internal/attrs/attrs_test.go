package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazel-contrib/rust-import-analyzer/internal/cfgexpr"
	"github.com/bazel-contrib/rust-import-analyzer/internal/rustsrc"
)

func parseOneItemAttrs(t *testing.T, src string) []rustsrc.Attribute {
	t.Helper()
	f, err := rustsrc.ParseFile(src)
	require.NoError(t, err)
	require.Len(t, f.Items, 1)
	return f.Items[0].Attributes()
}

func mustEnabled(t *testing.T, attrs []rustsrc.Attribute, enabledFeatures map[string]bool) bool {
	t.Helper()
	enabled, err := Enabled(attrs, enabledFeatures)
	require.NoError(t, err)
	return enabled
}

func TestEnabledBareFeature(t *testing.T) {
	attrs := parseOneItemAttrs(t, `#[cfg(feature = "foo")] use foo;`)
	assert.False(t, mustEnabled(t, attrs, nil))
	assert.True(t, mustEnabled(t, attrs, map[string]bool{"foo": true}))
}

func TestEnabledUnknownOptionDefaultsTrue(t *testing.T) {
	attrs := parseOneItemAttrs(t, `#[cfg(unix)] use foo;`)
	assert.True(t, mustEnabled(t, attrs, nil))
}

func TestEnabledAllAnyNot(t *testing.T) {
	attrs := parseOneItemAttrs(t, `#[cfg(all(feature = "a", not(feature = "b")))] use foo;`)
	assert.True(t, mustEnabled(t, attrs, map[string]bool{"a": true}))
	assert.False(t, mustEnabled(t, attrs, map[string]bool{"a": true, "b": true}))
	assert.False(t, mustEnabled(t, attrs, nil))
}

func TestEnabledMalformedCfgDoesNotGate(t *testing.T) {
	attrs := parseOneItemAttrs(t, `#[cfg(feature = "baz", "bar")] use baz;`)
	assert.True(t, mustEnabled(t, attrs, nil))
}

func TestEnabledMultipleCfgAttributesConjoin(t *testing.T) {
	attrs := parseOneItemAttrs(t, `
#[cfg(feature = "a")]
#[cfg(feature = "b")]
use foo;
`)
	assert.False(t, mustEnabled(t, attrs, map[string]bool{"a": true}))
	assert.True(t, mustEnabled(t, attrs, map[string]bool{"a": true, "b": true}))
}

func TestEnabledEmptyAllIsFatal(t *testing.T) {
	attrs := parseOneItemAttrs(t, `#[cfg(all())] use foo;`)
	_, err := Enabled(attrs, nil)
	require.Error(t, err)
	var emptyList *EmptyCfgListError
	require.ErrorAs(t, err, &emptyList)
	assert.Equal(t, "all", emptyList.Form)
}

func TestEnabledEmptyAnyIsFatal(t *testing.T) {
	attrs := parseOneItemAttrs(t, `#[cfg(any())] use foo;`)
	_, err := Enabled(attrs, nil)
	require.Error(t, err)
	var emptyList *EmptyCfgListError
	require.ErrorAs(t, err, &emptyList)
	assert.Equal(t, "any", emptyList.Form)
}

func TestPredicateEmptyNestedAllIsFatal(t *testing.T) {
	attrs := parseOneItemAttrs(t, `#[cfg(all(unix, any()))] use foo;`)
	_, err := Predicate(attrs)
	require.Error(t, err)
	var emptyList *EmptyCfgListError
	require.ErrorAs(t, err, &emptyList)
	assert.Equal(t, "any", emptyList.Form)
}

func TestParseDirectivesIgnore(t *testing.T) {
	attrs := parseOneItemAttrs(t, `#[gazelle::ignore] use foo;`)
	ds := ParseDirectives(attrs)
	assert.True(t, ds.ShouldIgnore())
}

func TestParseDirectivesNoneFound(t *testing.T) {
	attrs := parseOneItemAttrs(t, `use foo;`)
	ds := ParseDirectives(attrs)
	assert.False(t, ds.ShouldIgnore())
}

func TestIsTestAttribute(t *testing.T) {
	mk := func(s string) []rustsrc.Token { return []rustsrc.Token{{Kind: rustsrc.Ident, Text: s}} }
	assert.True(t, IsTestAttribute(mk("test")))
	assert.False(t, IsTestAttribute(mk("proc_macro")))
	assert.True(t, IsTestAttribute([]rustsrc.Token{
		{Kind: rustsrc.Ident, Text: "tokio"}, {Kind: rustsrc.Ident, Text: "test"},
	}))
}

func TestDeriveSegments(t *testing.T) {
	attrs := parseOneItemAttrs(t, `#[derive(Debug, serde::Serialize)] struct S;`)
	metas, ok := DeriveSegments(attrs[0].Meta)
	require.True(t, ok)
	require.Len(t, metas, 2)
	assert.Equal(t, "Debug", metas[0].LastSegment())
	assert.Equal(t, "serde", metas[1].FirstSegment())
}

func TestCfgAttrInner(t *testing.T) {
	attrs := parseOneItemAttrs(t, `#[cfg_attr(test, derive(Debug))] struct S;`)
	pred, inner, ok, err := CfgAttrInner(attrs[0].Meta)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cfgexpr.KindAtom, pred.Kind)
	assert.Equal(t, "test", pred.Atom.Value)
	assert.Equal(t, "derive", inner.FirstSegment())
}

func TestCfgAttrInnerEmptyAllIsFatal(t *testing.T) {
	attrs := parseOneItemAttrs(t, `#[cfg_attr(all(), derive(Debug))] struct S;`)
	_, _, _, err := CfgAttrInner(attrs[0].Meta)
	require.Error(t, err)
	var emptyList *EmptyCfgListError
	require.ErrorAs(t, err, &emptyList)
	assert.Equal(t, "all", emptyList.Form)
}
