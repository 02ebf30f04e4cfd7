package macroscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazel-contrib/rust-import-analyzer/internal/rustsrc"
)

func mustTrees(t *testing.T, src string) []rustsrc.TokenTree {
	t.Helper()
	toks, err := rustsrc.Tokenize(src)
	require.NoError(t, err)
	trees, err := rustsrc.BuildTokenTrees(toks[:len(toks)-1])
	require.NoError(t, err)
	return trees
}

func newCtx() (*Context, *[]string) {
	var got []string
	ctx := &Context{
		AddImport:   func(name string) { got = append(got, name) },
		CompileData: map[string]struct{}{},
	}
	return ctx, &got
}

func TestScanSimplePathCall(t *testing.T) {
	ctx, got := newCtx()
	err := Scan(mustTrees(t, `foo::bar::baz()`), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, *got)
}

func TestScanSingleSegmentPathIsNotAnImport(t *testing.T) {
	ctx, got := newCtx()
	err := Scan(mustTrees(t, `local_fn()`), ctx)
	require.NoError(t, err)
	assert.Empty(t, *got)
}

func TestScanNestedMacroInvocation(t *testing.T) {
	ctx, got := newCtx()
	err := Scan(mustTrees(t, `outer::mac!(inner::thing())`), ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"outer", "inner"}, *got)
}

func TestScanCommaSplitTopLevelArgs(t *testing.T) {
	ctx, got := newCtx()
	err := Scan(mustTrees(t, `a::b(), c::d(), e::f()`), ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "c", "e"}, *got)
}

func TestScanSkipsLeadingNonIdentNoise(t *testing.T) {
	ctx, got := newCtx()
	err := Scan(mustTrees(t, `&x::y::z`), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, *got)
}

func TestScanDescendsIntoGroups(t *testing.T) {
	ctx, got := newCtx()
	err := Scan(mustTrees(t, `(a::b(), c::d())`), ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "c"}, *got)
}

func TestScanIncludeStrRecordsCompileData(t *testing.T) {
	ctx, _ := newCtx()
	ctx.ContainingDir = "src"
	err := Scan(mustTrees(t, `include_str!("data/foo.txt")`), ctx)
	require.NoError(t, err)
	_, ok := ctx.CompileData["src/data/foo.txt"]
	assert.True(t, ok)
}

func TestScanIncludeStrNormalizesDotDot(t *testing.T) {
	ctx, _ := newCtx()
	ctx.ContainingDir = "src/sub"
	err := Scan(mustTrees(t, `include_bytes!("../data/foo.bin")`), ctx)
	require.NoError(t, err)
	_, ok := ctx.CompileData["src/data/foo.bin"]
	assert.True(t, ok)
}

func TestScanIncludeStrAbsolutePathIsHardError(t *testing.T) {
	ctx, _ := newCtx()
	err := Scan(mustTrees(t, `include_str!("/etc/passwd")`), ctx)
	require.Error(t, err)
	var absErr *AbsoluteIncludeError
	assert.ErrorAs(t, err, &absErr)
}

func TestScanIncludeStrSuppressedInIgnoredScope(t *testing.T) {
	ctx, _ := newCtx()
	ctx.IgnoredScope = true
	err := Scan(mustTrees(t, `include_str!("data/foo.txt")`), ctx)
	require.NoError(t, err)
	assert.Empty(t, ctx.CompileData)
}
