package protocol

import (
	"bufio"
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/bazel-contrib/rust-import-analyzer/internal/cfgexpr"
)

func wrapAsLockfileCratesField(sub []byte) []byte {
	return appendMessageField(nil, 2, sub)
}

func wrapAsCargoTomlField(sub []byte) []byte {
	return appendMessageField(nil, 3, sub)
}

func TestServerRunAbortsOnMissingLockfilePath(t *testing.T) {
	req := wrapAsLockfileCratesField(appendStringField(nil, 1, filepath.Join(t.TempDir(), "missing.lock")))
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, WriteFrame(w, req))

	s := NewServer(bytes.NewReader(buf.Bytes()), &bytes.Buffer{}, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	err := s.Run()
	require.Error(t, err)
}

func TestServerRunAbortsOnMissingManifestPath(t *testing.T) {
	req := wrapAsCargoTomlField(appendStringField(nil, 1, filepath.Join(t.TempDir(), "missing", "Cargo.toml")))
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, WriteFrame(w, req))

	s := NewServer(bytes.NewReader(buf.Bytes()), &bytes.Buffer{}, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	err := s.Run()
	require.Error(t, err)
}

func TestServerRunAbortsOnEmptyCfgAllPredicate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.rs")
	require.NoError(t, os.WriteFile(path, []byte("#[cfg(all())]\nuse shared;\n"), 0o644))

	var b []byte
	b = appendStringField(b, 1, path)
	req := wrapAsRustImportsField(b)

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, WriteFrame(w, req))

	s := NewServer(bytes.NewReader(buf.Bytes()), &bytes.Buffer{}, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	err := s.Run()
	require.Error(t, err)
}

func TestServerRunRecoversFromMissingSourceFile(t *testing.T) {
	var b []byte
	b = appendStringField(b, 1, filepath.Join(t.TempDir(), "missing.rs"))
	req := wrapAsRustImportsField(b)

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, WriteFrame(w, req))

	var out bytes.Buffer
	s := NewServer(bytes.NewReader(buf.Bytes()), &out, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, s.Run())

	wr := bufio.NewReader(&out)
	body, err := ReadFrame(wr)
	require.NoError(t, err)

	var gotSuccess bool
	require.NoError(t, forEachField(body, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		if num == 1 {
			gotSuccess = scalar != 0
		}
		return nil
	}))
	assert.False(t, gotSuccess)
}

func TestBExprRoundTripsThroughWire(t *testing.T) {
	original := cfgexpr.NewAnd(
		cfgexpr.NewAtom(cfgexpr.Atom{Value: "unix"}),
		cfgexpr.NewNot(cfgexpr.NewAtom(cfgexpr.Atom{HasKey: true, Key: "feature", Value: "foo"})),
		cfgexpr.NewOr(
			cfgexpr.NewConst(true),
			cfgexpr.NewAtom(cfgexpr.Atom{Value: "test"}),
		),
	)

	encoded := marshalBExpr(original)
	decoded, err := unmarshalBExpr(encoded)
	require.NoError(t, err)

	if diff := cmp.Diff(cfgexpr.Simplify(original), cfgexpr.Simplify(decoded)); diff != "" {
		t.Errorf("BExpr round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRustImportsRequestRoundTrips(t *testing.T) {
	var b []byte
	b = appendStringField(b, 1, "src/lib.rs")
	b = appendStringSlice(b, 2, []string{"foo", "bar"})
	b = appendStringField(b, 3, "crate/src/lib.rs")

	req, err := UnmarshalRequest(wrapAsRustImportsField(b))
	require.NoError(t, err)
	require.NotNil(t, req.RustImports)
	assert.Equal(t, "src/lib.rs", req.RustImports.FilePath)
	assert.Equal(t, []string{"foo", "bar"}, req.RustImports.EnabledFeatures)
	assert.Equal(t, "crate/src/lib.rs", req.RustImports.RelativePath)
}

func wrapAsRustImportsField(sub []byte) []byte {
	return appendMessageField(nil, 1, sub)
}

func TestFrameRoundTrip(t *testing.T) {
	var out bytes.Buffer
	w := bufio.NewWriter(&out)
	require.NoError(t, WriteFrame(w, []byte("hello")))

	r := bufio.NewReader(&out)
	body, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), body)
}

func TestReadFrameCleanEOF(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader(nil))
	_, err := ReadFrame(r)
	require.Error(t, err)
}

func TestRustImportsResponseMarshalsEachImport(t *testing.T) {
	resp := &RustImportsResponse{
		Success: true,
		Imports: []string{"serde", "syn"},
	}
	encoded := resp.Marshal()

	var gotSuccess bool
	var gotImports []string
	err := forEachField(encoded, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case 1:
			gotSuccess = scalar != 0
		case 4:
			gotImports = append(gotImports, string(v))
		}
		return nil
	})
	require.NoError(t, err)
	assert.True(t, gotSuccess)
	assert.Equal(t, []string{"serde", "syn"}, gotImports)
}
