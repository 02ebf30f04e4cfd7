// Package protocol implements the Request Server's wire format: every
// message is hand-encoded with the protobuf wire format via
// google.golang.org/protobuf/encoding/protowire, without a .proto/protoc
// step, and a single-threaded length-prefixed stdio loop dispatches each
// decoded Request to the engine.
package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/bazel-contrib/rust-import-analyzer/internal/cfgexpr"
	"github.com/bazel-contrib/rust-import-analyzer/internal/lockfile"
	"github.com/bazel-contrib/rust-import-analyzer/internal/manifest"
)

// Hints mirrors importer.Hints on the wire.
type Hints struct {
	HasMain      bool
	HasTest      bool
	HasProcMacro bool
}

func (h *Hints) marshal() []byte {
	var b []byte
	b = appendBoolField(b, 1, h.HasMain)
	b = appendBoolField(b, 2, h.HasTest)
	b = appendBoolField(b, 3, h.HasProcMacro)
	return b
}

func unmarshalHints(data []byte) (*Hints, error) {
	h := &Hints{}
	return h, forEachField(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case 1:
			h.HasMain = scalar != 0
		case 2:
			h.HasTest = scalar != 0
		case 3:
			h.HasProcMacro = scalar != 0
		}
		return nil
	})
}

// RustImportsRequest asks the server to compute imports for one file.
type RustImportsRequest struct {
	FilePath        string
	EnabledFeatures []string
	RelativePath    string
}

func unmarshalRustImportsRequest(data []byte) (*RustImportsRequest, error) {
	r := &RustImportsRequest{}
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case 1:
			r.FilePath = string(v)
		case 2:
			r.EnabledFeatures = append(r.EnabledFeatures, string(v))
		case 3:
			r.RelativePath = string(v)
		}
		return nil
	})
	return r, err
}

// RustImportsResponse is the result of walking one file.
type RustImportsResponse struct {
	Success     bool
	ErrorMsg    string
	Hints       Hints
	Imports     []string
	TestImports []string
	ExternMods  []string
	CompileData []string
}

func (r *RustImportsResponse) Marshal() []byte {
	var b []byte
	b = appendBoolField(b, 1, r.Success)
	b = appendStringField(b, 2, r.ErrorMsg)
	b = appendMessageField(b, 3, r.Hints.marshal())
	b = appendStringSlice(b, 4, r.Imports)
	b = appendStringSlice(b, 5, r.TestImports)
	b = appendStringSlice(b, 6, r.ExternMods)
	b = appendStringSlice(b, 7, r.CompileData)
	return b
}

// LockfileCratesRequest carries exactly one of the two lockfile shapes.
type LockfileCratesRequest struct {
	LockfilePath      string
	CargoLockfilePath string
}

func unmarshalLockfileCratesRequest(data []byte) (*LockfileCratesRequest, error) {
	r := &LockfileCratesRequest{}
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case 1:
			r.LockfilePath = string(v)
		case 2:
			r.CargoLockfilePath = string(v)
		}
		return nil
	})
	return r, err
}

// PackageDependency mirrors lockfile.PackageDependency on the wire.
type PackageDependency struct {
	Name    string
	Version string
}

func marshalPackageDependency(d lockfile.PackageDependency) []byte {
	var b []byte
	b = appendStringField(b, 1, d.Name)
	b = appendStringField(b, 2, d.Version)
	return b
}

// Package mirrors lockfile.Package on the wire.
func marshalPackage(p lockfile.Package) []byte {
	var b []byte
	b = appendStringField(b, 1, p.Name)
	b = appendStringField(b, 2, p.CrateName)
	b = appendBoolField(b, 3, p.ProcMacro)
	b = appendStringField(b, 4, p.Version)
	b = appendBoolField(b, 5, p.WorkspaceMember)
	for _, d := range p.Dependencies {
		b = appendMessageField(b, 6, marshalPackageDependency(d))
	}
	return b
}

// LockfileCratesResponse carries the resolved crate list.
type LockfileCratesResponse struct {
	Crates []lockfile.Package
}

func (r *LockfileCratesResponse) Marshal() []byte {
	var b []byte
	for _, c := range r.Crates {
		b = appendMessageField(b, 1, marshalPackage(c))
	}
	return b
}

// CargoTomlRequest asks the server to catalog a Cargo.toml's targets.
type CargoTomlRequest struct {
	FilePath string
}

func unmarshalCargoTomlRequest(data []byte) (*CargoTomlRequest, error) {
	r := &CargoTomlRequest{}
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		if num == 1 {
			r.FilePath = string(v)
		}
		return nil
	})
	return r, err
}

func marshalCrateInfo(c manifest.CrateInfo) []byte {
	var b []byte
	b = appendStringField(b, 1, c.Name)
	b = appendStringSlice(b, 2, c.Srcs)
	b = appendBoolField(b, 3, c.ProcMacro)
	return b
}

// CargoTomlResponse is the catalogued manifest.
type CargoTomlResponse struct {
	Success  bool
	Name     string
	Library  *manifest.CrateInfo
	Binaries []manifest.CrateInfo
	Tests    []manifest.CrateInfo
	Benches  []manifest.CrateInfo
	Examples []manifest.CrateInfo
	ErrorMsg string
}

func (r *CargoTomlResponse) Marshal() []byte {
	var b []byte
	b = appendBoolField(b, 1, r.Success)
	b = appendStringField(b, 2, r.Name)
	if r.Library != nil {
		b = appendMessageField(b, 3, marshalCrateInfo(*r.Library))
	}
	for _, c := range r.Binaries {
		b = appendMessageField(b, 4, marshalCrateInfo(c))
	}
	for _, c := range r.Tests {
		b = appendMessageField(b, 5, marshalCrateInfo(c))
	}
	for _, c := range r.Benches {
		b = appendMessageField(b, 6, marshalCrateInfo(c))
	}
	for _, c := range r.Examples {
		b = appendMessageField(b, 7, marshalCrateInfo(c))
	}
	b = appendStringField(b, 8, r.ErrorMsg)
	return b
}

// SimplifyBExprRequest/Response round-trip a predicate through the
// canonical simplifier, letting a Gazelle-side consumer merge its own
// multi-file predicates without re-implementing the BDD.
type SimplifyBExprRequest struct {
	BExpr *cfgexpr.BExpr
}

func unmarshalSimplifyBExprRequest(data []byte) (*SimplifyBExprRequest, error) {
	r := &SimplifyBExprRequest{}
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		if num == 1 {
			e, err := unmarshalBExpr(v)
			if err != nil {
				return err
			}
			r.BExpr = e
		}
		return nil
	})
	return r, err
}

type SimplifyBExprResponse struct {
	BExpr *cfgexpr.BExpr
}

func (r *SimplifyBExprResponse) Marshal() []byte {
	var b []byte
	if r.BExpr != nil {
		b = appendMessageField(b, 1, marshalBExpr(r.BExpr))
	}
	return b
}

// Request is the top-level oneof the server reads off stdin.
type Request struct {
	RustImports     *RustImportsRequest
	LockfileCrates  *LockfileCratesRequest
	CargoToml       *CargoTomlRequest
	SimplifyBExpr   *SimplifyBExprRequest
}

func UnmarshalRequest(data []byte) (*Request, error) {
	r := &Request{}
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case 1:
			sub, err := unmarshalRustImportsRequest(v)
			if err != nil {
				return err
			}
			r.RustImports = sub
		case 2:
			sub, err := unmarshalLockfileCratesRequest(v)
			if err != nil {
				return err
			}
			r.LockfileCrates = sub
		case 3:
			sub, err := unmarshalCargoTomlRequest(v)
			if err != nil {
				return err
			}
			r.CargoToml = sub
		case 4:
			sub, err := unmarshalSimplifyBExprRequest(v)
			if err != nil {
				return err
			}
			r.SimplifyBExpr = sub
		}
		return nil
	})
	return r, err
}

// marshalBExpr/unmarshalBExpr encode cfgexpr.BExpr's recursive union:
// field 1 = atom (submessage), 2 = constant (bool), 3 = not (submessage),
// 4 = and (repeated submessage), 5 = or (repeated submessage). The atom
// submessage is field 2 = key (only set when the atom is a key/value
// pair), field 3 = value (used for both shapes: a bare option's text, or
// a key/value atom's value); field 1 of the atom is not used.
func marshalBExpr(e *cfgexpr.BExpr) []byte {
	if e == nil {
		return nil
	}
	var b []byte
	switch e.Kind {
	case cfgexpr.KindAtom:
		var atom []byte
		if e.Atom.HasKey {
			atom = appendStringField(atom, 2, e.Atom.Key)
		}
		atom = appendStringField(atom, 3, e.Atom.Value)
		b = appendMessageField(b, 1, atom)
	case cfgexpr.KindConst:
		// Written even when false: an absent field 2 would decode as no
		// expression at all rather than the false constant.
		var v uint64
		if e.Constant {
			v = 1
		}
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, v)
	case cfgexpr.KindNot:
		b = appendMessageField(b, 3, marshalBExpr(e.Operand))
	case cfgexpr.KindAnd:
		for _, o := range e.Operands {
			b = appendMessageField(b, 4, marshalBExpr(o))
		}
	case cfgexpr.KindOr:
		for _, o := range e.Operands {
			b = appendMessageField(b, 5, marshalBExpr(o))
		}
	}
	return b
}

func unmarshalBExpr(data []byte) (*cfgexpr.BExpr, error) {
	var e *cfgexpr.BExpr
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case 1:
			atom := cfgexpr.Atom{}
			if err := forEachField(v, func(n protowire.Number, t protowire.Type, vv []byte, s uint64) error {
				switch n {
				case 2:
					atom.HasKey = true
					atom.Key = string(vv)
				case 3:
					atom.Value = string(vv)
				}
				return nil
			}); err != nil {
				return err
			}
			e = cfgexpr.NewAtom(atom)
		case 2:
			e = cfgexpr.NewConst(scalar != 0)
		case 3:
			inner, err := unmarshalBExpr(v)
			if err != nil {
				return err
			}
			e = cfgexpr.NewNot(inner)
		case 4:
			inner, err := unmarshalBExpr(v)
			if err != nil {
				return err
			}
			if e == nil || e.Kind != cfgexpr.KindAnd {
				e = cfgexpr.NewAnd()
			}
			e.Operands = append(e.Operands, inner)
		case 5:
			inner, err := unmarshalBExpr(v)
			if err != nil {
				return err
			}
			if e == nil || e.Kind != cfgexpr.KindOr {
				e = cfgexpr.NewOr()
			}
			e.Operands = append(e.Operands, inner)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshaling BExpr: %w", err)
	}
	return e, nil
}
