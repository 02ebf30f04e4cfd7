package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bazel-contrib/rust-import-analyzer/internal/attrs"
	"github.com/bazel-contrib/rust-import-analyzer/internal/cfgexpr"
	"github.com/bazel-contrib/rust-import-analyzer/internal/importer"
	"github.com/bazel-contrib/rust-import-analyzer/internal/lockfile"
	"github.com/bazel-contrib/rust-import-analyzer/internal/manifest"
)

// Server runs the single-threaded request/response loop described by the
// Request Server: one request is read, processed, and answered before the
// next is read, with no concurrency and no caching across requests.
type Server struct {
	r      *bufio.Reader
	w      *bufio.Writer
	log    *slog.Logger
}

func NewServer(in io.Reader, out io.Writer, log *slog.Logger) *Server {
	return &Server{
		r:   bufio.NewReader(in),
		w:   bufio.NewWriter(out),
		log: log,
	}
}

// Run processes requests until the input stream reaches end-of-file at a
// frame boundary, which terminates the loop cleanly; any other read error
// is returned.
func (s *Server) Run() error {
	for {
		body, err := ReadFrame(s.r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		req, err := UnmarshalRequest(body)
		if err != nil {
			return err
		}

		resp, err := s.handle(req)
		if err != nil {
			return err
		}
		if resp == nil {
			continue
		}
		if err := WriteFrame(s.w, resp); err != nil {
			return err
		}
	}
}

// handle dispatches one request and returns its wire-framed response. An
// error return terminates Run's loop: per spec §7, only RustImportsRequest
// treats parse failures as recoverable (folded into a success=false
// response); every other request kind, and any invariant violation
// surfaced while walking a RustImportsRequest's file, is fatal.
func (s *Server) handle(req *Request) ([]byte, error) {
	switch {
	case req.RustImports != nil:
		resp, err := s.handleRustImports(req.RustImports)
		if err != nil {
			return nil, err
		}
		return resp.Marshal(), nil
	case req.LockfileCrates != nil:
		resp, err := s.handleLockfileCrates(req.LockfileCrates)
		if err != nil {
			return nil, err
		}
		return resp.Marshal(), nil
	case req.CargoToml != nil:
		resp, err := s.handleCargoToml(req.CargoToml)
		if err != nil {
			return nil, err
		}
		return resp.Marshal(), nil
	case req.SimplifyBExpr != nil:
		return s.handleSimplifyBExpr(req.SimplifyBExpr).Marshal(), nil
	default:
		s.log.Warn("request carried no recognized kind")
		return nil, nil
	}
}

func (s *Server) handleRustImports(req *RustImportsRequest) (*RustImportsResponse, error) {
	enabled := make(map[string]bool, len(req.EnabledFeatures))
	for _, f := range req.EnabledFeatures {
		enabled[f] = true
	}

	fi, err := importer.ImportsForFile(req.FilePath, enabled, importer.ModeFlat)
	if err != nil {
		var emptyList *attrs.EmptyCfgListError
		if errors.As(err, &emptyList) {
			return nil, fmt.Errorf("rust imports request for %s: %w", req.FilePath, err)
		}
		s.log.Warn("rust imports request failed", "file", req.FilePath, "error", err)
		return &RustImportsResponse{Success: false, ErrorMsg: err.Error()}, nil
	}

	return &RustImportsResponse{
		Success: true,
		Hints: Hints{
			HasMain:      fi.Hints.HasMain,
			HasTest:      fi.Hints.HasTest,
			HasProcMacro: fi.Hints.HasProcMacro,
		},
		Imports:     fi.Imports,
		TestImports: fi.TestImports,
		ExternMods:  fi.ExternMods,
		CompileData: fi.CompileData,
	}, nil
}

// handleLockfileCrates resolves a lockfile request. Per spec §6/§7, a
// missing or unreadable lockfile is fatal, not a recoverable response:
// the error is returned so Run aborts the process.
func (s *Server) handleLockfileCrates(req *LockfileCratesRequest) (*LockfileCratesResponse, error) {
	var (
		crates []lockfile.Package
		err    error
	)
	switch {
	case req.LockfilePath != "":
		crates, err = lockfile.GetBazelLockfileCrates(req.LockfilePath)
	case req.CargoLockfilePath != "":
		crates, err = lockfile.GetCargoLockfileCrates(req.CargoLockfilePath)
	default:
		return nil, errors.New("lockfile crates request carried no lockfile path")
	}
	if err != nil {
		return nil, fmt.Errorf("lockfile crates request: %w", err)
	}
	return &LockfileCratesResponse{Crates: crates}, nil
}

// handleCargoToml loads a manifest. Per spec §6/§7, an unreadable manifest
// aborts the process rather than producing a success=false response.
func (s *Server) handleCargoToml(req *CargoTomlRequest) (*CargoTomlResponse, error) {
	m, err := manifest.Load(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("cargo toml request for %s: %w", req.FilePath, err)
	}
	return &CargoTomlResponse{
		Success:  true,
		Name:     m.Name,
		Library:  m.Library,
		Binaries: m.Binaries,
		Tests:    m.Tests,
		Benches:  m.Benches,
		Examples: m.Examples,
	}, nil
}

func (s *Server) handleSimplifyBExpr(req *SimplifyBExprRequest) *SimplifyBExprResponse {
	return &SimplifyBExprResponse{BExpr: cfgexpr.Simplify(req.BExpr)}
}
