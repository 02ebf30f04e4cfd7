package importer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bazel-contrib/rust-import-analyzer/internal/rustsrc"
)

// ImportsForFile reads filePath, parses it, and runs the AST Walker over
// it with filepath.Dir(filePath) as the containing directory, so callers
// only need to supply the feature set and mode.
func ImportsForFile(filePath string, enabledFeatures map[string]bool, mode Mode) (*FileImports, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filePath, err)
	}
	return ImportsForSource(string(src), filepath.Dir(filePath), enabledFeatures, mode)
}

// ImportsForSource parses src and walks it, given the directory it would
// live in (for include_str!/include_bytes! resolution).
func ImportsForSource(src, containingDir string, enabledFeatures map[string]bool, mode Mode) (*FileImports, error) {
	file, err := rustsrc.ParseFile(src)
	if err != nil {
		return nil, err
	}
	return Walk(file, Options{
		ContainingDir:   containingDir,
		EnabledFeatures: enabledFeatures,
		Mode:            mode,
	})
}
