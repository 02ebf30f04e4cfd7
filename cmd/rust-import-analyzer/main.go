package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bazel-contrib/rust-import-analyzer/internal/importer"
	"github.com/bazel-contrib/rust-import-analyzer/internal/protocol"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "FATAL: ")
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rust-import-analyzer",
		Short:         "Infers external crate dependencies of Rust source files for Bazel Gazelle",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newOneShotCmd(), newStreamProtoCmd())
	return root
}

func newOneShotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "one-shot <path>",
		Short: "Parse a single file and print its inferred imports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(args[0])
		},
	}
}

func runOneShot(path string) error {
	fi, err := importer.ImportsForFile(path, nil, importer.ModeFlat)
	if err != nil {
		// One-shot mode treats a failure to read or parse the target file
		// itself as fatal, unlike the streaming server which reports it
		// as a recoverable response.
		return err
	}

	imports := append([]string(nil), fi.Imports...)
	sort.Strings(imports)

	fmt.Println("Imports:")
	for _, imp := range imports {
		fmt.Printf("  %s\n", imp)
	}
	return nil
}

func newStreamProtoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stream-proto",
		Short: "Enter the request/response server loop on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStreamProto()
		},
	}
}

func runStreamProto() error {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "warning: stdin is a terminal; stream-proto expects a framed request stream from a build tool")
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	server := protocol.NewServer(os.Stdin, os.Stdout, log)
	return server.Run()
}
