// Package cli implements the mirror command-line interface.
// Implements: prd005-cli (R1: root command, R2: global flags, R3: exit codes);
//
//	docs/ARCHITECTURE § CLI.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is the released mirror version string.
const Version = "0.1.0"

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
}

var flags rootFlags

// NewRootCmd creates the top-level "mirror" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mirror",
		Short: "An in-memory table mirror with transactional save",
		Long: "Mirror loads mapped database tables into typed entity collections,\n" +
			"tracks what changed, and replays the changes inside one transaction.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: .mirror)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: .mirror-db)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newDemoCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitUserError)
	}
}

// exitError prints the message to stderr and exits with the given code.
func exitError(code int, msg string) error {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(code)
	return nil // unreachable
}
