// Package cmd provides the command-line interface for Tokei.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tokei",
	Short: "Tokei dispatches scheduled events in step with the wall clock.",
	Long: `Tokei dispatches scheduled events in step with the wall clock. ` +
		`It can run scripted scenarios, benchmark the event queue, and ` +
		`inspect recorded runs.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}
}

func init() {
	// A .env file can carry the TOKEI_* variables. A missing file is fine.
	_ = godotenv.Load()
}

// fatalf reports an error and exits through atexit, so registered recorder
// flushes still run.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	atexit.Exit(1)
}
