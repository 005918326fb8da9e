// Command certgen generates certificates without the web editor: it binds a
// saved layout onto a PDF template once per row of a data file.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JonMunkholm/certgen/internal/core"
	"github.com/JonMunkholm/certgen/internal/logging"
	"github.com/spf13/cobra"
)

var logLevel string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, core.FormatUserError(err))
			slog.Debug("command failed", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "certgen",
		Short: "Generate personalized PDF certificates from a template and a participant list",
		Long: `certgen fills a PDF certificate template with one row of spreadsheet
data per document and bundles the results into a ZIP archive.

Layouts are exported from the web editor (GET /api/sessions/{id}/layout).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// stdout carries command output; logs go to stderr.
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), logLevel, "text"))
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(newGenerateCmd(), newInspectCmd())
	return root
}
