// Command allycheck audits web content and documents for WCAG 2.2
// accessibility issues.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"allycheck/internal/config"
	"allycheck/internal/engine"
	"allycheck/internal/logging"
)

var (
	configPath string
	envFile    string
	verbose    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "allycheck",
	Short: "WCAG 2.2 accessibility auditing with a tool-using model",
	Long: `allycheck audits URLs, HTML, snippets and documents against WCAG 2.2.

A language model inspects the content, calls analysis and reference tools
(axe-core in headless Chrome, WCAG lookups, document structure extraction)
and reports issues that are parsed, merged and ranked by severity.

Run "allycheck serve" for the HTTP API or "allycheck audit" for one-off runs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		return logging.Initialize(logging.Options{
			Level:      level,
			Format:     cfg.Logging.Format,
			OutputFile: cfg.Logging.File,
			Categories: cfg.Logging.Categories,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "allycheck.yaml", "Configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before the configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(criteriaCmd)
	rootCmd.AddCommand(mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error onto the process exit status. Flag and
// argument errors from cobra land on the generic code.
func exitCode(err error) int {
	var usage *usageError
	if errors.As(err, &usage) {
		return 2
	}
	return engine.Classify(err).ExitCode()
}

// usageError marks bad command-line input.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}
