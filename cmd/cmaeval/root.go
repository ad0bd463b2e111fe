// cmaeval reports causal mediation analysis metrics for debiased classifiers.
//
// Usage:
//
//	cmaeval report --model-dir=<dir> --data-dir=<dir> [--test-set=mnli_hans] [--a0=...]
//	cmaeval heuristics --gold=<tsv> --predictions=<jsonl>
//	cmaeval testsets
//	cmaeval serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cmaeval/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "cmaeval",
	Short: "Causal mediation analysis of bias in NLI, fact verification and paraphrase models",
	Long: "cmaeval fuses bias-only and task-model predictions, decomposes the total effect\n" +
		"of the bias signal into direct and indirect components, and reports the\n" +
		"counterfactual-corrected accuracies across training seeds.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := logging.ParseLevel(rootFlags.logLevel)
		if err != nil {
			return err
		}
		format, err := logging.ParseFormat(rootFlags.logFormat)
		if err != nil {
			return err
		}
		logging.Init(level, format, cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(heuristicsCmd)
	rootCmd.AddCommand(testSetsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
