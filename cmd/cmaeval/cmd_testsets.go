package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cmaeval/internal/display"
	"cmaeval/internal/format"
	"cmaeval/internal/layout"
)

var testSetsFlags struct {
	layoutPath string
	format     string
}

var testSetsCmd = &cobra.Command{
	Use:   "testsets",
	Short: "List the test sets of the file layout",
	RunE:  runTestSets,
}

func init() {
	f := testSetsCmd.Flags()
	f.StringVar(&testSetsFlags.layoutPath, "layout", "", "YAML layout merged over the default file table")
	f.StringVar(&testSetsFlags.format, "format", "ascii", "Output format: ascii, markdown")
}

func runTestSets(cmd *cobra.Command, _ []string) error {
	tbl := layout.Default()
	if testSetsFlags.layoutPath != "" {
		var err error
		if tbl, err = layout.LoadFile(testSetsFlags.layoutPath); err != nil {
			return err
		}
	}
	mode, err := format.ParseMode(testSetsFlags.format)
	if err != nil {
		return err
	}

	tb := format.NewTable(mode)
	tb.Header("Test set", "Task", "Bias file", "Result file")
	for _, name := range tbl.Names() {
		e := tbl.TestSets[name]
		tb.Row(display.TestSetWithCode(name), e.Task, e.BiasFile, e.ResultFile)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tb.String())
	return nil
}
