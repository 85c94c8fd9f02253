package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd(out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{ //nolint:exhaustruct
		Use:           "godasse-tree",
		Short:         "Inspect position-annotated document trees",
		Long:          `godasse-tree parses XML or YAML documents into the trees consumed by the deserializer, to help debug schemas against real inputs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Bool("verbose", false, "Log debug information to stderr")
	rootCmd.AddCommand(newDumpCmd(out))
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
