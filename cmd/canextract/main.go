package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/danmuck/canextract/internal/logging"
)

const version = "0.1.0"

func main() {
	logging.ConfigureRuntime()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "canextract",
		Short:         "Decode fixed-length binary frames with declarative schemas",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetVersionTemplate("canextract version: {{.Version}}\n")
	root.Flags().BoolP("version", "V", false, "version for canextract")

	root.AddCommand(
		newValidateCmd(),
		newDecodeCmd(),
		newServeCmd(),
		newHooksCmd(),
	)
	return root
}
