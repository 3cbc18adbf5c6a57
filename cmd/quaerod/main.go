package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quaero-ai/quaero/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quaerod",
		Short: "Quaero daemon",
		Long:  "Quaero daemon for running the knowledge base API server and ingestion worker",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(cli.ServeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
