package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:     "aftercare",
		Short:   "Aftercare plan activation and record reconciliation",
		Version: Version,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.json", "path to config file (json or yaml)")

	rootCmd.AddCommand(activateCmd(&cfgPath))
	rootCmd.AddCommand(matchCmd(&cfgPath))
	rootCmd.AddCommand(importCmd(&cfgPath))
	rootCmd.AddCommand(serveCmd(&cfgPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
