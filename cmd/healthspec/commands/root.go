// Package commands implements the healthspec CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "healthspec",
	Short: "HealthSpec - turn healthcare software documents into structured requirements",
	Long: `HealthSpec processes healthcare software documents (PDFs, Word documents,
images, plain text) into structured, compliance-tagged requirements. It converts
documents to page images, extracts text with a vision model, analyzes the result
for compliance and requirements gaps, asks clarification questions, and
synthesizes requirement records with acceptance criteria and test scenarios.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
