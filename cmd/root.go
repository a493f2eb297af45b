package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nuvaru",
	Short: "Knowledge base retrieval service",
	Long: `Nuvaru ingests documents into knowledge bases, indexes them for
vector search, and answers questions grounded in their content.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
