// Command ghfetch harvests repository metadata from the GitHub search
// API into a local SQLite database.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ghfetch",
	Short: "Harvest repository metadata via the GitHub GraphQL search API",
	Long: `ghfetch walks GitHub repository search results page by page, staying
inside the GraphQL point budget, and stores the records in SQLite.
Large result sets are swept in created-date windows so the harvest can
cover more than one cursor chain.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(quotaCmd)
}
