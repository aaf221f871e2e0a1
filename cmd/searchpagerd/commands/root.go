package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the searchpagerd root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "searchpagerd",
		Short:         "Paginated search API over Elasticsearch, OpenSearch or SQL",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		NewServeCommand(),
		NewCursorCommand(),
	)

	return rootCmd
}
