package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pagesift/internal/adapters/driving/mcp"
)

var mcpPort int

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol integration",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve search and ingestion status to MCP clients",
	Long: `Serves the search, search_entities and ingestion_status tools plus the run
history and entity resources. Stdio is used unless --port is given, in which
case the streamable HTTP transport listens on that port.`,
	Example: `  pagesift mcp serve
  pagesift mcp serve --port 8765`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Search:  searchService,
		Control: ingestionControl,
	})
	if err != nil {
		return err
	}

	if mcpPort > 0 {
		cmd.Printf("MCP server on http://localhost:%d\n", mcpPort)
		return server.RunHTTP(cmd.Context(), fmt.Sprintf(":%d", mcpPort))
	}
	return server.Run(cmd.Context())
}
