package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pagesift/internal/adapters/driving/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse OCR'd pages interactively",
	Long: `Opens a terminal browser over the search index. Type a query, press tab to
change the search mode and enter to open a page's full text. The status bar
shows the ingestion pipeline state.`,
	Args: cobra.NoArgs,
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, _ []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	app, err := tui.NewApp(&tui.Ports{
		Search:  searchService,
		Control: ingestionControl,
	})
	if err != nil {
		return err
	}
	return app.WithContext(cmd.Context()).Run()
}
