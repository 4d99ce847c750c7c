package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

var (
	searchMode      string
	searchLimit     int
	searchThreshold float64
	searchJSON      bool

	entitiesLimit int
	entitiesJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search OCR'd pages",
	Long: `Searches the text of every OCR'd page.

Modes:
  keyword   pages containing any word of the query (default)
  phrase    pages containing the whole query
  fuzzy     pages whose words are close to the query words, tolerating OCR misreads
  semantic  pages nearest in meaning, when an embedding provider is configured`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var entitiesCmd = &cobra.Command{
	Use:   "entities <type> [value]",
	Short: "Find pages mentioning an entity",
	Long: `Finds pages holding an extracted entity of the given type whose value
contains the given text. Types: name, email, phone, date, keyword.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runEntities,
}

func init() {
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", string(domain.SearchModeKeyword),
		"keyword, phrase, fuzzy or semantic")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", domain.DefaultSearchLimit, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", domain.DefaultFuzzyThreshold,
		"minimum fuzzy score between 0 and 1")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)

	entitiesCmd.Flags().IntVarP(&entitiesLimit, "limit", "n", domain.DefaultSearchLimit, "maximum number of results")
	entitiesCmd.Flags().BoolVar(&entitiesJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(entitiesCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	mode, err := domain.ParseSearchMode(searchMode)
	if err != nil {
		return fmt.Errorf("invalid mode %q: %w", searchMode, err)
	}
	opts := domain.SearchOptions{
		Mode:      mode,
		Limit:     searchLimit,
		Threshold: searchThreshold,
	}

	results, err := searchService.Search(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printJSON(cmd, results)
	}
	outputSearchTable(cmd, results)
	return nil
}

func runEntities(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	value := ""
	if len(args) > 1 {
		value = args[1]
	}
	results, err := searchService.SearchEntities(cmd.Context(), domain.EntityType(args[0]), value, entitiesLimit)
	if err != nil {
		return fmt.Errorf("entity search failed: %w", err)
	}

	if entitiesJSON {
		return printJSON(cmd, results)
	}
	outputSearchTable(cmd, results)
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		r := &results[i]
		// Format: [N] document page P (confidence C, similarity S)
		cmd.Printf("  [%d] %s page %d (confidence %.2f", i+1, r.DocumentID, r.PageNumber, r.Confidence)
		if r.Similarity > 0 {
			cmd.Printf(", similarity %.2f", r.Similarity)
		}
		cmd.Println(")")
		if r.Snippet != "" {
			cmd.Printf("      %s\n", r.Snippet)
		}
		if r.ImagePath != "" {
			cmd.Printf("      Image: %s\n", r.ImagePath)
		}
		cmd.Println()
	}
}
