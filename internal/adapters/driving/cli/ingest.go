package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

var (
	ingestJSON bool

	backfillLimit int
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the ingestion poll loop",
	Long: `Runs the ingestion loop until interrupted. Every poll interval the daemon
renews its lease on the pipeline and, when the pipeline is enabled, not paused
and the run interval has elapsed, discovers, downloads, OCRs and indexes new
files. Several daemons may share one postgres database; only the lease holder runs.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion pass now",
	Long: `Runs a single ingestion pass immediately, ignoring the enabled flag and the
run interval. Fails if another replica holds the lease.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

var ocrCmd = &cobra.Command{
	Use:   "ocr",
	Short: "OCR maintenance commands",
}

var ocrPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "OCR pages left pending",
	Long: `OCRs stored pages that have no result yet, for example after an interrupted
run, then extracts entities and indexes the new results.`,
	Args: cobra.NoArgs,
	RunE: runOCRPending,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Index OCR results missing from the search index",
	Args:  cobra.NoArgs,
	RunE:  runReindex,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the run summary as JSON")
	ocrPendingCmd.Flags().IntVarP(&backfillLimit, "limit", "n", 100, "maximum number of pages")

	ocrCmd.AddCommand(ocrPendingCmd)
	rootCmd.AddCommand(daemonCmd, ingestCmd, ocrCmd, reindexCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if ingestionRunner == nil {
		return errors.New("ingestion not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ingestionRunner.Start(ctx); err != nil {
		return fmt.Errorf("starting ingestion: %w", err)
	}
	cmd.Println("Ingestion daemon running. Press Ctrl+C to stop.")

	<-ctx.Done()
	cmd.Println("Stopping...")
	return ingestionRunner.Stop()
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if ingestionRunner == nil {
		return errors.New("ingestion not configured")
	}

	summary, err := ingestionRunner.RunOnce(cmd.Context())
	if errors.Is(err, domain.ErrLeaseHeld) {
		return errors.New("another replica is running ingestion; try again later")
	}
	if summary != nil {
		if ingestJSON {
			if jerr := printJSON(cmd, summary); jerr != nil {
				return jerr
			}
		} else {
			printSummary(cmd, summary)
		}
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func runOCRPending(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	batch, err := maintenanceService.Backfill(cmd.Context(), backfillLimit)
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	cmd.Printf("Pages with text: %d\n", batch.Processed)
	cmd.Printf("Pages without text: %d\n", batch.Empty)
	cmd.Printf("Pages still pending: %d\n", batch.Failed)
	printErrors(cmd, batch.Errors)
	return nil
}

func runReindex(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	n, err := maintenanceService.Reindex(cmd.Context())
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	cmd.Printf("Indexed %d results.\n", n)
	return nil
}

func printSummary(cmd *cobra.Command, s *domain.RunSummary) {
	cmd.Printf("Outcome: %s\n", s.Outcome)
	cmd.Printf("  Discovered: %d\n", s.FilesDiscovered)
	cmd.Printf("  Downloaded: %d\n", s.FilesDownloaded)
	cmd.Printf("  Processed:  %d\n", s.FilesProcessed)
	cmd.Printf("  Skipped:    %d\n", s.FilesSkipped)
	cmd.Printf("  Pages:      %d\n", s.PagesProcessed)
	printErrors(cmd, s.Errors)
}

func printErrors(cmd *cobra.Command, errs []string) {
	if len(errs) == 0 {
		return
	}
	cmd.Printf("Errors (%d):\n", len(errs))
	for _, e := range errs {
		cmd.Printf("  - %s\n", e)
	}
}
