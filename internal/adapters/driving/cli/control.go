package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	statusJSON   bool
	historyLimit int
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Control the ingestion pipeline",
	Long: `Changes the persistent pipeline flags. Flags are stored in the database, so
they reach whichever replica holds the lease. Pause and cancel take effect at
the next file boundary.`,
}

// controlAction is a flag-flipping subcommand.
type controlAction struct {
	use     string
	short   string
	done    string
	perform func(ctx context.Context) error
}

var controlActions = []controlAction{
	{"enable", "Allow runs to start", "Ingestion enabled.",
		func(ctx context.Context) error { return ingestionControl.Enable(ctx) }},
	{"disable", "Stop new runs from starting", "Ingestion disabled.",
		func(ctx context.Context) error { return ingestionControl.Disable(ctx) }},
	{"pause", "Pause the pipeline at the next file", "Ingestion paused.",
		func(ctx context.Context) error { return ingestionControl.Pause(ctx) }},
	{"resume", "Resume a paused pipeline", "Ingestion resumed.",
		func(ctx context.Context) error { return ingestionControl.Resume(ctx) }},
	{"cancel", "Cancel the current run at the next file", "Cancel requested.",
		func(ctx context.Context) error { return ingestionControl.Cancel(ctx) }},
}

var controlStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline status",
	Args:  cobra.NoArgs,
	RunE:  runControlStatus,
}

var controlHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs",
	Args:  cobra.NoArgs,
	RunE:  runControlHistory,
}

func init() {
	for _, a := range controlActions {
		controlCmd.AddCommand(newControlActionCmd(a))
	}

	controlStatusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	controlHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "maximum number of runs")
	controlCmd.AddCommand(controlStatusCmd, controlHistoryCmd)
	rootCmd.AddCommand(controlCmd)
}

func newControlActionCmd(a controlAction) *cobra.Command {
	return &cobra.Command{
		Use:   a.use,
		Short: a.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ingestionControl == nil {
				return errors.New("ingestion control not configured")
			}
			if err := a.perform(cmd.Context()); err != nil {
				return fmt.Errorf("%s failed: %w", a.use, err)
			}
			cmd.Println(a.done)
			return nil
		},
	}
}

func runControlStatus(cmd *cobra.Command, _ []string) error {
	if ingestionControl == nil {
		return errors.New("ingestion control not configured")
	}

	st, err := ingestionControl.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}
	if statusJSON {
		return printJSON(cmd, st)
	}

	cmd.Printf("Pipeline: %s\n", st.Name)
	cmd.Printf("  Enabled:    %t\n", st.Enabled)
	cmd.Printf("  Running:    %t\n", st.Running)
	cmd.Printf("  Paused:     %t\n", st.Paused)
	if st.Cancelling {
		cmd.Println("  Cancel requested")
	}
	if st.LeaseOwner != "" {
		cmd.Printf("  Lease:      %s\n", st.LeaseOwner)
	}
	cmd.Printf("  Heartbeat:  %s\n", formatTime(st.LastHeartbeatAt))
	cmd.Printf("  Started:    %s\n", formatTime(st.LastRunStartedAt))
	cmd.Printf("  Completed:  %s\n", formatTime(st.LastRunCompletedAt))
	if st.LastError != "" {
		cmd.Printf("  Last error: %s\n", st.LastError)
	}
	if st.LastSummary != nil {
		cmd.Println()
		printSummary(cmd, st.LastSummary)
	}
	return nil
}

func runControlHistory(cmd *cobra.Command, _ []string) error {
	if ingestionControl == nil {
		return errors.New("ingestion control not configured")
	}

	runs, err := ingestionControl.History(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("history failed: %w", err)
	}
	if len(runs) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}
	for i := range runs {
		r := &runs[i]
		cmd.Printf("%s  %-10s processed=%d skipped=%d errors=%d  (%s)\n",
			formatTime(r.StartedAt), r.Summary.Outcome, r.Summary.FilesProcessed,
			r.Summary.FilesSkipped, len(r.Summary.Errors), r.Owner)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}
