// Package cli implements the pagesift command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pagesift/internal/config"
	"github.com/custodia-labs/pagesift/internal/core/ports/driving"
	"github.com/custodia-labs/pagesift/internal/logger"
)

// Services holds the driving ports the commands use.
type Services struct {
	Search      driving.SearchService
	Control     driving.IngestionControl
	Runner      driving.IngestionRunner
	Maintenance driving.MaintenanceService
}

// Bootstrap builds the services for a home directory. The returned
// function releases them.
type Bootstrap func(ctx context.Context, home string) (*Services, func(), error)

var (
	version = "dev"

	verbose    bool
	configHome string

	searchService      driving.SearchService
	ingestionControl   driving.IngestionControl
	ingestionRunner    driving.IngestionRunner
	maintenanceService driving.MaintenanceService

	bootstrap Bootstrap
	release   func()
)

var rootCmd = &cobra.Command{
	Use:   "pagesift",
	Short: "OCR ingestion and search for scanned document collections",
	Long: `pagesift crawls document sources, renders every page to an image, runs OCR
over several preprocessed variants of each page and indexes the best text so it
can be searched by keyword, phrase, fuzzy match, meaning or extracted entity.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if release != nil {
			release()
			release = nil
		}
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configHome, "config", "",
		"home directory holding config.toml and data (default $PAGESIFT_HOME or ~/.pagesift)")
}

// SetServices injects the driving ports.
func SetServices(s *Services) {
	searchService = s.Search
	ingestionControl = s.Control
	ingestionRunner = s.Runner
	maintenanceService = s.Maintenance
}

// SetBootstrap registers how services are built once flags are parsed.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// setup applies global flags and builds services on first use.
func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if cmd == versionCmd || bootstrap == nil || searchService != nil {
		return nil
	}

	home := configHome
	if home == "" {
		home = config.DefaultHome()
	}
	s, cleanup, err := bootstrap(cmd.Context(), home)
	if err != nil {
		return fmt.Errorf("initialising: %w", err)
	}
	SetServices(s)
	release = cleanup
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
