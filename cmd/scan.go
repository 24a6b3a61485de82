// File: cmd/scan.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/internal/config"
	"github.com/xkilldash9x/formscout/internal/observability"
	"github.com/xkilldash9x/formscout/internal/orchestrator"
)

// newScanCmd creates and configures the `scan` command.
func newScanCmd() *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan [url]",
		Short: "Crawls the target site and exercises every discovered form field",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment with the right precedence.
			bindings := map[string]string{
				"crawler.max_depth":          "depth",
				"crawler.include_subdomains": "subdomains",
				"crawler.allow_manual_check": "manual-check",
				"scanner.canvas_capture":     "canvas-capture",
				"executor.concurrency":       "concurrency",
				"browser.headless":           "headless",
				"output.dir":                 "output",
			}
			for key, flag := range bindings {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			target := args[0]
			if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
				target = "https://" + target
			}

			logger.Info("Starting scan",
				zap.String("target", target),
				zap.Int("max_depth", cfg.Crawler.MaxDepth),
				zap.Int("concurrency", cfg.Executor.Concurrency),
				zap.String("knowledge_backend", cfg.Knowledge.Backend),
			)

			report, err := orchestrator.New(cfg, logger).Run(ctx, target)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Scan aborted", zap.String("scan_id", report.ScanID))
					return fmt.Errorf("scan aborted by user signal")
				}
				return fmt.Errorf("scan failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Scan %s complete: %d pages, %d fields. Report written to %s\n",
				report.ScanID, len(report.Pages), report.FieldsFound, cfg.Output.Dir)
			return nil
		},
	}

	scanCmd.Flags().Int("depth", 2, "maximum crawl depth from the start URL")
	scanCmd.Flags().Bool("subdomains", false, "allow the crawl to follow sibling subdomains")
	scanCmd.Flags().Bool("manual-check", false, "pause for operator input when a captcha or login wall blocks the crawl")
	scanCmd.Flags().Bool("canvas-capture", false, "rasterize canvas elements for later inspection")
	scanCmd.Flags().Int("concurrency", 1, "concurrent page sessions during execution")
	scanCmd.Flags().Bool("headless", true, "run the browser headless")
	scanCmd.Flags().StringP("output", "o", "outputs", "directory for report artifacts")

	return scanCmd
}
