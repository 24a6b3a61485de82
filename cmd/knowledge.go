// File: cmd/knowledge.go
package cmd

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/internal/config"
	"github.com/xkilldash9x/formscout/internal/knowledge"
	"github.com/xkilldash9x/formscout/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newKnowledgeCmd groups the knowledge store maintenance commands.
func newKnowledgeCmd() *cobra.Command {
	knowledgeCmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Inspect or reset the learned field knowledge",
	}
	knowledgeCmd.AddCommand(newKnowledgeShowCmd())
	knowledgeCmd.AddCommand(newKnowledgeClearCmd())
	return knowledgeCmd
}

func newKnowledgeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Prints every learned field entry as indented JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			store, closeStore, err := knowledge.Open(ctx, cfg.Knowledge, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			snap, err := store.Snapshot(ctx)
			if err != nil {
				return fmt.Errorf("read knowledge store: %w", err)
			}
			if len(snap) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "knowledge store is empty")
				return nil
			}

			out, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newKnowledgeClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Erases the persisted knowledge store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			store, closeStore, err := knowledge.Open(ctx, cfg.Knowledge, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Clear(ctx); err != nil {
				return fmt.Errorf("clear knowledge store: %w", err)
			}
			logger.Info("Knowledge store cleared", zap.String("backend", cfg.Knowledge.Backend))
			fmt.Fprintln(cmd.OutOrStdout(), "knowledge store cleared")
			return nil
		},
	}
}
