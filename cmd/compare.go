package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coverdesk/compare-cli/internal/compare"
	"github.com/coverdesk/compare-cli/internal/extract"
	"github.com/coverdesk/compare-cli/internal/fetcher"
	"github.com/coverdesk/compare-cli/internal/pipeline"
	"github.com/coverdesk/compare-cli/internal/resilience"
	"github.com/coverdesk/compare-cli/internal/store"
	anthropicpkg "github.com/coverdesk/compare-cli/pkg/anthropic"
)

var (
	compareManifest string
	compareMode     string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run a full comparison over a manifest of uploaded documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		req, err := loadManifest(compareManifest)
		if err != nil {
			return err
		}
		if compareMode != "" {
			req.Mode = parseMode(compareMode)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		p, err := buildPipeline(ctx, st)
		if err != nil {
			return err
		}

		report, err := p.Run(ctx, req, logProgress)
		if err != nil {
			return eris.Wrap(err, "comparison run")
		}

		zap.L().Info("comparison complete",
			zap.String("request_id", report.RequestID),
			zap.Int("insurers", len(report.Insurers)),
			zap.Int("failed_documents", len(report.FailedDocuments)),
			zap.Int("total_tokens", report.Usage.Total()),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func buildPipeline(ctx context.Context, st store.Store) (*pipeline.Pipeline, error) {
	signer, err := fetcher.NewGCSSigner(ctx, cfg.Storage.Bucket)
	if err != nil {
		return nil, eris.Wrap(err, "init storage signer")
	}

	f := fetcher.New(signer, fetcher.Options{
		SignedURLTTL: cfg.Storage.SignedURLTTL(),
		Timeout:      cfg.Storage.FetchTimeout(),
		MaxBytes:     cfg.Storage.MaxDocumentBytes,
	})

	client := anthropicpkg.NewClient(cfg.Anthropic.Key)

	retry := resilience.DefaultPolicy()
	retry.MaxAttempts = cfg.Extraction.MaxRetries

	ex := extract.New(client, st, extract.Options{
		Model:   cfg.Anthropic.ExtractModel,
		Timeout: cfg.Extraction.Timeout(),
		Retry:   retry,
	})

	engine := compare.New(client, compare.Options{
		Model:     cfg.Anthropic.CompareModel,
		MaxTokens: cfg.Anthropic.MaxTokens,
		Timeout:   cfg.Comparison.Timeout(),
		Retry:     retry,
	})

	return pipeline.New(f, ex, engine, st), nil
}

func init() {
	compareCmd.Flags().StringVar(&compareManifest, "manifest", "", "path to the request manifest YAML (required)")
	compareCmd.Flags().StringVar(&compareMode, "mode", "", "override output mode: structured, narrative, or comparison_report")
	_ = compareCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(compareCmd)
}
