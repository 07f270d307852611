package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coverdesk/compare-cli/internal/model"
)

var (
	replaceManifest    string
	replaceFailedID    string
	replaceDocID       string
	replaceFilename    string
	replaceStoragePath string
	replaceCarrier     string
	replaceDocType     string
)

var replaceCmd = &cobra.Command{
	Use:   "replace",
	Short: "Replace one failed document of an earlier request and re-run the comparison",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		req, err := loadManifest(replaceManifest)
		if err != nil {
			return err
		}
		if req.ID == "" {
			return eris.New("manifest must carry the original request_id for replace")
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

		replacement := documentFromManifest(documentManifest{
			ID:          replaceDocID,
			Filename:    replaceFilename,
			StoragePath: replaceStoragePath,
			MimeType:    "application/pdf",
			CarrierName: replaceCarrier,
			Type:        replaceDocType,
		})

		report, err := p.ReplaceDocument(ctx, req, replaceFailedID, replacement, logProgress)
		if err != nil {
			return eris.Wrap(err, "replace document")
		}

		zap.L().Info("replacement resolved",
			zap.String("request_id", report.RequestID),
			zap.String("replaced", replaceFailedID),
			zap.Int("remaining_failures", len(report.FailedDocuments)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	replaceCmd.Flags().StringVar(&replaceManifest, "manifest", "", "path to the original request manifest YAML (required)")
	replaceCmd.Flags().StringVar(&replaceFailedID, "failed-id", "", "document_id of the failed entry being replaced (required)")
	replaceCmd.Flags().StringVar(&replaceDocID, "document-id", "", "document_id of the replacement upload (required)")
	replaceCmd.Flags().StringVar(&replaceFilename, "filename", "", "replacement filename (required)")
	replaceCmd.Flags().StringVar(&replaceStoragePath, "storage-path", "", "replacement object path in the bucket (required)")
	replaceCmd.Flags().StringVar(&replaceCarrier, "carrier", "", "carrier name for the replacement")
	replaceCmd.Flags().StringVar(&replaceDocType, "type", string(model.DocumentTypeQuote), "document type: Quote or PolicyWording")
	for _, flag := range []string{"manifest", "failed-id", "document-id", "filename", "storage-path"} {
		_ = replaceCmd.MarkFlagRequired(flag)
	}
	rootCmd.AddCommand(replaceCmd)
}
