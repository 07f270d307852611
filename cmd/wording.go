package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coverdesk/compare-cli/internal/model"
	"github.com/coverdesk/compare-cli/internal/pipeline"
	"github.com/coverdesk/compare-cli/internal/wording"
)

var wordingRequestID string

// wordingOutput is the stdout shape of the wording subcommand: the
// per-carrier wording views plus the cross-carrier exclusion analysis.
type wordingOutput struct {
	RequestID        string                `json:"request_id"`
	Wordings         []model.PolicyWording `json:"wordings"`
	CommonExclusions []string              `json:"common_exclusions"`
	UniqueExclusions map[string][]string   `json:"unique_exclusions"`
	BestWording      *model.PolicyWording  `json:"best_wording,omitempty"`
}

var wordingCmd = &cobra.Command{
	Use:   "wording",
	Short: "Analyse the stored policy wordings of an earlier request",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		extractions, err := st.ListExtractions(ctx, wordingRequestID)
		if err != nil {
			return eris.Wrapf(err, "list extractions for %s", wordingRequestID)
		}

		wordings := pipeline.Wordings(extractions)
		if len(wordings) == 0 {
			return eris.Errorf("no policy wordings stored for request %s", wordingRequestID)
		}
		zap.L().Info("wordings loaded",
			zap.String("request_id", wordingRequestID),
			zap.Int("count", len(wordings)),
		)

		out := wordingOutput{
			RequestID:        wordingRequestID,
			Wordings:         wordings,
			CommonExclusions: wording.CommonExclusions(wordings),
			UniqueExclusions: make(map[string][]string, len(wordings)),
			BestWording:      wording.BestWording(wordings),
		}
		for _, w := range wordings {
			if unique := wording.UniqueExclusions(w, wordings); len(unique) > 0 {
				out.UniqueExclusions[w.InsurerName] = unique
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	wordingCmd.Flags().StringVar(&wordingRequestID, "request-id", "", "request whose stored wordings to analyse (required)")
	_ = wordingCmd.MarkFlagRequired("request-id")
	rootCmd.AddCommand(wordingCmd)
}
