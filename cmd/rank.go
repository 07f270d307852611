package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/coverdesk/compare-cli/internal/pipeline"
	"github.com/coverdesk/compare-cli/internal/ranking"
)

var (
	rankRequestID  string
	rankQuotesPath string
)

// quoteManifest is the YAML shape of one quote for offline ranking.
type quoteManifest struct {
	QuoteID     string            `yaml:"quote_id"`
	InsurerName string            `yaml:"insurer_name"`
	Premium     float64           `yaml:"premium"`
	Limits      map[string]string `yaml:"limits"`
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Score and rank quotes without calling the AI",
	Long:  "Recomputes rankings from the stored extractions of an earlier request, or from a YAML list of quotes for offline what-if scoring.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var quotes []ranking.QuoteInput
		switch {
		case rankRequestID != "":
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
			extractions, err := st.ListExtractions(ctx, rankRequestID)
			if err != nil {
				return eris.Wrapf(err, "list extractions for %s", rankRequestID)
			}
			quotes = pipeline.QuoteInputs(extractions)
		case rankQuotesPath != "":
			var err error
			quotes, err = loadQuotes(rankQuotesPath)
			if err != nil {
				return err
			}
		default:
			return eris.New("one of --request-id or --quotes is required")
		}

		if len(quotes) == 0 {
			return eris.New("no quotes to rank")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ranking.Rank(quotes))
	},
}

func loadQuotes(path string) ([]ranking.QuoteInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read quotes %s", path)
	}

	var manifests []quoteManifest
	if err := yaml.Unmarshal(data, &manifests); err != nil {
		return nil, eris.Wrapf(err, "parse quotes %s", path)
	}

	quotes := make([]ranking.QuoteInput, 0, len(manifests))
	for _, m := range manifests {
		q := ranking.QuoteInput{
			QuoteID:     m.QuoteID,
			InsurerName: m.InsurerName,
			Premium:     m.Premium,
			Limits:      make(map[ranking.CoverageCategory]string, len(m.Limits)),
		}
		for cat, limit := range m.Limits {
			q.Limits[ranking.CoverageCategory(cat)] = limit
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

func init() {
	rankCmd.Flags().StringVar(&rankRequestID, "request-id", "", "request whose stored extractions to rank")
	rankCmd.Flags().StringVar(&rankQuotesPath, "quotes", "", "path to a YAML list of quotes for offline scoring")
	rootCmd.AddCommand(rankCmd)
}
