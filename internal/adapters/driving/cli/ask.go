package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

var (
	askFilters []string
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about your documents",
	Long: `Answers a natural-language question using the ingested corpus.
The answer cites the document chunks it was drawn from. When the corpus
holds no supporting evidence, the command says so instead of guessing.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringArrayVarP(&askFilters, "filter", "f", nil, "metadata filter as key=value (repeatable)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	if !appSettings.Generation.IsConfigured() {
		return errNotConfigured
	}

	filters, err := parseFilters(askFilters)
	if err != nil {
		return err
	}

	answer, err := answerService.Ask(cmd.Context(), args[0], filters)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return fmt.Errorf("invalid question: %w", err)
		}
		return fmt.Errorf("answering failed: %w", err)
	}

	if askJSON {
		return outputAnswerJSON(cmd, answer)
	}
	return outputAnswerText(cmd, answer)
}

// parseFilters converts repeated key=value flags into a filter set.
func parseFilters(pairs []string) (domain.Filters, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filters := make(domain.Filters, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q: expected key=value", pair)
		}
		filters[key] = value
	}
	return filters, nil
}

func outputAnswerJSON(cmd *cobra.Command, answer *domain.Answer) error {
	out := struct {
		ID             string            `json:"id"`
		Text           string            `json:"text"`
		Citations      []domain.Citation `json:"citations,omitempty"`
		Confidence     float64           `json:"confidence"`
		NotFoundReason string            `json:"not_found_reason,omitempty"`
		LatencyMS      int64             `json:"latency_ms"`
	}{
		ID:             answer.ID,
		Text:           answer.Text,
		Citations:      answer.Citations,
		Confidence:     answer.Confidence,
		NotFoundReason: answer.NotFoundReason,
		LatencyMS:      answer.LatencyMS,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputAnswerText(cmd *cobra.Command, answer *domain.Answer) error {
	if !answer.Found() {
		cmd.Printf("No answer: %s\n", answer.NotFoundReason)
		return nil
	}

	cmd.Println(answer.Text)

	if len(answer.Citations) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for _, c := range answer.Citations {
			name := c.SourceName
			if name == "" {
				name = c.DocumentID
			}
			if c.Page > 0 {
				cmd.Printf("  - %s, p.%d\n", name, c.Page)
			} else {
				cmd.Printf("  - %s\n", name)
			}
		}
	}

	cmd.Printf("\nConfidence: %.2f (%dms)\n", answer.Confidence, answer.LatencyMS)
	return nil
}
