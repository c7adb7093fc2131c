package boltz

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/boltzchat/agents/internal/artifacts"
)

// Reply texts shown to users.
const (
	Apology = "Sorry, I couldn't output the structure of your request. Please try again later."

	resolveOne  = "\n\n🛠️ Please resolve this issue and re-enter your prompt!"
	resolveMany = "\n\n🛠️ Please resolve these issues and re-enter your prompt!"
	retryPrompt = "\n\n🔁 Please try a different prompt."
)

// FormatIssues renders validation issues as one reply.
func FormatIssues(issues []string) string {
	suffix := resolveOne
	if len(issues) > 1 {
		suffix = resolveMany
	}
	return "⚠️ " + strings.Join(issues, "\n\n⚠️") + suffix
}

// FormatRemoteError renders a failure reported by the prediction service.
func FormatRemoteError(err error) string {
	return "⚠️ " + err.Error() + retryPrompt
}

// FormatPrediction publishes every structure of resp and renders the reply
// listing them with their confidence and a 3D viewer link.
func FormatPrediction(ctx context.Context, resp *PredictionResponse, outputFormat string, pub artifacts.Publisher) (string, error) {
	format := strings.ToLower(outputFormat)

	header := "🔬 Boltz2 predicted the following biological structure from your query:\n"
	if len(resp.Structures) > 1 {
		header = "🔬 Boltz2 predicted the following biological structures from your query:\n"
	}
	lines := []string{header}

	for i, s := range resp.Structures {
		name := fmt.Sprintf("Structure %d", i+1)
		if s.Name != nil && *s.Name != "" {
			name = *s.Name
		}
		if i >= len(resp.ConfidenceScores) {
			return "", fmt.Errorf("no confidence score for structure %d", i+1)
		}
		log.Info().Int("index", i+1).Str("name", name).Msg("Processing structure")

		filename := fmt.Sprintf("structure_%s.%s", uuid.New().String(), format)
		rawURL, err := pub.Publish(ctx, filename, s.Structure)
		if err != nil {
			return "", fmt.Errorf("publish %s: %w", filename, err)
		}

		lines = append(lines, fmt.Sprintf("🧬 **%s** (avg. confidence: %.2f)  | 🔗 [Click to view in 3D](%s)\n",
			name, resp.ConfidenceScores[i], artifacts.MolstarURL(rawURL, format)))
	}
	return strings.Join(lines, "\n"), nil
}
