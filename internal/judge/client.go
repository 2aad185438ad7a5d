package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"trainworker/internal/convert"
)

// Scorer assigns one reward in [0, 1] to each example of a window group.
type Scorer interface {
	ScoreGroup(ctx context.Context, group *convert.Group) ([]float64, error)
}

// transcripts are truncated per example so a large group still fits the
// judge model's context
const maxTranscriptChars = 6000

// Client scores groups with an LLM judge via the chat completions API.
type Client struct {
	api         openai.Client
	model       string
	temperature float64
	logger      *zap.Logger
}

func NewClient(apiKey string, baseURL string, model string, temperature float64, timeout time.Duration, logger *zap.Logger) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return &Client{
		api:         openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

// ScoreGroup sends the whole group in one judge call so the model can score
// the agents relative to one another. The response must be the JSON object
// the rubric demands; anything else is an error.
func (c *Client) ScoreGroup(ctx context.Context, group *convert.Group) ([]float64, error) {
	if group == nil || len(group.Examples) == 0 {
		return nil, fmt.Errorf("judge: empty group")
	}

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(TradingRubric),
			openai.UserMessage(buildJudgePrompt(group)),
		},
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("judge: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("judge: completion returned no choices")
	}

	scores, err := parseScores(resp.Choices[0].Message.Content, len(group.Examples))
	if err != nil {
		return nil, err
	}
	if c.logger != nil {
		c.logger.Debug("group scored by judge",
			zap.String("window_id", group.WindowID),
			zap.Int("examples", len(scores)),
			zap.String("model", c.model),
		)
	}
	return scores, nil
}

func buildJudgePrompt(group *convert.Group) string {
	var b strings.Builder
	fmt.Fprintf(&b, "WINDOW: %s\n", group.WindowID)
	fmt.Fprintf(&b, "AGENTS: %d\n", len(group.Examples))

	for i, ex := range group.Examples {
		fmt.Fprintf(&b, "\n=== AGENT %d ===\n", i+1)
		fmt.Fprintf(&b, "id: %s\n", ex.Metadata["agent_id"])
		fmt.Fprintf(&b, "final_pnl: %.2f  trades: %.0f  steps: %.0f\n",
			ex.Metrics["final_pnl"], ex.Metrics["trades_executed"], ex.Metrics["episode_length"])

		b.WriteString("transcript:\n")
		var t strings.Builder
		for _, msg := range ex.Messages {
			fmt.Fprintf(&t, "[%s] %s\n", msg.Role, msg.Content)
		}
		transcript := t.String()
		if len(transcript) > maxTranscriptChars {
			transcript = transcript[:maxTranscriptChars] + "\n[truncated]"
		}
		b.WriteString(transcript)
	}

	fmt.Fprintf(&b, "\nReturn {\"scores\": [...]} with exactly %d scores.", len(group.Examples))
	return b.String()
}

type scoresResponse struct {
	Scores []float64 `json:"scores"`
}

func parseScores(content string, want int) ([]float64, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var parsed scoresResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("judge: response is not the expected JSON: %w", err)
	}
	if len(parsed.Scores) != want {
		return nil, fmt.Errorf("judge: want %d scores, got %d", want, len(parsed.Scores))
	}
	for i, s := range parsed.Scores {
		if s < 0 {
			parsed.Scores[i] = 0
		} else if s > 1 {
			parsed.Scores[i] = 1
		}
	}
	return parsed.Scores, nil
}
