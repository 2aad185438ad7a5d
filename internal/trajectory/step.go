package trajectory

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// Wire schema of the stepsJson column. Field names are the agent platform's
// camelCase contract; decoding is strict: a step that is missing required
// fields is an error, never a defaulted value.

type EnvironmentState struct {
	AgentBalance  float64 `json:"agentBalance"`
	AgentPnL      float64 `json:"agentPnL"`
	OpenPositions int     `json:"openPositions"`
	ActiveMarkets int     `json:"activeMarkets"`
}

type ProviderAccess struct {
	ProviderName string          `json:"providerName"`
	Data         json.RawMessage `json:"data"`
	Purpose      string          `json:"purpose"`
}

type LLMCall struct {
	Model        string  `json:"model"`
	SystemPrompt string  `json:"systemPrompt"`
	UserPrompt   string  `json:"userPrompt"`
	Response     string  `json:"response"`
	Reasoning    *string `json:"reasoning,omitempty"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"maxTokens"`
	LatencyMs    *int64  `json:"latencyMs,omitempty"`
	Purpose      string  `json:"purpose"`
	ActionType   *string `json:"actionType,omitempty"`
}

type Action struct {
	ActionType string          `json:"actionType"`
	Parameters json.RawMessage `json:"parameters"`
	Success    bool            `json:"success"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *string         `json:"error,omitempty"`
	Reasoning  *string         `json:"reasoning,omitempty"`
}

type Step struct {
	StepNumber       int              `json:"stepNumber"`
	Timestamp        int64            `json:"timestamp"`
	EnvironmentState EnvironmentState `json:"environmentState"`
	ProviderAccesses []ProviderAccess `json:"providerAccesses,omitempty"`
	LLMCalls         []LLMCall        `json:"llmCalls"`
	Action           Action           `json:"action"`
	Reward           float64          `json:"reward"`
}

// DecodeSteps parses a stepsJson payload into typed steps. It fails on
// malformed JSON and on schema violations (missing action type, incomplete
// LLM call records, non-increasing step numbers). An empty array decodes to
// an empty slice without error.
func DecodeSteps(raw datatypes.JSON) ([]Step, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("steps payload is empty")
	}

	var steps []Step
	if err := json.Unmarshal(raw, &steps); err != nil {
		return nil, fmt.Errorf("decode steps: %w", err)
	}

	prev := -1
	for i, s := range steps {
		if s.StepNumber <= prev {
			return nil, fmt.Errorf("step %d: step number %d not increasing (previous %d)", i, s.StepNumber, prev)
		}
		prev = s.StepNumber

		if s.Action.ActionType == "" {
			return nil, fmt.Errorf("step %d: action type missing", s.StepNumber)
		}
		for j, call := range s.LLMCalls {
			if call.Model == "" || call.UserPrompt == "" || call.Response == "" {
				return nil, fmt.Errorf("step %d: llm call %d incomplete", s.StepNumber, j)
			}
		}
	}

	return steps, nil
}
