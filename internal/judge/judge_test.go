package judge

import (
	"context"
	"math"
	"testing"

	"trainworker/internal/convert"
)

func exampleWithMetrics(agent string, pnl, trades float64) *convert.Example {
	return &convert.Example{
		Messages: []convert.Message{{Role: "system", Content: "x"}},
		Metrics:  map[string]float64{"final_pnl": pnl, "trades_executed": trades, "episode_length": 10},
		Metadata: map[string]string{"agent_id": agent},
	}
}

func TestParseScores(t *testing.T) {
	scores, err := parseScores(`{"scores": [0.8, 0.3, 0.55]}`, 3)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(scores) != 3 || scores[0] != 0.8 || scores[2] != 0.55 {
		t.Fatalf("scores=%v", scores)
	}
}

func TestParseScores_FencedJSON(t *testing.T) {
	raw := "```json\n{\"scores\": [0.9, 0.1]}\n```"
	scores, err := parseScores(raw, 2)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if scores[0] != 0.9 || scores[1] != 0.1 {
		t.Fatalf("scores=%v", scores)
	}
}

func TestParseScores_ClampsRange(t *testing.T) {
	scores, err := parseScores(`{"scores": [1.5, -0.2]}`, 2)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if scores[0] != 1 || scores[1] != 0 {
		t.Fatalf("scores=%v want clamped to [0,1]", scores)
	}
}

func TestParseScores_CountMismatch(t *testing.T) {
	if _, err := parseScores(`{"scores": [0.5]}`, 2); err == nil {
		t.Fatal("want error on count mismatch")
	}
}

func TestParseScores_NotJSON(t *testing.T) {
	if _, err := parseScores("the best agent is number 2", 2); err == nil {
		t.Fatal("want error on prose response")
	}
}

func TestHeuristicScorer_RanksByPnL(t *testing.T) {
	h := &HeuristicScorer{}
	group := &convert.Group{
		WindowID: "2025-06-15T14:00",
		Examples: []*convert.Example{
			exampleWithMetrics("a", 500, 5),
			exampleWithMetrics("b", -200, 5),
			exampleWithMetrics("c", 50, 5),
		},
	}
	scores, err := h.ScoreGroup(context.Background(), group)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("scores=%v", scores)
	}
	if !(scores[0] > scores[2] && scores[2] > scores[1]) {
		t.Fatalf("ranking wrong: %v", scores)
	}
	for _, s := range scores {
		if s < 0 || s > 1 {
			t.Fatalf("score %v outside [0,1]", s)
		}
	}
}

func TestHeuristicScorer_FlatGroup(t *testing.T) {
	h := &HeuristicScorer{}
	group := &convert.Group{
		Examples: []*convert.Example{
			exampleWithMetrics("a", 100, 10),
			exampleWithMetrics("b", 100, 10),
		},
	}
	scores, err := h.ScoreGroup(context.Background(), group)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	// relative 0.5, profitable 1.0, activity capped at 1.0
	want := 0.5*0.5 + 0.3*1 + 0.2*1
	for _, s := range scores {
		if math.Abs(s-want) > 1e-9 {
			t.Fatalf("score=%v want=%v", s, want)
		}
	}
}

func TestHeuristicScorer_EmptyGroup(t *testing.T) {
	h := &HeuristicScorer{}
	if _, err := h.ScoreGroup(context.Background(), &convert.Group{}); err == nil {
		t.Fatal("want error on empty group")
	}
}
