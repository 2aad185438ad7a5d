package judge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"trainworker/internal/convert"
)

// HeuristicScorer scores a group from its stored metrics alone, without a
// judge model. It weights relative P&L at 50%, profitability at 30% and
// trading activity at 20%. Used when no judge API key is configured or the
// judge call fails.
type HeuristicScorer struct {
	Logger *zap.Logger
}

func (h *HeuristicScorer) ScoreGroup(ctx context.Context, group *convert.Group) ([]float64, error) {
	if group == nil || len(group.Examples) == 0 {
		return nil, fmt.Errorf("judge: empty group")
	}

	minPnL := group.Examples[0].Metrics["final_pnl"]
	maxPnL := minPnL
	for _, ex := range group.Examples[1:] {
		pnl := ex.Metrics["final_pnl"]
		if pnl < minPnL {
			minPnL = pnl
		}
		if pnl > maxPnL {
			maxPnL = pnl
		}
	}

	scores := make([]float64, len(group.Examples))
	for i, ex := range group.Examples {
		pnl := ex.Metrics["final_pnl"]

		// relative P&L within the group; a flat group scores everyone mid
		relative := 0.5
		if maxPnL > minPnL {
			relative = (pnl - minPnL) / (maxPnL - minPnL)
		}

		profitability := 0.5
		if pnl > 0 {
			profitability = 1
		} else if pnl < 0 {
			profitability = 0
		}

		activity := ex.Metrics["trades_executed"] / 10
		if activity > 1 {
			activity = 1
		}

		scores[i] = 0.5*relative + 0.3*profitability + 0.2*activity
	}

	if h.Logger != nil {
		h.Logger.Debug("group scored heuristically",
			zap.String("window_id", group.WindowID),
			zap.Int("examples", len(scores)),
		)
	}
	return scores, nil
}
