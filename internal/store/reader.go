package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trainworker/internal/repository"
	"trainworker/internal/trajectory"
)

// Reader is the read side of the trajectory store: window eligibility,
// trajectory deserialization and market-outcome aggregation. It fails fast on
// malformed stored data and never retries; retry policy belongs to callers.
type Reader struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

// WindowIDs returns eligible window ids, most recent first. A window is
// eligible when its distinct-agent count within the lookback period is at
// least minAgents.
func (r *Reader) WindowIDs(ctx context.Context, minAgents int, lookback time.Duration) ([]string, error) {
	return r.Repo.ListWindowIDs(ctx, minAgents, lookback)
}

// TrajectoriesByWindow fetches and decodes all trajectories for a window.
// Trajectories with fewer than minActions steps are silently excluded;
// malformed step JSON is an error for the whole call.
func (r *Reader) TrajectoriesByWindow(ctx context.Context, windowID string, minActions int) ([]trajectory.Trajectory, error) {
	rows, err := r.Repo.ListTrajectoriesByWindow(ctx, windowID)
	if err != nil {
		return nil, err
	}

	out := make([]trajectory.Trajectory, 0, len(rows))
	for _, row := range rows {
		var steps []trajectory.Step
		if len(row.StepsJSON) > 0 && string(row.StepsJSON) != "null" {
			steps, err = trajectory.DecodeSteps(row.StepsJSON)
			if err != nil {
				return nil, fmt.Errorf("trajectory %s: %w", row.TrajectoryID, err)
			}
		}
		if len(steps) < minActions {
			continue
		}

		traj := trajectory.Trajectory{
			ID:            row.ID,
			TrajectoryID:  row.TrajectoryID,
			AgentID:       row.AgentID,
			WindowID:      row.WindowID,
			StartTime:     row.StartTime,
			EndTime:       row.EndTime,
			DurationMs:    row.DurationMs,
			Steps:         steps,
			TotalReward:   row.TotalReward,
			FinalPnL:      row.FinalPnL.InexactFloat64(),
			EpisodeLength: row.EpisodeLength,
			FinalStatus:   row.FinalStatus,
		}
		if row.FinalBalance != nil {
			v := row.FinalBalance.InexactFloat64()
			traj.FinalBalance = &v
		}
		if row.TradesExecuted != nil {
			traj.TradesExecuted = *row.TradesExecuted
		}
		if row.PostsCreated != nil {
			traj.PostsCreated = *row.PostsCreated
		}
		out = append(out, traj)
	}

	if r.Logger != nil {
		r.Logger.Debug("trajectories loaded",
			zap.String("window_id", windowID),
			zap.Int("rows", len(rows)),
			zap.Int("kept", len(out)),
		)
	}
	return out, nil
}

// MarketOutcomes returns the aggregated ground truth for a window, or
// (nil, nil) when no outcome rows exist.
func (r *Reader) MarketOutcomes(ctx context.Context, windowID string) (*trajectory.MarketOutcomes, error) {
	rows, err := r.Repo.ListMarketOutcomesByWindow(ctx, windowID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	start, end, err := trajectory.WindowBounds(windowID)
	if err != nil {
		return nil, err
	}

	outcomes := &trajectory.MarketOutcomes{
		WindowID:    windowID,
		WindowStart: start,
		WindowEnd:   end,
		Stocks:      make(map[string]trajectory.StockOutcome, len(rows)),
	}
	for _, row := range rows {
		stock := trajectory.StockOutcome{
			Ticker:        row.StockTicker,
			StartPrice:    row.StartPrice.InexactFloat64(),
			EndPrice:      row.EndPrice.InexactFloat64(),
			ChangePercent: row.ChangePercent.InexactFloat64(),
		}
		if row.Sentiment != nil {
			stock.Sentiment = *row.Sentiment
		}
		if len(row.NewsEvents) > 0 && string(row.NewsEvents) != "null" {
			if err := json.Unmarshal(row.NewsEvents, &stock.NewsEvents); err != nil {
				return nil, fmt.Errorf("window %s ticker %s: decode news events: %w", windowID, row.StockTicker, err)
			}
		}
		outcomes.Stocks[row.StockTicker] = stock
	}
	return outcomes, nil
}

// WindowStats returns aggregate per-window statistics for diagnostics, or
// (nil, nil) when the window has no trajectories.
func (r *Reader) WindowStats(ctx context.Context, windowID string) (*trajectory.WindowStatistics, error) {
	agg, err := r.Repo.GetWindowAggregate(ctx, windowID)
	if err != nil {
		return nil, err
	}
	if agg == nil {
		return nil, nil
	}
	return &trajectory.WindowStatistics{
		WindowID:        agg.WindowID,
		AgentCount:      agg.AgentCount,
		TrajectoryCount: agg.TrajectoryCount,
		TotalActions:    agg.TotalActions,
		AvgPnL:          agg.AvgPnL,
		MinPnL:          agg.MinPnL,
		MaxPnL:          agg.MaxPnL,
		StartTime:       agg.StartTime,
		EndTime:         agg.EndTime,
	}, nil
}
