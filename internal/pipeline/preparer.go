package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"trainworker/internal/convert"
	"trainworker/internal/judge"
	"trainworker/internal/store"
	"trainworker/internal/trajectory"
)

// ErrNoWindows is returned when no window satisfies the eligibility criteria.
var ErrNoWindows = errors.New("no training windows satisfy the criteria")

// Preparer assembles scored window groups for training. It owns window
// selection and the conversion/scoring sequencing; persistence stays in the
// store and trainer layers.
type Preparer struct {
	Reader   *store.Reader
	Scorer   judge.Scorer
	Fallback judge.Scorer
	Logger   *zap.Logger

	// TargetTrajectories and MaxDropout steer the batch-level dropout rate;
	// see DropoutRate. Zero target disables dropout.
	TargetTrajectories int
	MaxDropout         float64

	// Rand drives window sampling and dropout. Nil means the package-level
	// source; tests inject a seeded one.
	Rand *rand.Rand
}

// TrainingWindows returns the windows eligible for the next batch. Zero
// eligible windows is an error naming the criteria; more than maxWindows are
// sampled uniformly.
func (p *Preparer) TrainingWindows(ctx context.Context, minAgents int, lookback time.Duration, maxWindows int) ([]string, error) {
	ids, err := p.Reader.WindowIDs(ctx, minAgents, lookback)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: min %d agents within %s", ErrNoWindows, minAgents, lookback)
	}
	if maxWindows > 0 && len(ids) > maxWindows {
		sampled := make([]string, 0, maxWindows)
		for _, i := range p.perm(len(ids))[:maxWindows] {
			sampled = append(sampled, ids[i])
		}
		ids = sampled
	}
	return ids, nil
}

// PrepareAndScoreWindow builds one scored group for a window, without
// dropout. The configured judge scores the group and its failures are
// errors; the heuristic scorer is used only when no judge is configured.
// A window that cannot form a group at all is an error.
func (p *Preparer) PrepareAndScoreWindow(ctx context.Context, windowID string, minActions int, maxPerGroup int) (*convert.Group, error) {
	converter, err := convert.NewConverter(0, p.Rand)
	if err != nil {
		return nil, err
	}
	return p.prepareWindow(ctx, converter, windowID, minActions, maxPerGroup)
}

func (p *Preparer) prepareWindow(ctx context.Context, converter *convert.Converter, windowID string, minActions int, maxPerGroup int) (*convert.Group, error) {
	trajs, err := p.Reader.TrajectoriesByWindow(ctx, windowID, minActions)
	if err != nil {
		return nil, err
	}
	outcomes, err := p.Reader.MarketOutcomes(ctx, windowID)
	if err != nil {
		return nil, err
	}

	group, err := converter.ConvertWindowGroup(trajs, outcomes, maxPerGroup)
	if err != nil {
		return nil, fmt.Errorf("window %s: %w", windowID, err)
	}

	scores, err := p.score(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("window %s: %w", windowID, err)
	}
	for i, ex := range group.Examples {
		ex.Reward = scores[i]
	}
	return group, nil
}

// PrepareTrainingBatch prepares and scores every eligible window. Individual
// window failures are logged and skipped; the batch fails only when no window
// yields a group.
func (p *Preparer) PrepareTrainingBatch(ctx context.Context, minAgents int, lookback time.Duration, maxWindows int, minActions int, maxPerGroup int) ([]*convert.Group, error) {
	windows, err := p.TrainingWindows(ctx, minAgents, lookback, maxWindows)
	if err != nil {
		return nil, err
	}

	converter, err := p.batchConverter(ctx, windows)
	if err != nil {
		return nil, err
	}

	groups := make([]*convert.Group, 0, len(windows))
	for _, windowID := range windows {
		group, err := p.prepareWindow(ctx, converter, windowID, minActions, maxPerGroup)
		if err != nil {
			if p.Logger != nil {
				p.Logger.Warn("window skipped", zap.String("window_id", windowID), zap.Error(err))
			}
			continue
		}
		groups = append(groups, group)
	}

	if len(groups) == 0 {
		return nil, fmt.Errorf("all %d candidate windows failed to produce a group", len(windows))
	}
	return groups, nil
}

// Summary condenses a prepared batch into the numbers worth logging.
func Summary(groups []*convert.Group) (*trajectory.BatchSummary, error) {
	if len(groups) == 0 {
		return nil, errors.New("cannot summarize an empty batch")
	}

	s := &trajectory.BatchSummary{Windows: len(groups)}
	var scoreSum, pnlSum float64
	first := true
	for _, group := range groups {
		for _, ex := range group.Examples {
			s.TotalTrajectories++
			score := ex.Reward
			pnl := ex.Metrics["final_pnl"]
			if first {
				s.ScoreMin, s.ScoreMax = score, score
				s.PnLMin, s.PnLMax = pnl, pnl
				first = false
			}
			if score < s.ScoreMin {
				s.ScoreMin = score
			}
			if score > s.ScoreMax {
				s.ScoreMax = score
			}
			if pnl < s.PnLMin {
				s.PnLMin = pnl
			}
			if pnl > s.PnLMax {
				s.PnLMax = pnl
			}
			scoreSum += score
			pnlSum += pnl
		}
	}
	if s.TotalTrajectories == 0 {
		return nil, errors.New("cannot summarize an empty batch")
	}
	s.ScoreAvg = scoreSum / float64(s.TotalTrajectories)
	s.PnLAvg = pnlSum / float64(s.TotalTrajectories)
	s.AvgTrajectoriesPerWindow = float64(s.TotalTrajectories) / float64(s.Windows)
	return s, nil
}

// batchConverter sizes dropout from the total trajectory supply across the
// selected windows so the batch lands near TargetTrajectories.
func (p *Preparer) batchConverter(ctx context.Context, windows []string) (*convert.Converter, error) {
	rate := 0.0
	if p.TargetTrajectories > 0 {
		total := 0
		for _, windowID := range windows {
			stats, err := p.Reader.WindowStats(ctx, windowID)
			if err != nil {
				return nil, err
			}
			if stats != nil {
				total += stats.TrajectoryCount
			}
		}
		rate = convert.DropoutRate(total, p.TargetTrajectories, p.MaxDropout)
		if rate > 0 && p.Logger != nil {
			p.Logger.Info("dropout applied",
				zap.Int("total_trajectories", total),
				zap.Int("target", p.TargetTrajectories),
				zap.Float64("rate", rate),
			)
		}
	}
	return convert.NewConverter(rate, p.Rand)
}

// score uses the judge when one is configured and its errors propagate
// untouched; a degraded reward signal must never reach training silently.
// The heuristic fallback scores only in the no-judge configuration.
func (p *Preparer) score(ctx context.Context, group *convert.Group) ([]float64, error) {
	if p.Scorer != nil {
		return p.Scorer.ScoreGroup(ctx, group)
	}
	if p.Fallback == nil {
		return nil, errors.New("no scorer configured")
	}
	return p.Fallback.ScoreGroup(ctx, group)
}

func (p *Preparer) perm(n int) []int {
	if p.Rand != nil {
		return p.Rand.Perm(n)
	}
	return rand.Perm(n)
}
