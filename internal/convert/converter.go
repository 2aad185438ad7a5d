package convert

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"trainworker/internal/trajectory"
)

// ErrGroupTooSmall is returned when a window cannot produce the two or more
// examples that relative scoring requires.
var ErrGroupTooSmall = errors.New("need at least 2 trajectories for relative scoring")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Example is one reward-bearing training example: the replayed chat exchange
// plus metrics and identity metadata. Reward is zero until a judge scores it.
type Example struct {
	Messages []Message          `json:"messages"`
	Reward   float64            `json:"reward"`
	Metrics  map[string]float64 `json:"metrics"`
	Metadata map[string]string  `json:"metadata"`
}

// Group holds the examples of one window, scored relative to one another.
type Group struct {
	WindowID string     `json:"window_id"`
	Examples []*Example `json:"examples"`
}

// Converter turns stored trajectories into training examples. Dropout is
// deliberate sampling and surfaces as a nil example, never as an error.
type Converter struct {
	dropoutRate float64
	rng         *rand.Rand
}

// NewConverter builds a converter. dropoutRate must be in [0, 0.5]; rng may
// be nil, in which case a time-seeded source is used.
func NewConverter(dropoutRate float64, rng *rand.Rand) (*Converter, error) {
	if dropoutRate < 0 || dropoutRate > 0.5 {
		return nil, fmt.Errorf("dropout rate must be in [0.0, 0.5], got %v", dropoutRate)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Converter{dropoutRate: dropoutRate, rng: rng}, nil
}

// ConvertTrajectory builds one training example, or (nil, nil) when dropout
// elides the trajectory. A trajectory that cannot yield at least a system
// message plus one user/assistant pair is an error, not an empty example.
func (c *Converter) ConvertTrajectory(traj trajectory.Trajectory, outcomes *trajectory.MarketOutcomes) (*Example, error) {
	if c.dropoutRate > 0 && c.rng.Float64() < c.dropoutRate {
		return nil, nil
	}

	messages := []Message{{Role: "system", Content: buildSystemMessage(traj, outcomes)}}

	for _, step := range traj.Steps {
		if len(step.LLMCalls) == 0 {
			continue
		}
		call := step.LLMCalls[0]
		messages = append(messages,
			Message{Role: "user", Content: call.UserPrompt},
			Message{Role: "assistant", Content: call.Response},
		)
	}

	if len(messages) < 3 {
		return nil, fmt.Errorf("trajectory %s has insufficient messages: %d", traj.TrajectoryID, len(messages))
	}

	return &Example{
		Messages: messages,
		Reward:   0,
		Metrics: map[string]float64{
			"final_pnl":       traj.FinalPnL,
			"episode_length":  float64(traj.EpisodeLength),
			"trades_executed": float64(traj.TradesExecuted),
		},
		Metadata: map[string]string{
			"trajectory_id": traj.TrajectoryID,
			"agent_id":      traj.AgentID,
			"window_id":     traj.WindowID,
		},
	}, nil
}

// ConvertWindowGroup converts a window's trajectories into a scoreable group.
// More than maxPerGroup inputs are sampled uniformly, not first-N. Dropout
// casualties are discarded; a group that ends up below two examples is an
// error.
func (c *Converter) ConvertWindowGroup(trajs []trajectory.Trajectory, outcomes *trajectory.MarketOutcomes, maxPerGroup int) (*Group, error) {
	if len(trajs) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrGroupTooSmall, len(trajs))
	}

	sampled := trajs
	if maxPerGroup > 0 && len(trajs) > maxPerGroup {
		sampled = make([]trajectory.Trajectory, 0, maxPerGroup)
		for _, i := range c.rng.Perm(len(trajs))[:maxPerGroup] {
			sampled = append(sampled, trajs[i])
		}
	}

	examples := make([]*Example, 0, len(sampled))
	for _, traj := range sampled {
		ex, err := c.ConvertTrajectory(traj, outcomes)
		if err != nil {
			return nil, err
		}
		if ex != nil {
			examples = append(examples, ex)
		}
	}

	if len(examples) < 2 {
		return nil, fmt.Errorf("%w: %d examples remain after dropout", ErrGroupTooSmall, len(examples))
	}

	return &Group{WindowID: sampled[0].WindowID, Examples: examples}, nil
}

func buildSystemMessage(traj trajectory.Trajectory, outcomes *trajectory.MarketOutcomes) string {
	var b strings.Builder
	b.WriteString("You are evaluating trading agent decisions.\n\n")
	fmt.Fprintf(&b, "AGENT: %s\n", traj.AgentID)
	fmt.Fprintf(&b, "TIME WINDOW: %s\n", traj.WindowID)

	if outcomes != nil && len(outcomes.Stocks) > 0 {
		b.WriteString("\nMARKET OUTCOMES (ground truth agent didn't know):\n")

		tickers := make([]string, 0, len(outcomes.Stocks))
		for ticker := range outcomes.Stocks {
			tickers = append(tickers, ticker)
		}
		sort.Strings(tickers)

		for _, ticker := range tickers {
			stock := outcomes.Stocks[ticker]
			fmt.Fprintf(&b, "\n%s:", ticker)
			fmt.Fprintf(&b, "\n  Price: $%.2f -> $%.2f (%+.1f%%)", stock.StartPrice, stock.EndPrice, stock.ChangePercent)
			sentiment := stock.Sentiment
			if sentiment == "" {
				sentiment = "UNKNOWN"
			}
			fmt.Fprintf(&b, "\n  Sentiment: %s", sentiment)
			if len(stock.NewsEvents) > 0 {
				fmt.Fprintf(&b, "\n  News: %s", stock.NewsEvents[0])
			}
		}
	}

	b.WriteString("\n\nEvaluate this agent's decisions given the outcomes.")
	return b.String()
}

// DropoutRate computes the dropout needed to steer the training set toward
// target examples: 0 when supply is at or under target, otherwise
// min(maxDropout, 1 - target/total).
func DropoutRate(total int, target int, maxDropout float64) float64 {
	if total <= target {
		return 0
	}
	needed := 1 - float64(target)/float64(total)
	if needed > maxDropout {
		return maxDropout
	}
	return needed
}
