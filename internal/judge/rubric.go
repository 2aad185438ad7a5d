package judge

// TradingRubric is the scoring instruction sent to the judge model. Scores
// are relative within a window group, on a 0.0 to 1.0 scale.
const TradingRubric = `You are scoring trading agents that all operated in the same market window.
Each agent saw the same markets but made different decisions. You are given
the ground-truth market outcomes and each agent's full decision transcript.

Score each agent from 0.0 to 1.0 using these weighted criteria:

1. Profit and loss (40%). Did the agent end the window with a gain? Larger
   risk-adjusted gains score higher.
2. Market timing (30%). Did the agent buy before prices rose and sell before
   they fell, relative to the ground-truth price moves?
3. Risk management (20%). Did the agent size positions sensibly and avoid
   concentrating its balance in a single market?
4. Opportunity capture (10%). Did the agent act on the markets that moved,
   or sit out moves it had visibility into?

Scoring scale:
  0.9-1.0  excellent decisions on every criterion
  0.7-0.9  good decisions with minor timing or sizing mistakes
  0.4-0.7  mixed results, some clear errors
  0.2-0.4  mostly poor decisions
  0.0-0.2  consistently wrong or inactive when action was warranted

Scores must differentiate the agents: do not give every agent the same score
unless their transcripts are truly indistinguishable.

Respond with ONLY a JSON object of the form {"scores": [0.8, 0.45, ...]},
one score per agent, in the order the agents were presented. No prose.`
