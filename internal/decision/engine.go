// Package decision implements the arbitration policy that decides whether an
// agent task should run on internal skills, external tools, a mix of both, or
// be escalated to a human. The engine is stateless and deterministic: a
// five-factor self-assessment goes in, a scored decision comes out.
package decision

import (
	"fmt"
	"math"
)

// Recommendation is the strategy the assessing agent itself suggested.
type Recommendation string

const (
	RecommendSkills   Recommendation = "skills"
	RecommendTools    Recommendation = "tools"
	RecommendBoth     Recommendation = "both"
	RecommendGuidance Recommendation = "seek_guidance"
)

// Action is the arbitrated execution strategy.
type Action string

const (
	ActionUseSkills Action = "use_skills"
	ActionHybrid    Action = "hybrid_approach"
	ActionUseTool   Action = "use_tool"
	ActionGuidance  Action = "seek_guidance"
)

// Assessment is a five-factor normalized self-assessment produced by an
// agent's reflection step. All numeric factors are in [0,1].
type Assessment struct {
	SkillSufficiency  float64        `json:"skill_sufficiency"`
	TaskComplexity    float64        `json:"task_complexity"`
	RecentSuccessRate float64        `json:"recent_success_rate"`
	ToolBenefit       float64        `json:"tool_benefit"`
	Confidence        float64        `json:"confidence"`
	Recommendation    Recommendation `json:"recommendation"`
}

// Decision is the arbitration result.
type Decision struct {
	Action     Action  `json:"action"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
	Score      float64 `json:"score"`
}

// Weights is the factor weight vector used for scoring. The five weights are
// expected to sum to 1.0.
type Weights struct {
	SkillSufficiency  float64 `toml:"skill_sufficiency"`
	TaskComplexity    float64 `toml:"task_complexity"`
	RecentSuccessRate float64 `toml:"recent_success_rate"`
	ToolBenefit       float64 `toml:"tool_benefit"`
	Confidence        float64 `toml:"confidence"`
}

// IsZero reports whether no weights have been set.
func (w Weights) IsZero() bool {
	return w == Weights{}
}

// DefaultWeights returns the production weight vector.
func DefaultWeights() Weights {
	return Weights{
		SkillSufficiency:  0.30,
		TaskComplexity:    0.25,
		RecentSuccessRate: 0.15,
		ToolBenefit:       0.25,
		Confidence:        0.05,
	}
}

// InvalidAssessmentError reports an assessment that failed validation.
// It is a contract violation on the caller's side, not a recoverable input.
type InvalidAssessmentError struct {
	Detail string
}

func (e *InvalidAssessmentError) Error() string {
	return fmt.Sprintf("invalid self-assessment: %s", e.Detail)
}

// Engine scores assessments against a weight vector. Construct one per
// configuration; there is no package-level instance.
type Engine struct {
	weights Weights
}

// NewEngine creates an engine with the given weights. Zero-value weights fall
// back to the defaults so a missing config section behaves sanely.
func NewEngine(w Weights) *Engine {
	if w.IsZero() {
		w = DefaultWeights()
	}
	return &Engine{weights: w}
}

// Validate reports whether the assessment is usable: all five numeric factors
// in [0,1] and a known recommendation. It never panics or raises; Decide is
// the raising entry point.
func (e *Engine) Validate(a Assessment) bool {
	for _, v := range []float64{
		a.SkillSufficiency,
		a.TaskComplexity,
		a.RecentSuccessRate,
		a.ToolBenefit,
		a.Confidence,
	} {
		// NaN fails both comparisons.
		if !(v >= 0 && v <= 1) {
			return false
		}
	}

	switch a.Recommendation {
	case RecommendSkills, RecommendTools, RecommendBoth, RecommendGuidance:
		return true
	}
	return false
}

// Score computes the unrounded preference score. Higher means stronger
// preference for internal skills over external tools. Complexity and tool
// benefit are inverted: a complex task or a tool-hungry task pulls the score
// down.
func (e *Engine) Score(a Assessment) float64 {
	return a.SkillSufficiency*e.weights.SkillSufficiency +
		(1-a.TaskComplexity)*e.weights.TaskComplexity +
		a.RecentSuccessRate*e.weights.RecentSuccessRate +
		(1-a.ToolBenefit)*e.weights.ToolBenefit +
		a.Confidence*e.weights.Confidence
}

// Band reasons are fixed per action; the score itself is reported separately.
const (
	reasonUseSkills = "high skill preference score, internal skills are sufficient"
	reasonHybrid    = "balanced score, combining internal skills with tool support"
	reasonUseTool   = "low skill preference score, external tooling is required"
	reasonGuidance  = "score below guidance floor, escalating to a human"
)

// Decide validates, scores, and classifies the assessment. Threshold bands are
// evaluated high to low against the unrounded score; only the reported score
// is rounded to two decimals.
func (e *Engine) Decide(a Assessment) (Decision, error) {
	if !e.Validate(a) {
		return Decision{}, &InvalidAssessmentError{Detail: describeViolation(a)}
	}

	score := e.Score(a)

	var action Action
	var reason string
	switch {
	case score > 0.75:
		action, reason = ActionUseSkills, reasonUseSkills
	case score >= 0.55:
		action, reason = ActionHybrid, reasonHybrid
	case score >= 0.40:
		action, reason = ActionUseTool, reasonUseTool
	default:
		action, reason = ActionGuidance, reasonGuidance
	}

	return Decision{
		Action:     action,
		Reason:     reason,
		Confidence: a.Confidence,
		Score:      math.Round(score*100) / 100,
	}, nil
}

func describeViolation(a Assessment) string {
	factors := map[string]float64{
		"skill_sufficiency":   a.SkillSufficiency,
		"task_complexity":     a.TaskComplexity,
		"recent_success_rate": a.RecentSuccessRate,
		"tool_benefit":        a.ToolBenefit,
		"confidence":          a.Confidence,
	}
	for _, name := range []string{"skill_sufficiency", "task_complexity", "recent_success_rate", "tool_benefit", "confidence"} {
		v := factors[name]
		if !(v >= 0 && v <= 1) {
			return fmt.Sprintf("%s out of range: %v", name, v)
		}
	}
	return fmt.Sprintf("unknown recommendation: %q", a.Recommendation)
}
