package pipeline

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ScorePolicy weights how coverage of each analysis dimension combines into
// the completion score the quality gate compares against its threshold.
// Weights are normalized at evaluation time, so they need not sum to 1.
type ScorePolicy struct {
	FeatureWeight    float64 `yaml:"feature_weight"`
	CompetitorWeight float64 `yaml:"competitor_weight"`
	UseCaseWeight    float64 `yaml:"use_case_weight"`
	TechStackWeight  float64 `yaml:"tech_stack_weight"`
}

// DefaultScorePolicy returns the baseline weighting.
func DefaultScorePolicy() ScorePolicy {
	return ScorePolicy{
		FeatureWeight:    0.3,
		CompetitorWeight: 0.3,
		UseCaseWeight:    0.2,
		TechStackWeight:  0.2,
	}
}

// LoadScorePolicy reads a policy from a YAML file. An empty path returns
// the default policy.
func LoadScorePolicy(path string) (ScorePolicy, error) {
	if path == "" {
		return DefaultScorePolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ScorePolicy{}, eris.Wrap(err, "pipeline: read score policy")
	}

	policy := DefaultScorePolicy()
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return ScorePolicy{}, eris.Wrap(err, "pipeline: parse score policy")
	}
	if policy.totalWeight() <= 0 {
		return ScorePolicy{}, eris.New("pipeline: score policy weights must sum to a positive value")
	}
	return policy, nil
}

func (p ScorePolicy) totalWeight() float64 {
	return p.FeatureWeight + p.CompetitorWeight + p.UseCaseWeight + p.TechStackWeight
}
