package evaluator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/scenaria/pkg/domain"
	"gopkg.in/yaml.v3"
)

// ErrScriptExhausted is wrapped by Scripted once every queued verdict was used.
var ErrScriptExhausted = errors.New("script exhausted")

// Scripted returns queued verdicts in order, one per call.
type Scripted struct {
	mu       sync.Mutex
	verdicts []domain.TurnVerdict
	requests []domain.EvaluationRequest
}

// NewScripted creates a Scripted evaluator.
func NewScripted(verdicts ...domain.TurnVerdict) *Scripted {
	return &Scripted{verdicts: verdicts}
}

// Evaluate implements ports.Evaluator. An exhausted queue reports the evaluator as unavailable.
func (s *Scripted) Evaluate(ctx context.Context, req domain.EvaluationRequest) (domain.TurnVerdict, error) {
	if err := ctx.Err(); err != nil {
		return domain.TurnVerdict{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if len(s.verdicts) == 0 {
		return domain.TurnVerdict{}, &domain.EvaluatorUnavailableError{Cause: ErrScriptExhausted}
	}
	v := s.verdicts[0]
	s.verdicts = s.verdicts[1:]
	return v, nil
}

// Requests returns the requests seen so far.
func (s *Scripted) Requests() []domain.EvaluationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// Remaining reports how many verdicts are still queued.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.verdicts)
}

// Rule matches the latest utterance. Every keyword must appear (case-insensitive).
type Rule struct {
	Keywords   []string      `yaml:"keywords" json:"keywords"`
	Signal     domain.Signal `yaml:"signal" json:"signal"`
	Conditions []int         `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	RedFlag    string        `yaml:"red_flag,omitempty" json:"red_flag,omitempty"`
}

func (r Rule) matches(utterance string) bool {
	if len(r.Keywords) == 0 {
		return false
	}
	lower := strings.ToLower(utterance)
	for _, kw := range r.Keywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

// Rules is a keyword evaluator for offline play. The first matching rule wins;
// no match yields SignalNone.
type Rules struct {
	Rules []Rule `yaml:"rules" json:"rules"`
}

// Evaluate implements ports.Evaluator.
func (r *Rules) Evaluate(ctx context.Context, req domain.EvaluationRequest) (domain.TurnVerdict, error) {
	if err := ctx.Err(); err != nil {
		return domain.TurnVerdict{}, err
	}

	verdict := domain.TurnVerdict{Signal: domain.SignalNone, SatisfiedConditionIDs: []int{}}
	if len(req.UtteranceHistory) == 0 {
		return verdict, nil
	}
	latest := req.UtteranceHistory[len(req.UtteranceHistory)-1]

	// Conditions attached to the current phase are credited when their description is quoted.
	for _, c := range req.PhaseConditions {
		if c.Description != "" && strings.Contains(strings.ToLower(latest), strings.ToLower(c.Description)) {
			verdict.SatisfiedConditionIDs = append(verdict.SatisfiedConditionIDs, c.ID)
		}
	}

	for _, rule := range r.Rules {
		if !rule.matches(latest) {
			continue
		}
		verdict.Signal = rule.Signal.Normalize()
		for _, cid := range rule.Conditions {
			if !slices.Contains(verdict.SatisfiedConditionIDs, cid) {
				verdict.SatisfiedConditionIDs = append(verdict.SatisfiedConditionIDs, cid)
			}
		}
		if rule.RedFlag != "" {
			verdict.RedFlags = []string{rule.RedFlag}
		}
		break
	}
	return verdict, nil
}

// LoadRules reads a YAML rules file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	for i, rule := range r.Rules {
		if !rule.Signal.Valid() {
			return nil, &domain.ValidationError{Field: fmt.Sprintf("rules[%d].signal", i), Reason: fmt.Sprintf("unknown signal %q", rule.Signal)}
		}
	}
	return &r, nil
}
