package app

import (
	"context"
	"sort"

	"elevate-assessment-service/internal/domain"
)

// FirstMatch returns the target stage of the first rule, in priority order,
// whose closed range contains score. Ties on priority keep input order.
// Overlapping ranges are not rejected; priority alone decides.
func FirstMatch(rules []domain.StageRule, score float64) (string, bool) {
	sorted := make([]domain.StageRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	for _, r := range sorted {
		if r.Contains(score) {
			return r.TargetStage, true
		}
	}
	return "", false
}

// resolveStage picks the rule set and matches score against it. A
// questionnaire that has its own rules uses exactly those: the global set is
// never consulted for it, even when none of its rules match.
func resolveStage(ctx context.Context, rules StageRuleRepository, questionnaireID string, score float64) (string, bool, error) {
	var set []domain.StageRule
	var err error
	if questionnaireID != "" {
		set, err = rules.RulesForQuestionnaire(ctx, questionnaireID)
		if err != nil {
			return "", false, err
		}
	}
	if len(set) == 0 {
		set, err = rules.GlobalRules(ctx)
		if err != nil {
			return "", false, err
		}
	}
	stage, ok := FirstMatch(set, score)
	return stage, ok, nil
}

// Gap is an uncovered score interval reported by CoverageGaps.
type Gap struct {
	From float64
	To   float64
}

// CoverageGaps reports the sub-intervals of [0,100] not covered by any rule.
// Holes narrower than eps are ignored, so boundary conventions like
// [0,25] / [25.000001,50] still count as contiguous.
func CoverageGaps(rules []domain.StageRule, eps float64) []Gap {
	sorted := make([]domain.StageRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinScore < sorted[j].MinScore
	})

	var gaps []Gap
	cursor := 0.0
	for _, r := range sorted {
		if r.MaxScore < cursor {
			continue
		}
		if r.MinScore > cursor+eps {
			gaps = append(gaps, Gap{From: cursor, To: r.MinScore})
		}
		if r.MaxScore > cursor {
			cursor = r.MaxScore
		}
	}
	if cursor+eps < 100 {
		gaps = append(gaps, Gap{From: cursor, To: 100})
	}
	return gaps
}
