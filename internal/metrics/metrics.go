// Package metrics tallies a final issue list.
package metrics

import "allycheck/internal/types"

// Aggregate counts issues by severity and by principle. Issues with an
// unknown severity count as moderate and issues without a principle take it
// from their criterion, so both breakdowns always sum to Total.
func Aggregate(issues []types.Issue) types.AuditMetrics {
	m := types.AuditMetrics{Total: len(issues)}
	for i := range issues {
		switch issues[i].Severity {
		case types.SeverityCritical:
			m.Critical++
		case types.SeveritySerious:
			m.Serious++
		case types.SeverityMinor:
			m.Minor++
		default:
			m.Moderate++
		}

		p := issues[i].Principle
		if p == "" {
			p = types.PrincipleForCriterion(issues[i].Criterion)
		}
		switch p {
		case types.PrinciplePerceivable:
			m.Perceivable++
		case types.PrincipleOperable:
			m.Operable++
		case types.PrincipleUnderstandable:
			m.Understandable++
		default:
			m.Robust++
		}
	}
	return m
}
