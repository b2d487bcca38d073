// Package policy derives routing decisions and numeric plan constraints
// from a check-in signal and learned user preferences.
//
// Everything in this package is a pure function: no I/O, no clocks, fully
// deterministic and unit-testable.
package policy

import (
	"strings"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
)

// Policy is the full derived planning policy for one request.
type Policy struct {
	State         models.AgentState        `json:"state"`
	SelectedAgent models.AgentName         `json:"selected_agent"`
	Constraints   models.PolicyConstraints `json:"constraints"`
	Requirements  []string                 `json:"requirements"`
	Prefs         models.PrefSnapshot      `json:"prefs"`
}

// Route classifies the check-in into a state and selects the planning agent.
func Route(sig models.CheckinSignal) models.RouteDecision {
	switch {
	case sig.Completed:
		return models.RouteDecision{State: models.StateNormal, SelectedAgent: models.AgentMaintenance}
	case sig.Energy <= 2 && sig.Workload >= 4:
		return models.RouteDecision{State: models.StateIncident, SelectedAgent: models.AgentTriage}
	case sig.Energy <= 2:
		return models.RouteDecision{State: models.StateRecovery, SelectedAgent: models.AgentRecovery}
	case sig.Workload >= 4:
		return models.RouteDecision{State: models.StateAtRisk, SelectedAgent: models.AgentDeepWork}
	default:
		return models.RouteDecision{State: models.StateNormal, SelectedAgent: models.AgentDeepWork}
	}
}

// AgentConstraints returns the base numeric bounds for an agent.
func AgentConstraints(agent models.AgentName) models.PolicyConstraints {
	switch agent {
	case models.AgentMaintenance:
		return models.PolicyConstraints{MaxSteps: 3, MinTotalMinutes: 8, MaxTotalMinutes: 20}
	case models.AgentTriage, models.AgentRecovery:
		return models.PolicyConstraints{MaxSteps: 4, MinTotalMinutes: 10, MaxTotalMinutes: 35}
	default:
		return models.PolicyConstraints{MaxSteps: 5, MinTotalMinutes: 15, MaxTotalMinutes: 60}
	}
}

// Apply derives the final policy for a request. Adjustments only ever
// tighten the agent base bounds, never loosen them; learned caps are
// applied last as a final min.
func Apply(sig models.CheckinSignal, route models.RouteDecision, prefs models.PrefSnapshot) Policy {
	c := AgentConstraints(route.SelectedAgent)

	if prefs.PrefersShortPlans {
		c.MaxSteps = min(c.MaxSteps, 4)
		c.MaxTotalMinutes = min(c.MaxTotalMinutes, 40)
	}
	if sig.Energy <= 2 {
		c.MaxSteps = min(c.MaxSteps, 4)
		c.MaxTotalMinutes = min(c.MaxTotalMinutes, 35)
	}
	if route.State == models.StateIncident || route.SelectedAgent == models.AgentTriage {
		c.MaxSteps = min(c.MaxSteps, 4)
		c.MaxTotalMinutes = min(c.MaxTotalMinutes, 30)
	}
	if prefs.PrefMaxSteps != nil {
		c.MaxSteps = min(c.MaxSteps, *prefs.PrefMaxSteps)
	}
	if prefs.PrefMaxTotalMinutes != nil {
		c.MaxTotalMinutes = min(c.MaxTotalMinutes, *prefs.PrefMaxTotalMinutes)
	}
	if c.MinTotalMinutes > c.MaxTotalMinutes {
		c.MinTotalMinutes = c.MaxTotalMinutes
	}

	var requirements []string
	if strings.TrimSpace(sig.Blockers) != "" {
		requirements = append(requirements, "include a step that reduces/removes blockers early")
	}
	if prefs.PrefersBlockerFirst {
		requirements = append(requirements, "make the first step address blockers (if any)")
	}
	if prefs.WantsMoreSpecificSteps {
		requirements = append(requirements, "steps must be concrete, non-generic, include a clear first action")
	}

	return Policy{
		State:         route.State,
		SelectedAgent: route.SelectedAgent,
		Constraints:   c,
		Requirements:  requirements,
		Prefs:         prefs,
	}
}
