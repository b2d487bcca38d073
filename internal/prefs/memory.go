package prefs

import (
	"fmt"
	"strings"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/store"
)

// memory builder limits
const (
	memoryCheckins = 7
	memoryRuns     = 5
	memoryFeedback = 10
	memoryMaxChars = 2500
)

// BuildMemory renders a compact textual summary of recent check-ins, runs
// and feedback, used as planning context for the generator.
func BuildMemory(st store.Store, userID, goalID string) (string, error) {
	checkins, err := st.ListCheckins(userID, goalID, memoryCheckins)
	if err != nil {
		return "", fmt.Errorf("failed to load checkins: %w", err)
	}
	runs, err := st.ListAgentRuns(userID, goalID, memoryRuns)
	if err != nil {
		return "", fmt.Errorf("failed to load runs: %w", err)
	}
	feedback, err := st.ListFeedback(userID, memoryFeedback)
	if err != nil {
		return "", fmt.Errorf("failed to load feedback: %w", err)
	}

	var lines []string
	lines = append(lines, "RECENT_CHECKINS (newest first):")
	if len(checkins) == 0 {
		lines = append(lines, "- none")
	}
	for _, c := range checkins {
		blockers := strings.TrimSpace(c.Blockers)
		blockersTxt := ""
		if blockers != "" {
			blockersTxt = fmt.Sprintf(" blockers='%s'", truncate(blockers, 80))
		}
		lines = append(lines, fmt.Sprintf("- %s: energy=%d workload=%d completed=%t%s",
			c.CheckinDate, c.Energy, c.Workload, c.Completed, blockersTxt))
	}

	lines = append(lines, "", "RECENT_AGENT_RUNS (newest first):")
	if len(runs) == 0 {
		lines = append(lines, "- none")
	}
	for _, r := range runs {
		lines = append(lines, fmt.Sprintf("- %s: agent=%s state=%s summary='%s'",
			r.CreatedAt.Format("2006-01-02 15:04"), r.SelectedAgent, r.State, truncate(strings.TrimSpace(r.Summary), 120)))
	}

	lines = append(lines, "", "RECENT_FEEDBACK (newest first):")
	if len(feedback) == 0 {
		lines = append(lines, "- none")
	} else {
		helpful := 0
		for _, f := range feedback {
			if f.Helpful {
				helpful++
			}
		}
		lines = append(lines, fmt.Sprintf("- helpful_rate_last10=%.2f", float64(helpful)/float64(len(feedback))))
		for i, f := range feedback {
			if i >= 5 {
				break
			}
			cmt := strings.TrimSpace(f.Comment)
			cmtTxt := ""
			if cmt != "" {
				cmtTxt = fmt.Sprintf(" comment='%s'", truncate(cmt, 80))
			}
			lines = append(lines, fmt.Sprintf("- %s: helpful=%t%s", f.CreatedAt.Format("2006-01-02 15:04"), f.Helpful, cmtTxt))
		}
	}

	return truncate(strings.Join(lines, "\n"), memoryMaxChars), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
