package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"rkas/internal/core"
)

var (
	ErrMalformed      = errors.New("malformed model response")
	ErrInvalidRisk    = errors.New("invalid risk assessment")
	ErrEmptyChecklist = errors.New("checklist has no evidence items")
)

// extractJSON strips Markdown code fences and any prose around the first
// JSON object in s.
func extractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", ErrMalformed
	}
	return s[start : end+1], nil
}

func parseAudit(text string) (*core.AIAnalysisResponse, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var res core.AIAnalysisResponse
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	res.Summary = strings.TrimSpace(res.Summary)
	if res.Summary == "" {
		return nil, fmt.Errorf("%w: empty summary", ErrMalformed)
	}
	if !res.RiskAssessment.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRisk, res.RiskAssessment)
	}
	if res.Recommendations == nil {
		res.Recommendations = []string{}
	}
	return &res, nil
}

// parseChecklist decodes a checklist and normalizes it for item: every entry
// starts pending, and missing or repeated ids are replaced with ev-<n>.
func parseChecklist(text string, item core.BudgetItem) (*core.SPJRecommendation, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var rec core.SPJRecommendation
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(rec.Checklist) == 0 {
		return nil, ErrEmptyChecklist
	}

	rec.ActivityID = item.ID
	seen := make(map[string]bool, len(rec.Checklist))
	for i := range rec.Checklist {
		ev := &rec.Checklist[i]
		ev.ID = strings.TrimSpace(ev.ID)
		for n := i + 1; ev.ID == "" || seen[ev.ID]; n++ {
			ev.ID = "ev-" + strconv.Itoa(n)
		}
		seen[ev.ID] = true
		ev.Status = core.StatusPending
	}
	return &rec, nil
}
