package inference

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/muhammadolammi/skillmatchworker/internal/models"
)

const (
	maxSkillRunes     = 120
	maxReasoningRunes = 500
	maxEvidence       = 6
)

type rawSkill struct {
	Skill     string   `mapstructure:"skill"`
	Score     float64  `mapstructure:"score"`
	Reasoning string   `mapstructure:"reasoning"`
	Evidence  []string `mapstructure:"evidence"`
}

// CleanJson strips a surrounding markdown code fence.
func CleanJson(input string) string {
	clean := strings.TrimSpace(input)

	if strings.HasPrefix(clean, "```json") {
		clean = strings.TrimPrefix(clean, "```json")
	} else if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```")
	}
	clean = strings.TrimLeft(clean, "\r\n")
	clean = strings.TrimSuffix(strings.TrimSpace(clean), "```")

	return strings.TrimSpace(clean)
}

// extractObject returns the outermost {...} span of s.
func extractObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// ParseSkills decodes model output leniently. Anything that cannot be read
// as {"skills": [...]} yields an empty list.
func ParseSkills(raw string) []models.DerivedSkill {
	payload, ok := decodePayload(raw)
	if !ok {
		return []models.DerivedSkill{}
	}
	items, ok := payload["skills"].([]any)
	if !ok {
		return []models.DerivedSkill{}
	}

	out := make([]models.DerivedSkill, 0, len(items))
	for _, item := range items {
		var rs rawSkill
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &rs,
		})
		if err != nil {
			continue
		}
		if err := dec.Decode(item); err != nil {
			continue
		}

		name := truncateRunes(strings.TrimSpace(rs.Skill), maxSkillRunes)
		if name == "" {
			continue
		}
		evidence := rs.Evidence
		if len(evidence) > maxEvidence {
			evidence = evidence[:maxEvidence]
		}
		out = append(out, models.DerivedSkill{
			Skill:     name,
			Score:     clampScore(rs.Score),
			Reasoning: truncateRunes(strings.TrimSpace(rs.Reasoning), maxReasoningRunes),
			Evidence:  append([]string{}, evidence...),
		})
	}
	return out
}

func decodePayload(raw string) (map[string]any, bool) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(CleanJson(raw)), &payload); err == nil {
		return payload, true
	}
	obj, ok := extractObject(raw)
	if !ok {
		return nil, false
	}
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return nil, false
	}
	return payload, true
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
