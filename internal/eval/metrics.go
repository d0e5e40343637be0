// ABOUTME: Answer and retrieval quality metrics: faithfulness, context recall, source hit rate
// ABOUTME: Deterministic scoring against ground truth strings

package eval

import (
	"fmt"
	"strings"
)

// PassThreshold is the minimum faithfulness and recall for a passing scenario
const PassThreshold = 0.9

// Result statuses
const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
)

// Result is the outcome of one scenario
type Result struct {
	ScenarioID         string            `json:"scenario_id"`
	ScenarioName       string            `json:"scenario_name"`
	FaithfulnessScore  float64           `json:"faithfulness"`
	ContextRecallScore float64           `json:"context_recall"`
	HitRate            float64           `json:"hit_rate"`
	OverallScore       float64           `json:"overall"`
	Status             string            `json:"status"`
	Details            map[string]string `json:"details,omitempty"`
	ErrorMessage       string            `json:"error,omitempty"`
}

// Faithfulness scores 1.0 when every expected item appears and no forbidden
// item does, 0.5 when exactly one of the two checks fails, 0.0 otherwise
func Faithfulness(response string, expected, forbidden []string) (float64, string) {
	upper := strings.ToUpper(response)

	var missing []string
	for _, e := range expected {
		if !strings.Contains(upper, strings.ToUpper(e)) {
			missing = append(missing, e)
		}
	}
	var found []string
	for _, f := range forbidden {
		if strings.Contains(upper, strings.ToUpper(f)) {
			found = append(found, f)
		}
	}

	switch {
	case len(missing) == 0 && len(found) == 0:
		return 1.0, "response matches expected ground truth"
	case len(missing) > 0 && len(found) > 0:
		return 0.0, fmt.Sprintf("missing expected items: %v, forbidden items found: %v", missing, found)
	case len(missing) > 0:
		return 0.5, fmt.Sprintf("missing expected items: %v", missing)
	default:
		return 0.5, fmt.Sprintf("forbidden items found: %v", found)
	}
}

// ContextRecall is the fraction of expected items present in the retrieved context
func ContextRecall(retrieved, expected []string) (float64, string) {
	if len(expected) == 0 {
		return 1.0, "no context retrieval required"
	}

	all := strings.ToUpper(strings.Join(retrieved, " "))
	var missing []string
	for _, e := range expected {
		if !strings.Contains(all, strings.ToUpper(e)) {
			missing = append(missing, e)
		}
	}

	recall := float64(len(expected)-len(missing)) / float64(len(expected))
	if len(missing) == 0 {
		return recall, "all expected items retrieved"
	}
	return recall, fmt.Sprintf("recall %.2f, missing items: %v", recall, missing)
}

// HitRate is the fraction of expected sources cited in the response
func HitRate(cited, expected []string) float64 {
	if len(expected) == 0 {
		return 1.0
	}
	set := make(map[string]bool, len(cited))
	for _, c := range cited {
		set[c] = true
	}
	hits := 0
	for _, e := range expected {
		if set[e] {
			hits++
		}
	}
	return float64(hits) / float64(len(expected))
}

// Evaluate scores a scenario's final answer and the context it was built from
func Evaluate(sc Scenario, response string, retrieved, cited []string) Result {
	gt := sc.GroundTruth
	faithfulness, faithDetail := Faithfulness(response, gt.ExpectedInResponse, gt.ForbiddenInResponse)
	recall, recallDetail := ContextRecall(retrieved, gt.ExpectedContextItems)
	hitRate := HitRate(cited, gt.ExpectedSources)

	status := StatusFail
	if faithfulness >= PassThreshold && recall >= PassThreshold {
		status = StatusPass
	}

	preview := []rune(response)
	if len(preview) > 200 {
		preview = preview[:200]
	}
	return Result{
		ScenarioID:         sc.ID,
		ScenarioName:       sc.Name,
		FaithfulnessScore:  faithfulness,
		ContextRecallScore: recall,
		HitRate:            hitRate,
		OverallScore:       (faithfulness + recall) / 2.0,
		Status:             status,
		Details: map[string]string{
			"faithfulness":   faithDetail,
			"context_recall": recallDetail,
			"final_response": string(preview),
		},
	}
}
