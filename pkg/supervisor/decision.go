package supervisor

import (
	"fmt"
	"strings"
)

// Decision statuses.
const (
	StatusContinue = "CONTINUE"
	StatusFinish   = "FINISH"
)

// Plan is the phase-1 output.
type Plan struct {
	Goal         string
	Deliverables string
	Process      []string
	Explanation  string

	// Raw keeps the extracted object for plan events and message snapshots.
	Raw map[string]any
}

// Decision is the phase-2 output.
type Decision struct {
	NextAgent     string
	Instruction   string
	UpdateProcess []string
	Status        string
}

// normalizeKeys lowercases top-level keys; models are inconsistent about
// casing.
func normalizeKeys(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[strings.ToLower(k)] = v
	}
	return out
}

func stringField(obj map[string]any, key string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return ""
}

func stringSliceField(obj map[string]any, key string) []string {
	raw, ok := obj[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		out = append(out, fmt.Sprint(item))
	}
	return out
}

// ParsePlan extracts a Plan from raw supervisor output.
func ParsePlan(content string) (*Plan, error) {
	obj, err := ExtractJSON(content)
	if err != nil {
		return nil, fmt.Errorf("supervisor: parse plan: %w", err)
	}
	obj = normalizeKeys(obj)
	return &Plan{
		Goal:         stringField(obj, "goal"),
		Deliverables: stringField(obj, "deliverables"),
		Process:      stringSliceField(obj, "process"),
		Explanation:  stringField(obj, "explanation"),
		Raw:          obj,
	}, nil
}

// ParseDecision extracts a Decision from raw supervisor output. A missing
// or unrecognized status defaults to CONTINUE.
func ParseDecision(content string) (*Decision, error) {
	obj, err := ExtractJSON(content)
	if err != nil {
		return nil, fmt.Errorf("supervisor: parse decision: %w", err)
	}
	obj = normalizeKeys(obj)

	status := strings.ToUpper(strings.TrimSpace(stringField(obj, "status")))
	if status != StatusFinish {
		status = StatusContinue
	}
	return &Decision{
		NextAgent:     stringField(obj, "next_agent"),
		Instruction:   stringField(obj, "instruction"),
		UpdateProcess: stringSliceField(obj, "update_process"),
		Status:        status,
	}, nil
}
