// Package normalize turns loosely shaped model replies into the canonical
// {summary, issues} result. Everything here is pure: no I/O and no mutation of the
// input value.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/synapse-qa/synapse-backend/internal/audits/domain"
)

// Options tunes normalization.
type Options struct {
	// StrictCategory coerces unknown or missing categories to Backend instead of
	// leaving them empty.
	StrictCategory bool
}

// Normalize maps a decoded JSON value onto the canonical result.
func Normalize(raw any) (domain.AnalysisResult, error) {
	return Options{}.Normalize(raw)
}

// Normalize maps a decoded JSON value onto the canonical result.
func (o Options) Normalize(raw any) (domain.AnalysisResult, error) {
	if raw == nil {
		return domain.AnalysisResult{}, &domain.InvalidResponseError{Reason: "empty response"}
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return domain.AnalysisResult{}, &domain.InvalidResponseError{Reason: fmt.Sprintf("expected object, got %T", raw)}
	}

	list, ok := findingsList(obj)
	if !ok {
		return domain.AnalysisResult{}, &domain.InvalidResponseError{Reason: "findings list missing or not an array"}
	}

	res := domain.AnalysisResult{
		Summary: stringField(obj, FieldSummary),
		Issues:  o.Findings(list),
	}
	return res, nil
}

// NormalizeJSON decodes body and normalizes it.
func (o Options) NormalizeJSON(body []byte) (domain.AnalysisResult, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.AnalysisResult{}, &domain.InvalidResponseError{Reason: "reply is not valid JSON"}
	}
	return o.Normalize(raw)
}

// Findings normalizes a decoded findings array. Elements that are not objects are
// dropped. Missing ids get index+1; duplicated ids are moved past the current max so
// the join key stays unique inside one result.
func (o Options) Findings(list []any) []domain.Finding {
	out := make([]domain.Finding, 0, len(list))
	hasID := make([]bool, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		f, idOK := o.finding(obj)
		out = append(out, f)
		hasID = append(hasID, idOK)
	}

	used := make(map[int]bool, len(out))
	maxID := 0
	for i := range out {
		if !hasID[i] {
			out[i].ExternalID = i + 1
		}
		if out[i].ExternalID > maxID {
			maxID = out[i].ExternalID
		}
	}
	for i := range out {
		if used[out[i].ExternalID] {
			maxID++
			out[i].ExternalID = maxID
		}
		used[out[i].ExternalID] = true
	}
	return out
}

// finding normalizes one decoded object. The second result reports whether it
// carried a usable integer id.
func (o Options) finding(obj map[string]any) (domain.Finding, bool) {
	f := domain.Finding{
		Title:       stringField(obj, FieldTitle),
		Description: stringField(obj, FieldDescription),
		Severity:    Severity(stringField(obj, FieldSeverity)),
		Fix:         stringField(obj, FieldFix),
		IsDone:      boolField(obj, FieldIsDone),
	}
	f.Category = Category(stringField(obj, FieldCategory), o.StrictCategory)

	id, ok := intField(obj, FieldID)
	if ok {
		f.ExternalID = id
	}
	return f, ok
}

func findingsList(obj map[string]any) ([]any, bool) {
	for _, key := range Aliases[FieldIssues] {
		if list, ok := obj[key].([]any); ok {
			return list, true
		}
	}
	return nil, false
}

func stringField(obj map[string]any, field Field) string {
	v, ok := lookup(obj, field)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func boolField(obj map[string]any, field Field) bool {
	v, ok := lookup(obj, field)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "si", "sí", "1", "done", "resuelto":
			return true
		}
	case float64:
		return t != 0
	}
	return false
}

func intField(obj map[string]any, field Field) (int, bool) {
	v, ok := lookup(obj, field)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case int:
		return t, true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
