package domain

import (
	"encoding/json"
	"time"
)

// Finding is one problem or task produced by the model.
//
// ExternalID is the per-response sequence number assigned by the model and is only
// unique inside a single analysis result. StorageID is assigned by the store on insert
// and stays empty until then.
type Finding struct {
	ExternalID  int      `json:"id"`
	StorageID   string   `json:"dbId,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"desc"`
	Category    Category `json:"category,omitempty"`
	Severity    Severity `json:"severity"`
	Fix         string   `json:"fix"`
	IsDone      bool     `json:"isDone"`
}

// Persisted reports whether the store has assigned this finding a row.
func (f Finding) Persisted() bool {
	return f.StorageID != ""
}

// AnalysisResult is the canonical {summary, issues} shape.
type AnalysisResult struct {
	Summary string    `json:"summary"`
	Issues  []Finding `json:"issues"`
}

// Audit is one analysis session.
type Audit struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"user_id"`
	Summary   string    `json:"summary"`
	RawInput  string    `json:"input_text"`
	CreatedAt time.Time `json:"created_at"`

	// LegacyIssues carries the embedded findings blob written by the older schema.
	LegacyIssues json.RawMessage `json:"issues,omitempty"`
}

// HistoryEntry is an audit as shown in the recent-audits list.
type HistoryEntry struct {
	Audit
	TotalIssues     int `json:"totalIssues"`
	CompletedIssues int `json:"completedIssues"`
}

// IsCompleted is derived from the counters and never stored.
func (h HistoryEntry) IsCompleted() bool {
	return h.TotalIssues > 0 && h.CompletedIssues == h.TotalIssues
}

func (h HistoryEntry) MarshalJSON() ([]byte, error) {
	type entry HistoryEntry
	return json.Marshal(struct {
		entry
		IsCompleted bool `json:"isCompleted"`
	}{entry(h), h.IsCompleted()})
}

// IsCompleted is true iff there is at least one finding and every finding is done.
func IsCompleted(findings []Finding) bool {
	if len(findings) == 0 {
		return false
	}
	for _, f := range findings {
		if !f.IsDone {
			return false
		}
	}
	return true
}

// CountDone returns how many findings are marked done.
func CountDone(findings []Finding) int {
	n := 0
	for _, f := range findings {
		if f.IsDone {
			n++
		}
	}
	return n
}

// Stats summarises a findings list the way the terminal header shows it.
type Stats struct {
	Total   int `json:"total"`
	Done    int `json:"done"`
	Pending int `json:"pending"`
	High    int `json:"high"`
	Medium  int `json:"medium"`
	Low     int `json:"low"`
}

func ComputeStats(findings []Finding) Stats {
	s := Stats{Total: len(findings)}
	for _, f := range findings {
		if f.IsDone {
			s.Done++
		} else {
			s.Pending++
		}
		switch f.Severity {
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		default:
			s.Low++
		}
	}
	return s
}

// CloneFindings returns a copy that can be mutated independently of in.
func CloneFindings(in []Finding) []Finding {
	if in == nil {
		return nil
	}
	out := make([]Finding, len(in))
	copy(out, in)
	return out
}
