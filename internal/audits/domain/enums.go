package domain

// Severity is the three-level priority of a finding.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Category groups findings by area.
type Category string

const (
	CategoryUIUX        Category = "UI/UX"
	CategoryBackend     Category = "Backend"
	CategoryData        Category = "Data"
	CategorySecurity    Category = "Security"
	CategoryPerformance Category = "Performance"
)

// Categories lists the accepted categories in display order.
var Categories = []Category{
	CategoryUIUX,
	CategoryBackend,
	CategoryData,
	CategorySecurity,
	CategoryPerformance,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
